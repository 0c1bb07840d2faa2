package model

import (
	"time"
)

// LinkStatus is the lifecycle state of a supplier-consumer relationship
type LinkStatus string

const (
	LinkStatusPending  LinkStatus = "pending"
	LinkStatusAccepted LinkStatus = "accepted"
	LinkStatusRemoved  LinkStatus = "removed"
	LinkStatusBlocked  LinkStatus = "blocked"
)

// Link is the relationship between one Supplier and one Consumer.
// At most one row exists per (supplier, consumer) pair, regardless of status.
type Link struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	SupplierID  uint       `json:"supplier_id" gorm:"index;uniqueIndex:idx_supplier_consumer;not null"`
	ConsumerID  uint       `json:"consumer_id" gorm:"index;uniqueIndex:idx_supplier_consumer;not null"`
	Status      LinkStatus `json:"status" gorm:"type:varchar(20);default:'pending';not null"`
	RequestedBy uint       `json:"requested_by" gorm:"not null"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Relations (optional for GORM to preload)
	Supplier Supplier `json:"-" gorm:"foreignKey:SupplierID"`
	Consumer Consumer `json:"-" gorm:"foreignKey:ConsumerID"`
}
