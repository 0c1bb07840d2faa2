package model

import (
	"time"
)

// ComplaintStatus is the lifecycle state of a complaint
type ComplaintStatus string

const (
	ComplaintStatusOpen       ComplaintStatus = "open"
	ComplaintStatusInProgress ComplaintStatus = "in_progress"
	ComplaintStatusResolved   ComplaintStatus = "resolved"
	ComplaintStatusEscalated  ComplaintStatus = "escalated"
)

// Complaint is raised by the consumer that owns the referenced order.
// Creating a complaint always spawns a linked Incident in the same transaction.
type Complaint struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	OrderID     uint            `json:"order_id" gorm:"index;not null"`
	ConsumerID  uint            `json:"consumer_id" gorm:"index;not null"`
	SupplierID  uint            `json:"supplier_id" gorm:"index;not null"`
	CreatedBy   uint            `json:"created_by" gorm:"not null"`
	HandledBy   *uint           `json:"handled_by,omitempty"`
	Status      ComplaintStatus `json:"status" gorm:"type:varchar(20);default:'open';not null"`
	Description string          `json:"description" gorm:"type:text;not null"`
	Resolution  string          `json:"resolution,omitempty" gorm:"type:text"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
