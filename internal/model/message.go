package model

import (
	"time"
)

// Message is a chat entry between a Supplier and Consumer pair, optionally
// scoped to an Order. Requires an accepted Link at send/read time.
type Message struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	SupplierID uint      `json:"supplier_id" gorm:"index;not null"`
	ConsumerID uint      `json:"consumer_id" gorm:"index;not null"`
	OrderID    *uint     `json:"order_id,omitempty" gorm:"index"`
	SenderID   uint      `json:"sender_id" gorm:"not null"`
	Content    string    `json:"content" gorm:"type:text;not null"`
	FileURL    string    `json:"file_url,omitempty" gorm:"type:varchar(255)"`
	CreatedAt  time.Time `json:"created_at"`
}
