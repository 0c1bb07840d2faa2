package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusFulfilled OrderStatus = "fulfilled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order belongs to one Supplier and one Consumer. Item prices are frozen at
// creation time, independent of later product price changes.
type Order struct {
	ID                    uint            `json:"id" gorm:"primaryKey"`
	SupplierID            uint            `json:"supplier_id" gorm:"index;not null"`
	ConsumerID            uint            `json:"consumer_id" gorm:"index;not null"`
	Status                OrderStatus     `json:"status" gorm:"type:varchar(20);default:'pending';not null"`
	TotalAmount           decimal.Decimal `json:"total_amount" gorm:"type:numeric(10,2)"`
	DeliveryMethod        string          `json:"delivery_method,omitempty" gorm:"type:varchar(20)"` // "delivery" or "pickup"
	EstimatedDeliveryDate *time.Time      `json:"estimated_delivery_date,omitempty"`
	CreatedBy             uint            `json:"created_by" gorm:"not null"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`

	// Relations (optional for GORM to preload)
	Supplier Supplier    `json:"-" gorm:"foreignKey:SupplierID"`
	Consumer Consumer    `json:"-" gorm:"foreignKey:ConsumerID"`
	Items    []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

// OrderItem is one line of an order with price and name snapshots, so order
// history survives catalog edits and product retirement.
type OrderItem struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	OrderID     uint            `json:"order_id" gorm:"index;not null"`
	ProductID   uint            `json:"product_id" gorm:"index;not null"`
	ProductName string          `json:"product_name" gorm:"type:varchar(100);not null"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:numeric(10,2);not null"`
	TotalPrice  decimal.Decimal `json:"total_price" gorm:"type:numeric(10,2);not null"`
}
