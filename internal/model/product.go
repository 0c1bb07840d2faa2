package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Delivery methods accepted on orders
const (
	DeliveryMethodDelivery = "delivery"
	DeliveryMethodPickup   = "pickup"
)

// Product belongs to exactly one Supplier. Soft-deleted via the active flag.
type Product struct {
	ID                uint            `json:"id" gorm:"primaryKey"`
	SupplierID        uint            `json:"supplier_id" gorm:"index;not null"`
	Name              string          `json:"name" gorm:"type:varchar(100);not null"`
	Description       string          `json:"description" gorm:"type:text"`
	Unit              string          `json:"unit" gorm:"type:varchar(20);not null"` // e.g., "kg", "piece", "box"
	Price             decimal.Decimal `json:"price" gorm:"type:numeric(10,2);not null"`
	Discount          decimal.Decimal `json:"discount" gorm:"type:numeric(5,2);default:0"` // percentage
	Stock             int             `json:"stock" gorm:"default:0"`
	MinOrderQuantity  int             `json:"min_order_quantity" gorm:"default:1"`
	DeliveryAvailable bool            `json:"delivery_available" gorm:"default:true"`
	PickupAvailable   bool            `json:"pickup_available" gorm:"default:true"`
	LeadTimeDays      int             `json:"lead_time_days" gorm:"default:0"`
	IsActive          bool            `json:"is_active" gorm:"default:true"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
