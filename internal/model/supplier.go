package model

import (
	"time"
)

// Supplier represents an organization selling goods on the platform
type Supplier struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"type:varchar(100);index;not null"`
	Description  string    `json:"description" gorm:"type:text"`
	ContactEmail string    `json:"contact_email" gorm:"type:varchar(100)"`
	ContactPhone string    `json:"contact_phone" gorm:"type:varchar(20)"`
	Address      string    `json:"address" gorm:"type:text"`
	IsActive     bool      `json:"is_active" gorm:"default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Relations (optional for GORM to preload)
	Staff    []SupplierUser `json:"staff,omitempty" gorm:"foreignKey:SupplierID"`
	Products []Product      `json:"products,omitempty" gorm:"foreignKey:SupplierID"`
}
