package model

import (
	"time"
)

// SupplierRole is a staff role scoped to one supplier
type SupplierRole string

const (
	SupplierRoleOwner   SupplierRole = "OWNER"
	SupplierRoleManager SupplierRole = "MANAGER"
	SupplierRoleSales   SupplierRole = "SALES"
)

// SupplierUser associates a User with a Supplier under a single role.
// At most one row exists per (supplier, user) pair.
type SupplierUser struct {
	ID         uint         `json:"id" gorm:"primaryKey"`
	SupplierID uint         `json:"supplier_id" gorm:"index;uniqueIndex:idx_supplier_user;not null"`
	UserID     uint         `json:"user_id" gorm:"index;uniqueIndex:idx_supplier_user;not null"`
	Role       SupplierRole `json:"role" gorm:"type:varchar(50);not null"`
	CreatedAt  time.Time    `json:"created_at"`

	// Relations (optional for GORM to preload)
	Supplier Supplier `json:"supplier,omitempty" gorm:"foreignKey:SupplierID"`
	User     User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
