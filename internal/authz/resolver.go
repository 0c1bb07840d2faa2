package authz

import (
	"supplylink/internal/model"

	"gorm.io/gorm"
)

// Main role labels derived by fixed precedence for display
const (
	MainRolePlatformAdmin   = "PLATFORM_ADMIN"
	MainRoleSupplierOwner   = "SUPPLIER_OWNER"
	MainRoleSupplierManager = "SUPPLIER_MANAGER"
	MainRoleSupplierSales   = "SUPPLIER_SALES"
	MainRoleConsumer        = "CONSUMER"
	MainRoleUser            = "USER"
)

// SupplierRoleInfo is one (supplier, role) association of a user
type SupplierRoleInfo struct {
	SupplierID uint               `json:"supplier_id"`
	Role       model.SupplierRole `json:"role"`
}

// RoleFacts is everything role-related known about a user. Both the login
// path and the profile-read path derive display roles from this one struct.
type RoleFacts struct {
	GlobalRole    model.GlobalRole
	SupplierRoles []SupplierRoleInfo
	ConsumerID    *uint
}

// Resolve gathers the role facts for a user from the store. Side-effect free.
func Resolve(db *gorm.DB, user *model.User) (*RoleFacts, error) {
	facts := &RoleFacts{GlobalRole: user.GlobalRole}

	var supplierUsers []model.SupplierUser
	if err := db.Where("user_id = ?", user.ID).Find(&supplierUsers).Error; err != nil {
		return nil, err
	}
	for _, su := range supplierUsers {
		facts.SupplierRoles = append(facts.SupplierRoles, SupplierRoleInfo{
			SupplierID: su.SupplierID,
			Role:       su.Role,
		})
	}

	var consumer model.Consumer
	if err := db.Where("user_id = ?", user.ID).First(&consumer).Error; err == nil {
		facts.ConsumerID = &consumer.ID
	}

	return facts, nil
}

// MainRole derives the single display role by fixed precedence:
// PLATFORM_ADMIN > OWNER > MANAGER > SALES > CONSUMER > USER.
func (f *RoleFacts) MainRole() string {
	if f.GlobalRole == model.GlobalRolePlatformAdmin {
		return MainRolePlatformAdmin
	}

	if f.HasSupplierRole(model.SupplierRoleOwner) {
		return MainRoleSupplierOwner
	}
	if f.HasSupplierRole(model.SupplierRoleManager) {
		return MainRoleSupplierManager
	}
	if f.HasSupplierRole(model.SupplierRoleSales) {
		return MainRoleSupplierSales
	}

	if f.ConsumerID != nil {
		return MainRoleConsumer
	}

	return MainRoleUser
}

// HasSupplierRole reports whether the user holds the role in any supplier
func (f *RoleFacts) HasSupplierRole(roles ...model.SupplierRole) bool {
	for _, info := range f.SupplierRoles {
		for _, role := range roles {
			if info.Role == role {
				return true
			}
		}
	}
	return false
}
