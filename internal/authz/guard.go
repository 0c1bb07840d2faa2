package authz

import (
	"supplylink/internal/apperror"
	"supplylink/internal/model"

	"gorm.io/gorm"
)

// SupplierRoleFor returns the user's role association for a supplier, or nil
// when the user is not staff of that supplier.
func SupplierRoleFor(db *gorm.DB, supplierID, userID uint) (*model.SupplierUser, error) {
	var supplierUser model.SupplierUser
	result := db.Where("supplier_id = ? AND user_id = ?", supplierID, userID).First(&supplierUser)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &supplierUser, nil
}

// RequireSupplierRole requires the user to hold one of the given roles within
// the supplier and returns the matching association.
func RequireSupplierRole(db *gorm.DB, supplierID, userID uint, roles ...model.SupplierRole) (*model.SupplierUser, error) {
	supplierUser, err := SupplierRoleFor(db, supplierID, userID)
	if err != nil {
		return nil, err
	}
	if supplierUser == nil {
		return nil, apperror.New(apperror.Forbidden, "user is not associated with this supplier")
	}
	for _, role := range roles {
		if supplierUser.Role == role {
			return supplierUser, nil
		}
	}
	return nil, apperror.New(apperror.Forbidden, "user does not have the required role for this supplier")
}

// RequireOwner requires the user to be OWNER of the supplier
func RequireOwner(db *gorm.DB, supplierID, userID uint) (*model.SupplierUser, error) {
	return RequireSupplierRole(db, supplierID, userID, model.SupplierRoleOwner)
}

// RequireOwnerOrManager requires the user to be OWNER or MANAGER of the supplier
func RequireOwnerOrManager(db *gorm.DB, supplierID, userID uint) (*model.SupplierUser, error) {
	return RequireSupplierRole(db, supplierID, userID,
		model.SupplierRoleOwner, model.SupplierRoleManager)
}

// RequireStaffAny requires any staff role (OWNER, MANAGER or SALES)
func RequireStaffAny(db *gorm.DB, supplierID, userID uint) (*model.SupplierUser, error) {
	return RequireSupplierRole(db, supplierID, userID,
		model.SupplierRoleOwner, model.SupplierRoleManager, model.SupplierRoleSales)
}

// RequireConsumer requires the user to have a Consumer profile and returns it
func RequireConsumer(db *gorm.DB, userID uint) (*model.Consumer, error) {
	var consumer model.Consumer
	result := db.Where("user_id = ?", userID).First(&consumer)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, apperror.New(apperror.Forbidden, "user is not associated with a consumer")
		}
		return nil, result.Error
	}
	return &consumer, nil
}

// RequirePlatformAdmin requires the user to hold the PLATFORM_ADMIN global role
func RequirePlatformAdmin(user *model.User) error {
	if user.GlobalRole != model.GlobalRolePlatformAdmin {
		return apperror.New(apperror.Forbidden, "platform admin access required")
	}
	return nil
}
