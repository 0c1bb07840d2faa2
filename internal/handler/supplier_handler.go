package handler

import (
	"crypto/rand"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"supplylink/internal/apperror"
	"supplylink/internal/authz"
	"supplylink/internal/model"
	"supplylink/pkg/database"
	"supplylink/pkg/logger"
	"supplylink/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SupplierRequest defines the structure for supplier creation requests
type SupplierRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
	Address      string `json:"address"`
}

// ListSuppliers retrieves all active suppliers (public, so consumers can
// discover suppliers and request links)
func ListSuppliers(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("supplier", "list")

	defer prometheus.TrackDBOperation("query")(time.Now())
	var suppliers []model.Supplier
	result := database.GetDB().Where("is_active = ?", true).Find(&suppliers)
	if result.Error != nil {
		log.Error("Failed to retrieve suppliers", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve suppliers"})
	}

	return c.JSON(http.StatusOK, suppliers)
}

// CreateSupplier creates a new supplier; the creator becomes its sole OWNER
func CreateSupplier(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("supplier", "create")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	var req SupplierRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data", "kind": "invalid_request"})
	}

	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required", "kind": "invalid_request"})
	}

	supplier := model.Supplier{
		Name:         req.Name,
		Description:  req.Description,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		Address:      req.Address,
		IsActive:     true,
	}

	// Supplier and its OWNER row are written together
	defer prometheus.TrackDBOperation("insert")(time.Now())
	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&supplier).Error; err != nil {
			return err
		}
		ownerRole := model.SupplierUser{
			SupplierID: supplier.ID,
			UserID:     user.ID,
			Role:       model.SupplierRoleOwner,
		}
		return tx.Create(&ownerRole).Error
	})
	if err != nil {
		log.Error("Failed to create supplier", zap.String("name", req.Name), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create supplier"})
	}

	log.Info("Supplier created",
		zap.Uint("supplier_id", supplier.ID),
		zap.String("name", supplier.Name),
		zap.Uint("owner_user_id", user.ID))
	return c.JSON(http.StatusCreated, supplier)
}

// ListMySuppliers lists suppliers where the current user is staff
func ListMySuppliers(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("supplier", "list_my")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var supplierUsers []model.SupplierUser
	if err := database.GetDB().Where("user_id = ?", user.ID).Find(&supplierUsers).Error; err != nil {
		return fail(c, log, err)
	}

	supplierIDs := make([]uint, 0, len(supplierUsers))
	for _, su := range supplierUsers {
		supplierIDs = append(supplierIDs, su.SupplierID)
	}

	suppliers := []model.Supplier{}
	if len(supplierIDs) > 0 {
		if err := database.GetDB().Where("id IN ?", supplierIDs).Find(&suppliers).Error; err != nil {
			return fail(c, log, err)
		}
	}

	return c.JSON(http.StatusOK, suppliers)
}

// DeleteSupplier deactivates a supplier (OWNER only, soft delete)
func DeleteSupplier(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("supplier", "delete")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	supplierID, err := strconv.ParseUint(c.Param("supplier_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid supplier ID", "kind": "invalid_request"})
	}

	if _, err := authz.RequireOwner(database.GetDB(), uint(supplierID), user.ID); err != nil {
		return fail(c, log, err)
	}

	var supplier model.Supplier
	if result := database.GetDB().First(&supplier, supplierID); result.Error != nil {
		return fail(c, log, apperror.New(apperror.NotFound, "supplier not found"))
	}

	// Soft delete preserves data for compliance/archival
	defer prometheus.TrackDBOperation("update")(time.Now())
	supplier.IsActive = false
	if result := database.GetDB().Save(&supplier); result.Error != nil {
		log.Error("Failed to deactivate supplier", zap.Uint64("supplier_id", supplierID), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to deactivate supplier"})
	}

	log.Info("Supplier deactivated", zap.Uint64("supplier_id", supplierID))
	return c.NoContent(http.StatusNoContent)
}

// StaffInviteRequest invites a staff member by email
type StaffInviteRequest struct {
	Email    string             `json:"email"`
	Role     model.SupplierRole `json:"role"`
	FullName string             `json:"full_name,omitempty"`
}

// StaffUserOut is a staff association with user display fields
type StaffUserOut struct {
	ID         uint               `json:"id"`
	SupplierID uint               `json:"supplier_id"`
	UserID     uint               `json:"user_id"`
	Role       model.SupplierRole `json:"role"`
	CreatedAt  time.Time          `json:"created_at"`
	Email      string             `json:"email"`
	FullName   string             `json:"full_name"`
}

const tempPasswordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"

func generateTempPassword(length int) (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(tempPasswordAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(tempPasswordAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// nameFromEmail derives a display name from the mailbox part of an email,
// so "jane.doe@corp.com" becomes "Jane Doe".
func nameFromEmail(email string) string {
	words := strings.Split(strings.SplitN(email, "@", 2)[0], ".")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// AddStaff adds a staff member to a supplier (OWNER only).
//
// When the email is unknown a new account is created with a temporary
// password that the owner passes on to the staff member.
func AddStaff(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("supplier", "add_staff")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	supplierID, err := strconv.ParseUint(c.Param("supplier_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid supplier ID", "kind": "invalid_request"})
	}

	var req StaffInviteRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data", "kind": "invalid_request"})
	}

	if _, err := authz.RequireOwner(database.GetDB(), uint(supplierID), user.ID); err != nil {
		return fail(c, log, err)
	}

	// OWNER is only assigned at supplier creation
	if req.Role != model.SupplierRoleManager && req.Role != model.SupplierRoleSales {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be MANAGER or SALES", "kind": "invalid_request"})
	}

	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required", "kind": "invalid_request"})
	}

	var supplier model.Supplier
	if result := database.GetDB().First(&supplier, supplierID); result.Error != nil {
		return fail(c, log, apperror.New(apperror.NotFound, "supplier not found"))
	}

	db := database.GetDB()
	var targetUser model.User
	userCreated := false
	tempPassword := ""

	result := db.Where("email = ?", req.Email).First(&targetUser)
	if result.Error != nil {
		if result.Error != gorm.ErrRecordNotFound {
			return fail(c, log, result.Error)
		}

		// Unknown email: create the account with a temporary password
		tempPassword, err = generateTempPassword(12)
		if err != nil {
			log.Error("Failed to generate temporary password", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to add staff"})
		}
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
		if err != nil {
			log.Error("Failed to hash temporary password", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to add staff"})
		}

		fullName := req.FullName
		if fullName == "" {
			fullName = nameFromEmail(req.Email)
		}

		targetUser = model.User{
			Email:    req.Email,
			Password: string(hashedPassword),
			FullName: fullName,
			IsActive: true,
		}
		if result := db.Create(&targetUser); result.Error != nil {
			log.Error("Failed to create staff user", zap.Error(result.Error))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to add staff"})
		}
		userCreated = true
	} else {
		// Existing user may hold at most one role per supplier
		var existingRole model.SupplierUser
		if result := db.Where("supplier_id = ? AND user_id = ?", supplierID, targetUser.ID).First(&existingRole); result.Error == nil {
			return fail(c, log, apperror.New(apperror.Conflict, "user already has a role in this supplier"))
		}
	}

	staffRole := model.SupplierUser{
		SupplierID: uint(supplierID),
		UserID:     targetUser.ID,
		Role:       req.Role,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := db.Create(&staffRole); result.Error != nil {
		log.Error("Failed to create staff role", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to add staff"})
	}

	log.Info("Staff member added",
		zap.Uint64("supplier_id", supplierID),
		zap.Uint("user_id", targetUser.ID),
		zap.String("role", string(req.Role)),
		zap.Bool("user_created", userCreated))

	response := echo.Map{
		"staff": StaffUserOut{
			ID:         staffRole.ID,
			SupplierID: staffRole.SupplierID,
			UserID:     staffRole.UserID,
			Role:       staffRole.Role,
			CreatedAt:  staffRole.CreatedAt,
			Email:      targetUser.Email,
			FullName:   targetUser.FullName,
		},
		"user_created": userCreated,
	}
	if userCreated {
		response["temporary_password"] = tempPassword
	}

	return c.JSON(http.StatusCreated, response)
}

// ListStaff lists staff associations for a supplier (OWNER/MANAGER only)
func ListStaff(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("supplier", "list_staff")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	supplierID, err := strconv.ParseUint(c.Param("supplier_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid supplier ID", "kind": "invalid_request"})
	}

	if _, err := authz.RequireOwnerOrManager(database.GetDB(), uint(supplierID), user.ID); err != nil {
		return fail(c, log, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var staffRoles []model.SupplierUser
	if err := database.GetDB().Preload("User").Where("supplier_id = ?", supplierID).Find(&staffRoles).Error; err != nil {
		return fail(c, log, err)
	}

	result := make([]StaffUserOut, 0, len(staffRoles))
	for _, staffRole := range staffRoles {
		result = append(result, StaffUserOut{
			ID:         staffRole.ID,
			SupplierID: staffRole.SupplierID,
			UserID:     staffRole.UserID,
			Role:       staffRole.Role,
			CreatedAt:  staffRole.CreatedAt,
			Email:      staffRole.User.Email,
			FullName:   staffRole.User.FullName,
		})
	}

	return c.JSON(http.StatusOK, result)
}

// RemoveStaff removes a staff member from a supplier (OWNER only)
func RemoveStaff(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("supplier", "remove_staff")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	supplierID, err := strconv.ParseUint(c.Param("supplier_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid supplier ID", "kind": "invalid_request"})
	}
	targetUserID, err := strconv.ParseUint(c.Param("user_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user ID", "kind": "invalid_request"})
	}

	if _, err := authz.RequireOwner(database.GetDB(), uint(supplierID), user.ID); err != nil {
		return fail(c, log, err)
	}

	if uint(targetUserID) == user.ID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot remove yourself as staff. Transfer ownership first", "kind": "invalid_request"})
	}

	var staffRole model.SupplierUser
	result := database.GetDB().Where("supplier_id = ? AND user_id = ?", supplierID, targetUserID).First(&staffRole)
	if result.Error != nil {
		return fail(c, log, apperror.New(apperror.NotFound, "staff member not found for this supplier"))
	}

	if staffRole.Role == model.SupplierRoleOwner {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot remove another OWNER. Transfer ownership first", "kind": "invalid_request"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if result := database.GetDB().Delete(&staffRole); result.Error != nil {
		log.Error("Failed to remove staff role", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to remove staff"})
	}

	log.Info("Staff member removed",
		zap.Uint64("supplier_id", supplierID),
		zap.Uint64("user_id", targetUserID))
	return c.NoContent(http.StatusNoContent)
}
