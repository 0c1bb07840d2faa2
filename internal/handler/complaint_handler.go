package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"supplylink/internal/apperror"
	"supplylink/internal/authz"
	"supplylink/internal/model"
	"supplylink/internal/transition"
	"supplylink/pkg/database"
	"supplylink/pkg/logger"
	"supplylink/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateComplaint raises a complaint about an order. Only the consumer that
// placed the order may complain; a linked incident is created in the same
// transaction so the supplier side always has an operational record.
func CreateComplaint(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("complaint", "create")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	var req struct {
		OrderID     uint   `json:"order_id"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data", "kind": "invalid_request"})
	}
	if req.Description == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "description is required", "kind": "invalid_request"})
	}

	db := database.GetDB()

	consumer, err := authz.RequireConsumer(db, user.ID)
	if err != nil {
		return fail(c, log, err)
	}

	var order model.Order
	if result := db.First(&order, req.OrderID); result.Error != nil {
		return fail(c, log, apperror.New(apperror.NotFound, "order not found"))
	}
	if order.ConsumerID != consumer.ID {
		return fail(c, log, apperror.New(apperror.Forbidden, "you can only complain about your own orders"))
	}

	complaint := model.Complaint{
		OrderID:     order.ID,
		ConsumerID:  consumer.ID,
		SupplierID:  order.SupplierID,
		CreatedBy:   user.ID,
		Status:      model.ComplaintStatusOpen,
		Description: req.Description,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&complaint).Error; err != nil {
			return err
		}
		incident := model.Incident{
			ComplaintID: &complaint.ID,
			SupplierID:  order.SupplierID,
			Summary:     fmt.Sprintf("Complaint #%d - Order #%d", complaint.ID, order.ID),
			Description: req.Description,
			Status:      model.IncidentStatusOpen,
			CreatedBy:   user.ID,
		}
		return tx.Create(&incident).Error
	})
	if err != nil {
		log.Error("Failed to create complaint", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create complaint"})
	}

	log.Info("Complaint created",
		zap.Uint("complaint_id", complaint.ID),
		zap.Uint("order_id", order.ID))
	return c.JSON(http.StatusCreated, complaint)
}

// ListMyComplaints lists complaints visible to the current user: their own as
// a consumer, or those against suppliers they are staff of.
func ListMyComplaints(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("complaint", "list_my")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	db := database.GetDB()
	defer prometheus.TrackDBOperation("query")(time.Now())

	var complaints []model.Complaint

	var consumer model.Consumer
	if result := db.Where("user_id = ?", user.ID).First(&consumer); result.Error == nil {
		if err := db.Where("consumer_id = ?", consumer.ID).
			Order("created_at DESC").Find(&complaints).Error; err != nil {
			return fail(c, log, err)
		}
	} else {
		var supplierUsers []model.SupplierUser
		if err := db.Where("user_id = ?", user.ID).Find(&supplierUsers).Error; err != nil {
			return fail(c, log, err)
		}
		supplierIDs := make([]uint, 0, len(supplierUsers))
		for _, su := range supplierUsers {
			supplierIDs = append(supplierIDs, su.SupplierID)
		}
		if len(supplierIDs) > 0 {
			if err := db.Where("supplier_id IN ?", supplierIDs).
				Order("created_at DESC").Find(&complaints).Error; err != nil {
				return fail(c, log, err)
			}
		}
	}

	if complaints == nil {
		complaints = []model.Complaint{}
	}
	return c.JSON(http.StatusOK, complaints)
}

// UpdateComplaintStatus moves a complaint through its lifecycle as supplier
// staff. The allowed transitions depend on the caller's role; the linked
// incident is updated in the same transaction to mirror the complaint.
func UpdateComplaintStatus(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("complaint", "update_status")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	complaintID, err := strconv.ParseUint(c.Param("complaint_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid complaint ID", "kind": "invalid_request"})
	}

	var req struct {
		NewStatus  model.ComplaintStatus `json:"new_status"`
		Resolution string                `json:"resolution"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data", "kind": "invalid_request"})
	}

	db := database.GetDB()

	var complaint model.Complaint
	if result := db.First(&complaint, complaintID); result.Error != nil {
		return fail(c, log, apperror.New(apperror.NotFound, "complaint not found"))
	}

	supplierUser, err := authz.RequireStaffAny(db, complaint.SupplierID, user.ID)
	if err != nil {
		return fail(c, log, err)
	}

	incidentStatus, err := transition.Complaint(complaint.Status, req.NewStatus, supplierUser.Role)
	if err != nil {
		log.Warn("Complaint transition rejected",
			zap.Uint64("complaint_id", complaintID),
			zap.String("from", string(complaint.Status)),
			zap.String("to", string(req.NewStatus)),
			zap.String("role", string(supplierUser.Role)),
			zap.Error(err))
		return fail(c, log, err)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	err = db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":     req.NewStatus,
			"handled_by": user.ID,
		}
		if req.Resolution != "" {
			updates["resolution"] = req.Resolution
		}
		if err := tx.Model(&model.Complaint{}).Where("id = ?", complaint.ID).
			Updates(updates).Error; err != nil {
			return err
		}
		return tx.Model(&model.Incident{}).Where("complaint_id = ?", complaint.ID).
			Update("status", incidentStatus).Error
	})
	if err != nil {
		log.Error("Failed to update complaint status", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update complaint"})
	}

	complaint.Status = req.NewStatus
	complaint.HandledBy = &user.ID
	if req.Resolution != "" {
		complaint.Resolution = req.Resolution
	}

	prometheus.ComplaintStatusCounter.WithLabelValues(string(req.NewStatus)).Inc()
	log.Info("Complaint status updated",
		zap.Uint64("complaint_id", complaintID),
		zap.String("status", string(req.NewStatus)))
	return c.JSON(http.StatusOK, complaint)
}

// EscalateComplaint hands an in-progress complaint to management. Sales only;
// Owner/Manager are the escalation target, not its source.
func EscalateComplaint(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("complaint", "escalate")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	complaintID, err := strconv.ParseUint(c.Param("complaint_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid complaint ID", "kind": "invalid_request"})
	}

	db := database.GetDB()

	var complaint model.Complaint
	if result := db.First(&complaint, complaintID); result.Error != nil {
		return fail(c, log, apperror.New(apperror.NotFound, "complaint not found"))
	}

	supplierUser, err := authz.RequireStaffAny(db, complaint.SupplierID, user.ID)
	if err != nil {
		return fail(c, log, err)
	}
	if supplierUser.Role != model.SupplierRoleSales {
		return fail(c, log, apperror.New(apperror.Forbidden, "only Sales can escalate complaints"))
	}
	if complaint.Status != model.ComplaintStatusInProgress {
		return fail(c, log, apperror.New(apperror.InvalidTransition,
			"only IN_PROGRESS complaints can be escalated"))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Complaint{}).Where("id = ?", complaint.ID).
			Updates(map[string]interface{}{
				"status":     model.ComplaintStatusEscalated,
				"handled_by": user.ID,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&model.Incident{}).Where("complaint_id = ?", complaint.ID).
			Update("status", model.IncidentStatusInProgress).Error
	})
	if err != nil {
		log.Error("Failed to escalate complaint", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to escalate complaint"})
	}

	complaint.Status = model.ComplaintStatusEscalated
	complaint.HandledBy = &user.ID

	prometheus.ComplaintStatusCounter.WithLabelValues(string(model.ComplaintStatusEscalated)).Inc()
	log.Info("Complaint escalated", zap.Uint64("complaint_id", complaintID))
	return c.JSON(http.StatusOK, complaint)
}
