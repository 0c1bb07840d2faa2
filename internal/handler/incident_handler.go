package handler

import (
	"net/http"
	"strconv"
	"time"

	"supplylink/internal/apperror"
	"supplylink/internal/authz"
	"supplylink/internal/model"
	"supplylink/pkg/database"
	"supplylink/pkg/logger"
	"supplylink/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CreateIncident records a standalone operational incident for a supplier.
// Owner/Manager only; incidents spawned by complaints are created elsewhere.
func CreateIncident(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("incident", "create")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	var req struct {
		SupplierID  uint   `json:"supplier_id"`
		Summary     string `json:"summary"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data", "kind": "invalid_request"})
	}
	if req.Summary == "" || req.Description == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "summary and description are required", "kind": "invalid_request"})
	}

	db := database.GetDB()
	if _, err := authz.RequireOwnerOrManager(db, req.SupplierID, user.ID); err != nil {
		return fail(c, log, err)
	}

	incident := model.Incident{
		SupplierID:  req.SupplierID,
		Summary:     req.Summary,
		Description: req.Description,
		Status:      model.IncidentStatusOpen,
		CreatedBy:   user.ID,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := db.Create(&incident); result.Error != nil {
		log.Error("Failed to create incident", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create incident"})
	}

	log.Info("Incident created",
		zap.Uint("incident_id", incident.ID),
		zap.Uint("supplier_id", incident.SupplierID))
	return c.JSON(http.StatusCreated, incident)
}

// ListMyIncidents lists incidents: platform admins see everything, supplier
// staff see their suppliers' incidents.
func ListMyIncidents(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("incident", "list_my")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	db := database.GetDB()
	defer prometheus.TrackDBOperation("query")(time.Now())

	var incidents []model.Incident

	if user.GlobalRole == model.GlobalRolePlatformAdmin {
		if err := db.Order("created_at DESC").Find(&incidents).Error; err != nil {
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
				Order("created_at DESC").Find(&incidents).Error; err != nil {
				return fail(c, log, err)
			}
		}
	}

	if incidents == nil {
		incidents = []model.Incident{}
	}
	return c.JSON(http.StatusOK, incidents)
}

// UpdateIncidentStatus sets an incident's status directly. Open to the
// supplier's Owner/Manager and to platform admins; any target status is
// accepted since incidents track operational reality rather than a workflow.
func UpdateIncidentStatus(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("incident", "update_status")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	incidentID, err := strconv.ParseUint(c.Param("incident_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid incident ID", "kind": "invalid_request"})
	}

	var req struct {
		NewStatus model.IncidentStatus `json:"new_status"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data", "kind": "invalid_request"})
	}

	switch req.NewStatus {
	case model.IncidentStatusOpen, model.IncidentStatusInProgress, model.IncidentStatusResolved:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "new_status must be 'open', 'in_progress' or 'resolved'", "kind": "invalid_request"})
	}

	db := database.GetDB()

	var incident model.Incident
	if result := db.First(&incident, incidentID); result.Error != nil {
		return fail(c, log, apperror.New(apperror.NotFound, "incident not found"))
	}

	if user.GlobalRole != model.GlobalRolePlatformAdmin {
		if _, err := authz.RequireOwnerOrManager(db, incident.SupplierID, user.ID); err != nil {
			return fail(c, log, err)
		}
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := db.Model(&incident).Update("status", req.NewStatus); result.Error != nil {
		log.Error("Failed to update incident status", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update incident"})
	}

	log.Info("Incident status updated",
		zap.Uint64("incident_id", incidentID),
		zap.String("status", string(req.NewStatus)))
	return c.JSON(http.StatusOK, incident)
}
