package handler

import (
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
)

// LinkResponse is a link with denormalized display names
type LinkResponse struct {
	ID           uint             `json:"id"`
	SupplierID   uint             `json:"supplier_id"`
	ConsumerID   uint             `json:"consumer_id"`
	Status       model.LinkStatus `json:"status"`
	RequestedBy  uint             `json:"requested_by"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	SupplierName string           `json:"supplier_name"`
	ConsumerName string           `json:"consumer_name"`
}

func linkResponse(link *model.Link) LinkResponse {
	return LinkResponse{
		ID:           link.ID,
		SupplierID:   link.SupplierID,
		ConsumerID:   link.ConsumerID,
		Status:       link.Status,
		RequestedBy:  link.RequestedBy,
		CreatedAt:    link.CreatedAt,
		UpdatedAt:    link.UpdatedAt,
		SupplierName: link.Supplier.Name,
		ConsumerName: link.Consumer.OrganizationName,
	}
}

// CreateLink creates a link request from the current consumer to a supplier.
// At most one link may exist per (supplier, consumer) pair, in any status.
func CreateLink(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("link", "create")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	var req struct {
		SupplierID uint `json:"supplier_id"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data", "kind": "invalid_request"})
	}

	db := database.GetDB()

	consumer, err := authz.RequireConsumer(db, user.ID)
	if err != nil {
		return fail(c, log, err)
	}

	var supplier model.Supplier
	if result := db.First(&supplier, req.SupplierID); result.Error != nil {
		return fail(c, log, apperror.New(apperror.NotFound, "supplier not found"))
	}

	// Uniqueness check regardless of status
	var existing model.Link
	result := db.Where("supplier_id = ? AND consumer_id = ?", req.SupplierID, consumer.ID).First(&existing)
	if result.Error == nil {
		log.Warn("Duplicate link request",
			zap.Uint("supplier_id", req.SupplierID),
			zap.Uint("consumer_id", consumer.ID))
		return fail(c, log, apperror.New(apperror.Conflict, "link already exists between this consumer and supplier"))
	}

	link := model.Link{
		SupplierID:  req.SupplierID,
		ConsumerID:  consumer.ID,
		Status:      model.LinkStatusPending,
		RequestedBy: user.ID,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := db.Create(&link); result.Error != nil {
		log.Error("Failed to create link", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create link"})
	}

	link.Supplier = supplier
	link.Consumer = *consumer

	log.Info("Link requested",
		zap.Uint("link_id", link.ID),
		zap.Uint("supplier_id", link.SupplierID),
		zap.Uint("consumer_id", link.ConsumerID))
	return c.JSON(http.StatusCreated, linkResponse(&link))
}

// ListMyLinks lists links for the current user, as consumer or supplier staff
func ListMyLinks(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("link", "list_my")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	db := database.GetDB()
	defer prometheus.TrackDBOperation("query")(time.Now())

	var links []model.Link

	var consumer model.Consumer
	if result := db.Where("user_id = ?", user.ID).First(&consumer); result.Error == nil {
		if err := db.Preload("Supplier").Preload("Consumer").
			Where("consumer_id = ?", consumer.ID).Find(&links).Error; err != nil {
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
			if err := db.Preload("Supplier").Preload("Consumer").
				Where("supplier_id IN ?", supplierIDs).Find(&links).Error; err != nil {
				return fail(c, log, err)
			}
		}
	}

	result := make([]LinkResponse, 0, len(links))
	for i := range links {
		result = append(result, linkResponse(&links[i]))
	}
	return c.JSON(http.StatusOK, result)
}

// UpdateLinkStatus transitions a link through its lifecycle.
// Accept/block require supplier Owner/Manager on a pending link; remove is
// open to supplier Owner/Manager from any state and to the consumer of an
// accepted link.
func UpdateLinkStatus(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("link", "update_status")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	linkID, err := strconv.ParseUint(c.Param("link_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid link ID", "kind": "invalid_request"})
	}

	var req struct {
		Status model.LinkStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data", "kind": "invalid_request"})
	}

	db := database.GetDB()

	var link model.Link
	if result := db.Preload("Supplier").Preload("Consumer").First(&link, linkID); result.Error != nil {
		return fail(c, log, apperror.New(apperror.NotFound, "link not found"))
	}

	// Resolve the actor's relationship to this link
	var actor transition.LinkActor

	supplierUser, err := authz.SupplierRoleFor(db, link.SupplierID, user.ID)
	if err != nil {
		return fail(c, log, err)
	}
	if supplierUser != nil &&
		(supplierUser.Role == model.SupplierRoleOwner || supplierUser.Role == model.SupplierRoleManager) {
		actor.IsOwnerOrManager = true
	}

	var consumer model.Consumer
	if result := db.Where("user_id = ?", user.ID).First(&consumer); result.Error == nil {
		actor.IsLinkConsumer = consumer.ID == link.ConsumerID
	}

	if err := transition.Link(link.Status, req.Status, actor); err != nil {
		log.Warn("Link transition rejected",
			zap.Uint64("link_id", linkID),
			zap.String("from", string(link.Status)),
			zap.String("to", string(req.Status)),
			zap.Error(err))
		return fail(c, log, err)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	link.Status = req.Status
	if result := db.Model(&model.Link{}).Where("id = ?", link.ID).
		Update("status", req.Status); result.Error != nil {
		log.Error("Failed to update link status", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update link"})
	}

	log.Info("Link status updated",
		zap.Uint64("link_id", linkID),
		zap.String("status", string(req.Status)))
	return c.JSON(http.StatusOK, linkResponse(&link))
}
