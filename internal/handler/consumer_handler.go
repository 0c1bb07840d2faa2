package handler

import (
	"net/http"
	"time"

	"supplylink/internal/model"
	"supplylink/pkg/database"
	"supplylink/pkg/logger"
	"supplylink/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ConsumerRequest defines the structure for consumer profile creation
type ConsumerRequest struct {
	OrganizationName string `json:"organization_name"`
	ContactEmail     string `json:"contact_email"`
	ContactPhone     string `json:"contact_phone"`
	Address          string `json:"address"`
}

// CreateConsumer creates the consumer profile for the current user.
// A user holds at most one consumer profile.
func CreateConsumer(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("consumer", "create")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	var req ConsumerRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data", "kind": "invalid_request"})
	}

	if req.OrganizationName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "organization_name is required", "kind": "invalid_request"})
	}

	// One consumer profile per user
	var existing model.Consumer
	if result := database.GetDB().Where("user_id = ?", user.ID).First(&existing); result.Error == nil {
		log.Warn("Consumer profile already exists", zap.Uint("user_id", user.ID))
		return c.JSON(http.StatusConflict, echo.Map{"error": "consumer profile already exists for this user", "kind": "conflict"})
	}

	consumer := model.Consumer{
		UserID:           user.ID,
		OrganizationName: req.OrganizationName,
		ContactEmail:     req.ContactEmail,
		ContactPhone:     req.ContactPhone,
		Address:          req.Address,
		IsActive:         true,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&consumer); result.Error != nil {
		log.Error("Failed to create consumer", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create consumer"})
	}

	log.Info("Consumer created",
		zap.Uint("consumer_id", consumer.ID),
		zap.String("organization", consumer.OrganizationName))
	return c.JSON(http.StatusCreated, consumer)
}
