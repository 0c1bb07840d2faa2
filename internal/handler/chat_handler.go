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
	"supplylink/pkg/storage"
	"supplylink/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MessageResponse is a message with denormalized sender info
type MessageResponse struct {
	ID         uint      `json:"id"`
	SupplierID uint      `json:"supplier_id"`
	ConsumerID uint      `json:"consumer_id"`
	OrderID    *uint     `json:"order_id,omitempty"`
	SenderID   uint      `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	SenderRole string    `json:"sender_role"`
	Content    string    `json:"content"`
	FileURL    string    `json:"file_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// threadParticipant identifies which side of a thread the user speaks for.
// The user must be the thread's consumer or staff of the thread's supplier,
// and the link must currently be accepted.
func threadParticipant(db *gorm.DB, supplierID, consumerID, userID uint) (string, error) {
	var link model.Link
	result := db.Where("supplier_id = ? AND consumer_id = ? AND status = ?",
		supplierID, consumerID, model.LinkStatusAccepted).First(&link)
	if result.Error != nil {
		return "", apperror.New(apperror.Forbidden,
			"no accepted link between this supplier and consumer")
	}

	var consumer model.Consumer
	if result := db.Where("user_id = ?", userID).First(&consumer); result.Error == nil {
		if consumer.ID == consumerID {
			return "CONSUMER", nil
		}
	}

	supplierUser, err := authz.SupplierRoleFor(db, supplierID, userID)
	if err != nil {
		return "", err
	}
	if supplierUser != nil {
		return string(supplierUser.Role), nil
	}

	return "", apperror.New(apperror.Forbidden, "you are not a participant in this conversation")
}

func messageResponse(msg *model.Message, senderName, senderRole string) MessageResponse {
	return MessageResponse{
		ID:         msg.ID,
		SupplierID: msg.SupplierID,
		ConsumerID: msg.ConsumerID,
		OrderID:    msg.OrderID,
		SenderID:   msg.SenderID,
		SenderName: senderName,
		SenderRole: senderRole,
		Content:    msg.Content,
		FileURL:    msg.FileURL,
		CreatedAt:  msg.CreatedAt,
	}
}

// CreateMessage sends a chat message in a supplier-consumer thread
func CreateMessage(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("message", "create")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	var req struct {
		SupplierID uint   `json:"supplier_id"`
		ConsumerID uint   `json:"consumer_id"`
		OrderID    *uint  `json:"order_id"`
		Content    string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data", "kind": "invalid_request"})
	}
	if req.Content == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "content is required", "kind": "invalid_request"})
	}

	db := database.GetDB()

	senderRole, err := threadParticipant(db, req.SupplierID, req.ConsumerID, user.ID)
	if err != nil {
		return fail(c, log, err)
	}

	if req.OrderID != nil {
		var order model.Order
		if result := db.First(&order, *req.OrderID); result.Error != nil {
			return fail(c, log, apperror.New(apperror.NotFound, "order not found"))
		}
		if order.SupplierID != req.SupplierID || order.ConsumerID != req.ConsumerID {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "order does not belong to this conversation", "kind": "invalid_request"})
		}
	}

	msg := model.Message{
		SupplierID: req.SupplierID,
		ConsumerID: req.ConsumerID,
		OrderID:    req.OrderID,
		SenderID:   user.ID,
		Content:    req.Content,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := db.Create(&msg); result.Error != nil {
		log.Error("Failed to create message", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create message"})
	}

	log.Info("Message sent",
		zap.Uint("message_id", msg.ID),
		zap.Uint("supplier_id", msg.SupplierID),
		zap.Uint("consumer_id", msg.ConsumerID))
	return c.JSON(http.StatusCreated, messageResponse(&msg, user.FullName, senderRole))
}

// CreateMessageWithFile sends a message with an attached file via multipart
// form. A failed upload degrades to a text-only message instead of losing it.
func CreateMessageWithFile(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("message", "create_with_file")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	supplierID, err := strconv.ParseUint(c.FormValue("supplier_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid supplier ID", "kind": "invalid_request"})
	}
	consumerID, err := strconv.ParseUint(c.FormValue("consumer_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid consumer ID", "kind": "invalid_request"})
	}
	content := c.FormValue("content")

	var orderID *uint
	if v := c.FormValue("order_id"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order ID", "kind": "invalid_request"})
		}
		id := uint(parsed)
		orderID = &id
	}

	db := database.GetDB()

	senderRole, err := threadParticipant(db, uint(supplierID), uint(consumerID), user.ID)
	if err != nil {
		return fail(c, log, err)
	}

	var fileURL string
	if fileHeader, err := c.FormFile("file"); err == nil {
		src, err := fileHeader.Open()
		if err != nil {
			log.Warn("Failed to open uploaded file", zap.Error(err))
		} else {
			defer src.Close()
			url, err := storage.Get().Save(fileHeader.Filename, src)
			if err != nil {
				log.Warn("Failed to store uploaded file",
					zap.String("filename", fileHeader.Filename),
					zap.Error(err))
			} else {
				fileURL = url
			}
		}
	}

	if content == "" && fileURL == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "content or file is required", "kind": "invalid_request"})
	}

	msg := model.Message{
		SupplierID: uint(supplierID),
		ConsumerID: uint(consumerID),
		OrderID:    orderID,
		SenderID:   user.ID,
		Content:    content,
		FileURL:    fileURL,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := db.Create(&msg); result.Error != nil {
		log.Error("Failed to create message", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create message"})
	}

	log.Info("Message with attachment sent",
		zap.Uint("message_id", msg.ID),
		zap.Bool("has_file", fileURL != ""))
	return c.JSON(http.StatusCreated, messageResponse(&msg, user.FullName, senderRole))
}

// GetThreadMessages returns the full message history of a supplier-consumer
// thread in chronological order, with sender names and roles resolved.
func GetThreadMessages(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("message", "list_thread")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	supplierID, err := strconv.ParseUint(c.Param("supplier_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid supplier ID", "kind": "invalid_request"})
	}
	consumerID, err := strconv.ParseUint(c.Param("consumer_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid consumer ID", "kind": "invalid_request"})
	}

	db := database.GetDB()

	if _, err := threadParticipant(db, uint(supplierID), uint(consumerID), user.ID); err != nil {
		return fail(c, log, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var messages []model.Message
	if err := db.Where("supplier_id = ? AND consumer_id = ?", supplierID, consumerID).
		Order("created_at ASC").Find(&messages).Error; err != nil {
		return fail(c, log, err)
	}

	// Resolve sender names and roles in one pass per user
	senderIDs := make([]uint, 0, len(messages))
	seen := make(map[uint]bool)
	for _, msg := range messages {
		if !seen[msg.SenderID] {
			seen[msg.SenderID] = true
			senderIDs = append(senderIDs, msg.SenderID)
		}
	}

	names := make(map[uint]string, len(senderIDs))
	if len(senderIDs) > 0 {
		var users []model.User
		if err := db.Where("id IN ?", senderIDs).Find(&users).Error; err != nil {
			return fail(c, log, err)
		}
		for _, u := range users {
			names[u.ID] = u.FullName
		}
	}

	roles := make(map[uint]string, len(senderIDs))
	var staff []model.SupplierUser
	if err := db.Where("supplier_id = ? AND user_id IN ?", supplierID, senderIDs).Find(&staff).Error; err != nil {
		return fail(c, log, err)
	}
	for _, su := range staff {
		roles[su.UserID] = string(su.Role)
	}

	result := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		role, ok := roles[messages[i].SenderID]
		if !ok {
			role = "CONSUMER"
		}
		result = append(result, messageResponse(&messages[i], names[messages[i].SenderID], role))
	}
	return c.JSON(http.StatusOK, result)
}
