package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"supplylink/internal/apperror"
	"supplylink/internal/authz"
	"supplylink/internal/model"
	"supplylink/internal/pricing"
	"supplylink/internal/transition"
	"supplylink/pkg/database"
	"supplylink/pkg/logger"
	"supplylink/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type orderItemRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// OrderResponse is an order with denormalized display names
type OrderResponse struct {
	ID                    uint              `json:"id"`
	SupplierID            uint              `json:"supplier_id"`
	ConsumerID            uint              `json:"consumer_id"`
	Status                model.OrderStatus `json:"status"`
	TotalAmount           decimal.Decimal   `json:"total_amount"`
	DeliveryMethod        string            `json:"delivery_method,omitempty"`
	EstimatedDeliveryDate *time.Time        `json:"estimated_delivery_date,omitempty"`
	CreatedBy             uint              `json:"created_by"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
	SupplierName          string            `json:"supplier_name"`
	ConsumerName          string            `json:"consumer_name"`
	Items                 []model.OrderItem `json:"items"`
}

func orderResponse(order *model.Order) OrderResponse {
	return OrderResponse{
		ID:                    order.ID,
		SupplierID:            order.SupplierID,
		ConsumerID:            order.ConsumerID,
		Status:                order.Status,
		TotalAmount:           order.TotalAmount,
		DeliveryMethod:        order.DeliveryMethod,
		EstimatedDeliveryDate: order.EstimatedDeliveryDate,
		CreatedBy:             order.CreatedBy,
		CreatedAt:             order.CreatedAt,
		UpdatedAt:             order.UpdatedAt,
		SupplierName:          order.Supplier.Name,
		ConsumerName:          order.Consumer.OrganizationName,
		Items:                 order.Items,
	}
}

// CreateOrder places an order with a linked supplier. Prices are frozen at
// creation time; stock is reserved later, when the supplier accepts.
func CreateOrder(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("order", "create")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	var req struct {
		SupplierID     uint               `json:"supplier_id"`
		DeliveryMethod string             `json:"delivery_method"`
		Items          []orderItemRequest `json:"items"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data", "kind": "invalid_request"})
	}

	if len(req.Items) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order must contain at least one item", "kind": "invalid_request"})
	}
	if req.DeliveryMethod != "" &&
		req.DeliveryMethod != model.DeliveryMethodDelivery &&
		req.DeliveryMethod != model.DeliveryMethodPickup {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "delivery_method must be 'delivery' or 'pickup'", "kind": "invalid_request"})
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "item quantity must be positive", "kind": "invalid_request"})
		}
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

	var link model.Link
	result := db.Where("supplier_id = ? AND consumer_id = ? AND status = ?",
		req.SupplierID, consumer.ID, model.LinkStatusAccepted).First(&link)
	if result.Error != nil {
		return fail(c, log, apperror.New(apperror.Forbidden,
			"no accepted link with this supplier"))
	}

	requests := make([]pricing.LineRequest, 0, len(req.Items))
	for _, item := range req.Items {
		requests = append(requests, pricing.LineRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	quote, err := pricing.BuildQuote(db, req.SupplierID, requests, pricing.Options{
		DeliveryMethod:     req.DeliveryMethod,
		EnforceMinQuantity: true,
	})
	if err != nil {
		return fail(c, log, err)
	}

	order := model.Order{
		SupplierID:            req.SupplierID,
		ConsumerID:            consumer.ID,
		Status:                model.OrderStatusPending,
		TotalAmount:           quote.Total,
		DeliveryMethod:        req.DeliveryMethod,
		EstimatedDeliveryDate: quote.EstimatedDeliveryDate,
		CreatedBy:             user.ID,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		for _, line := range quote.Lines {
			item := model.OrderItem{
				OrderID:     order.ID,
				ProductID:   line.Product.ID,
				ProductName: line.Product.Name,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice,
				TotalPrice:  line.TotalPrice,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			order.Items = append(order.Items, item)
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to create order", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create order"})
	}

	order.Supplier = supplier
	order.Consumer = *consumer

	prometheus.OrdersCreatedCounter.Inc()
	log.Info("Order created",
		zap.Uint("order_id", order.ID),
		zap.Uint("supplier_id", order.SupplierID),
		zap.Uint("consumer_id", order.ConsumerID),
		zap.String("total_amount", order.TotalAmount.String()))
	return c.JSON(http.StatusCreated, orderResponse(&order))
}

// ListMyOrders lists orders visible to the current user: their own as a
// consumer, or all orders of suppliers they are staff of.
func ListMyOrders(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("order", "list_my")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	db := database.GetDB()
	defer prometheus.TrackDBOperation("query")(time.Now())

	var orders []model.Order

	var consumer model.Consumer
	if result := db.Where("user_id = ?", user.ID).First(&consumer); result.Error == nil {
		if err := db.Preload("Items").Preload("Supplier").Preload("Consumer").
			Where("consumer_id = ?", consumer.ID).
			Order("created_at DESC").Find(&orders).Error; err != nil {
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
			if err := db.Preload("Items").Preload("Supplier").Preload("Consumer").
				Where("supplier_id IN ?", supplierIDs).
				Order("created_at DESC").Find(&orders).Error; err != nil {
				return fail(c, log, err)
			}
		}
	}

	responses := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		responses = append(responses, orderResponse(&orders[i]))
	}
	return c.JSON(http.StatusOK, responses)
}

// GetOrder returns one order with its items, for the owning consumer or the
// supplier's staff.
func GetOrder(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("order", "get")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	orderID, err := strconv.ParseUint(c.Param("order_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order ID", "kind": "invalid_request"})
	}

	db := database.GetDB()
	defer prometheus.TrackDBOperation("query")(time.Now())

	var order model.Order
	if result := db.Preload("Items").Preload("Supplier").Preload("Consumer").
		First(&order, orderID); result.Error != nil {
		return fail(c, log, apperror.New(apperror.NotFound, "order not found"))
	}

	if err := requireOrderAccess(db, &order, user.ID); err != nil {
		return fail(c, log, err)
	}
	return c.JSON(http.StatusOK, orderResponse(&order))
}

// requireOrderAccess allows the order's consumer or any staff of its supplier
func requireOrderAccess(db *gorm.DB, order *model.Order, userID uint) error {
	var consumer model.Consumer
	if result := db.Where("user_id = ?", userID).First(&consumer); result.Error == nil {
		if consumer.ID == order.ConsumerID {
			return nil
		}
	}
	supplierUser, err := authz.SupplierRoleFor(db, order.SupplierID, userID)
	if err != nil {
		return err
	}
	if supplierUser != nil {
		return nil
	}
	return apperror.New(apperror.Forbidden, "you do not have access to this order")
}

// UpdateOrderStatus accepts or rejects an order as supplier Owner/Manager.
// Acceptance re-checks and reserves stock; rejecting an accepted order
// restores it. Status write and stock movement commit in one transaction.
func UpdateOrderStatus(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("order", "update_status")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	orderID, err := strconv.ParseUint(c.Param("order_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order ID", "kind": "invalid_request"})
	}

	var req struct {
		NewStatus model.OrderStatus `json:"new_status"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data", "kind": "invalid_request"})
	}

	db := database.GetDB()

	var order model.Order
	if result := db.Preload("Items").Preload("Supplier").Preload("Consumer").
		First(&order, orderID); result.Error != nil {
		return fail(c, log, apperror.New(apperror.NotFound, "order not found"))
	}

	if _, err := authz.RequireOwnerOrManager(db, order.SupplierID, user.ID); err != nil {
		return fail(c, log, err)
	}

	effect, err := transition.Order(order.Status, req.NewStatus)
	if err != nil {
		return fail(c, log, err)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	err = db.Transaction(func(tx *gorm.DB) error {
		switch effect {
		case transition.StockReserve:
			for _, item := range order.Items {
				var product model.Product
				if err := tx.First(&product, item.ProductID).Error; err != nil {
					return apperror.New(apperror.NotFound,
						fmt.Sprintf("product %d no longer exists", item.ProductID))
				}
				if item.Quantity > product.Stock {
					return apperror.New(apperror.InvalidRequest,
						fmt.Sprintf("insufficient stock for product %s. Available: %d", product.Name, product.Stock))
				}
				if err := tx.Model(&product).Update("stock", product.Stock-item.Quantity).Error; err != nil {
					return err
				}
			}
		case transition.StockRestore:
			for _, item := range order.Items {
				var product model.Product
				if err := tx.First(&product, item.ProductID).Error; err != nil {
					continue
				}
				if err := tx.Model(&product).Update("stock", product.Stock+item.Quantity).Error; err != nil {
					return err
				}
			}
		}
		return tx.Model(&model.Order{}).Where("id = ?", order.ID).
			Update("status", req.NewStatus).Error
	})
	if err != nil {
		if apperror.KindOf(err) != "" {
			return fail(c, log, err)
		}
		log.Error("Failed to update order status", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update order"})
	}

	order.Status = req.NewStatus
	prometheus.OrderStatusCounter.WithLabelValues(string(req.NewStatus)).Inc()
	log.Info("Order status updated",
		zap.Uint64("order_id", orderID),
		zap.String("status", string(req.NewStatus)))
	return c.JSON(http.StatusOK, orderResponse(&order))
}

// Reorder replays a past order's items at current catalog prices. Products
// that disappeared from the catalog are skipped; minimum quantities are not
// re-enforced for a repeat purchase.
func Reorder(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("order", "reorder")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	orderID, err := strconv.ParseUint(c.Param("order_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order ID", "kind": "invalid_request"})
	}

	db := database.GetDB()

	consumer, err := authz.RequireConsumer(db, user.ID)
	if err != nil {
		return fail(c, log, err)
	}

	var source model.Order
	if result := db.Preload("Items").Preload("Supplier").First(&source, orderID); result.Error != nil {
		return fail(c, log, apperror.New(apperror.NotFound, "order not found"))
	}
	if source.ConsumerID != consumer.ID {
		return fail(c, log, apperror.New(apperror.Forbidden, "you can only reorder your own orders"))
	}

	var link model.Link
	result := db.Where("supplier_id = ? AND consumer_id = ? AND status = ?",
		source.SupplierID, consumer.ID, model.LinkStatusAccepted).First(&link)
	if result.Error != nil {
		return fail(c, log, apperror.New(apperror.Forbidden,
			"no accepted link with this supplier"))
	}

	requests := make([]pricing.LineRequest, 0, len(source.Items))
	for _, item := range source.Items {
		requests = append(requests, pricing.LineRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	quote, err := pricing.BuildQuote(db, source.SupplierID, requests, pricing.Options{
		DeliveryMethod: source.DeliveryMethod,
		SkipMissing:    true,
	})
	if err != nil {
		return fail(c, log, err)
	}

	order := model.Order{
		SupplierID:            source.SupplierID,
		ConsumerID:            consumer.ID,
		Status:                model.OrderStatusPending,
		TotalAmount:           quote.Total,
		DeliveryMethod:        source.DeliveryMethod,
		EstimatedDeliveryDate: quote.EstimatedDeliveryDate,
		CreatedBy:             user.ID,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		for _, line := range quote.Lines {
			item := model.OrderItem{
				OrderID:     order.ID,
				ProductID:   line.Product.ID,
				ProductName: line.Product.Name,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice,
				TotalPrice:  line.TotalPrice,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			order.Items = append(order.Items, item)
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to create reorder", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create order"})
	}

	order.Supplier = source.Supplier
	order.Consumer = *consumer

	prometheus.OrdersCreatedCounter.Inc()
	log.Info("Reorder created",
		zap.Uint("order_id", order.ID),
		zap.Uint64("source_order_id", orderID))
	return c.JSON(http.StatusCreated, orderResponse(&order))
}
