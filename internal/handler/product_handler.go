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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ListProducts lists active products, optionally filtered to one supplier
func ListProducts(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("product", "list")

	db := database.GetDB()
	defer prometheus.TrackDBOperation("query")(time.Now())

	query := db.Where("is_active = ?", true)
	if supplierParam := c.QueryParam("supplier_id"); supplierParam != "" {
		supplierID, err := strconv.ParseUint(supplierParam, 10, 32)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid supplier ID", "kind": "invalid_request"})
		}
		query = query.Where("supplier_id = ?", supplierID)
	}

	var products []model.Product
	if result := query.Find(&products); result.Error != nil {
		log.Error("Failed to fetch products", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch products"})
	}
	return c.JSON(http.StatusOK, products)
}

// GetProduct returns a single active product
func GetProduct(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("product", "get")

	productID, err := strconv.ParseUint(c.Param("product_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product ID", "kind": "invalid_request"})
	}

	db := database.GetDB()
	defer prometheus.TrackDBOperation("query")(time.Now())

	var product model.Product
	if result := db.Where("id = ? AND is_active = ?", productID, true).First(&product); result.Error != nil {
		return fail(c, log, apperror.New(apperror.NotFound, "product not found"))
	}
	return c.JSON(http.StatusOK, product)
}

type productRequest struct {
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Unit              string          `json:"unit"`
	Price             decimal.Decimal `json:"price"`
	Discount          decimal.Decimal `json:"discount"`
	Stock             *int            `json:"stock"`
	MinOrderQuantity  int             `json:"min_order_quantity"`
	DeliveryAvailable *bool           `json:"delivery_available"`
	PickupAvailable   *bool           `json:"pickup_available"`
	LeadTimeDays      int             `json:"lead_time_days"`
}

// CreateProduct adds a product to the supplier's catalog. Owner/Manager only.
func CreateProduct(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("product", "create")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	supplierID, err := strconv.ParseUint(c.Param("supplier_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid supplier ID", "kind": "invalid_request"})
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data", "kind": "invalid_request"})
	}

	if req.Name == "" || req.Unit == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and unit are required", "kind": "invalid_request"})
	}
	if req.Price.IsNegative() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price must not be negative", "kind": "invalid_request"})
	}

	db := database.GetDB()
	if _, err := authz.RequireOwnerOrManager(db, uint(supplierID), user.ID); err != nil {
		return fail(c, log, err)
	}

	product := model.Product{
		SupplierID:        uint(supplierID),
		Name:              req.Name,
		Description:       req.Description,
		Unit:              req.Unit,
		Price:             req.Price,
		Discount:          req.Discount,
		MinOrderQuantity:  req.MinOrderQuantity,
		DeliveryAvailable: true,
		PickupAvailable:   true,
		LeadTimeDays:      req.LeadTimeDays,
		IsActive:          true,
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if product.MinOrderQuantity < 1 {
		product.MinOrderQuantity = 1
	}
	if req.DeliveryAvailable != nil {
		product.DeliveryAvailable = *req.DeliveryAvailable
	}
	if req.PickupAvailable != nil {
		product.PickupAvailable = *req.PickupAvailable
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := db.Create(&product); result.Error != nil {
		log.Error("Failed to create product", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create product"})
	}

	log.Info("Product created",
		zap.Uint("product_id", product.ID),
		zap.Uint64("supplier_id", supplierID),
		zap.String("name", product.Name))
	return c.JSON(http.StatusCreated, product)
}

// UpdateProduct modifies a product in place. Owner/Manager only.
func UpdateProduct(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("product", "update")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	productID, err := strconv.ParseUint(c.Param("product_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product ID", "kind": "invalid_request"})
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data", "kind": "invalid_request"})
	}

	db := database.GetDB()

	var product model.Product
	if result := db.Where("id = ? AND is_active = ?", productID, true).First(&product); result.Error != nil {
		return fail(c, log, apperror.New(apperror.NotFound, "product not found"))
	}

	if _, err := authz.RequireOwnerOrManager(db, product.SupplierID, user.ID); err != nil {
		return fail(c, log, err)
	}

	if req.Name != "" {
		product.Name = req.Name
	}
	if req.Description != "" {
		product.Description = req.Description
	}
	if req.Unit != "" {
		product.Unit = req.Unit
	}
	if req.Price.IsPositive() {
		product.Price = req.Price
	}
	if !req.Discount.IsZero() {
		product.Discount = req.Discount
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.MinOrderQuantity > 0 {
		product.MinOrderQuantity = req.MinOrderQuantity
	}
	if req.LeadTimeDays != 0 {
		product.LeadTimeDays = req.LeadTimeDays
	}
	if req.DeliveryAvailable != nil {
		product.DeliveryAvailable = *req.DeliveryAvailable
	}
	if req.PickupAvailable != nil {
		product.PickupAvailable = *req.PickupAvailable
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := db.Save(&product); result.Error != nil {
		log.Error("Failed to update product", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update product"})
	}

	log.Info("Product updated", zap.Uint("product_id", product.ID))
	return c.JSON(http.StatusOK, product)
}

// DeleteProduct removes a product from the catalog (soft delete). Order item
// snapshots keep pricing history for orders that already reference it.
func DeleteProduct(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("product", "delete")

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	productID, err := strconv.ParseUint(c.Param("product_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product ID", "kind": "invalid_request"})
	}

	db := database.GetDB()

	var product model.Product
	if result := db.Where("id = ? AND is_active = ?", productID, true).First(&product); result.Error != nil {
		return fail(c, log, apperror.New(apperror.NotFound, "product not found"))
	}

	if _, err := authz.RequireOwnerOrManager(db, product.SupplierID, user.ID); err != nil {
		return fail(c, log, err)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := db.Model(&product).Update("is_active", false); result.Error != nil {
		log.Error("Failed to delete product", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete product"})
	}

	log.Info("Product deleted", zap.Uint("product_id", product.ID))
	return c.NoContent(http.StatusNoContent)
}
