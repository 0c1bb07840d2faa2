package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"supplylink/internal/middleware"
	"supplylink/internal/model"
	"supplylink/pkg/config"
	"supplylink/pkg/database"
	"supplylink/pkg/jwtutil"
	"supplylink/pkg/logger"
	"supplylink/pkg/storage"
	"supplylink/prometheus"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	cfg := &config.Config{
		Server:  config.ServerConfig{Port: "0", Env: "development"},
		JWT:     config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1},
		Log:     config.LogConfig{Level: "error"},
		Metrics: config.MetricsConfig{Prefix: "supplylink_test"},
	}
	logger.InitLogger(cfg)
	jwtutil.Initialize(&cfg.JWT)
	prometheus.InitMetrics(cfg)
	os.Exit(m.Run())
}

// newTestServer gives each test a fresh in-memory database and a router with
// the production route layout.
func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	database.SetDB(db)

	local, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)
	storage.Set(local)

	e := echo.New()
	e.POST("/auth/register", Register)
	e.POST("/auth/login", Login)
	e.GET("/suppliers", ListSuppliers)
	e.GET("/products", ListProducts)
	e.GET("/products/:product_id", GetProduct)

	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)
	api.GET("/me", Me)
	api.POST("/suppliers", CreateSupplier)
	api.GET("/suppliers/mine", ListMySuppliers)
	api.DELETE("/suppliers/:supplier_id", DeleteSupplier)
	api.POST("/suppliers/:supplier_id/staff", AddStaff)
	api.GET("/suppliers/:supplier_id/staff", ListStaff)
	api.DELETE("/suppliers/:supplier_id/staff/:user_id", RemoveStaff)
	api.POST("/consumers", CreateConsumer)
	api.POST("/suppliers/:supplier_id/products", CreateProduct)
	api.PUT("/products/:product_id", UpdateProduct)
	api.DELETE("/products/:product_id", DeleteProduct)
	api.POST("/links", CreateLink)
	api.GET("/links/mine", ListMyLinks)
	api.PUT("/links/:link_id/status", UpdateLinkStatus)
	api.POST("/orders", CreateOrder)
	api.GET("/orders/mine", ListMyOrders)
	api.GET("/orders/:order_id", GetOrder)
	api.PUT("/orders/:order_id/status", UpdateOrderStatus)
	api.POST("/orders/:order_id/reorder", Reorder)
	api.POST("/complaints", CreateComplaint)
	api.GET("/complaints/mine", ListMyComplaints)
	api.PUT("/complaints/:complaint_id/status", UpdateComplaintStatus)
	api.POST("/complaints/:complaint_id/escalate", EscalateComplaint)
	api.POST("/incidents", CreateIncident)
	api.GET("/incidents/mine", ListMyIncidents)
	api.PUT("/incidents/:incident_id/status", UpdateIncidentStatus)
	api.POST("/messages", CreateMessage)
	api.POST("/messages/file", CreateMessageWithFile)
	api.GET("/messages/:supplier_id/:consumer_id", GetThreadMessages)

	return e
}

func doRequest(t *testing.T, e *echo.Echo, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func hashPasswordForTest(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

// registerUser creates an account and returns its token
func registerUser(t *testing.T, e *echo.Echo, email string) string {
	t.Helper()
	rec := doRequest(t, e, http.MethodPost, "/auth/register", "", echo.Map{
		"email": email, "password": "secret123", "full_name": "Test " + email,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return login(t, e, email, "")
}

func login(t *testing.T, e *echo.Echo, email, platform string) string {
	t.Helper()
	path := "/auth/login"
	if platform != "" {
		path += "?platform=" + platform
	}
	rec := doRequest(t, e, http.MethodPost, path, "", echo.Map{
		"email": email, "password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

// becomeSupplierOwner registers a user and creates a supplier for them
func becomeSupplierOwner(t *testing.T, e *echo.Echo, email, supplierName string) (string, uint) {
	t.Helper()
	token := registerUser(t, e, email)
	rec := doRequest(t, e, http.MethodPost, "/api/suppliers", token, echo.Map{
		"name": supplierName,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	return token, uint(body["id"].(float64))
}

// becomeConsumer registers a user and creates a consumer profile
func becomeConsumer(t *testing.T, e *echo.Echo, email, orgName string) (string, uint) {
	t.Helper()
	token := registerUser(t, e, email)
	rec := doRequest(t, e, http.MethodPost, "/api/consumers", token, echo.Map{
		"organization_name": orgName,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	return token, uint(body["id"].(float64))
}

// addStaffMember invites staff and returns a token for the new account
func addStaffMember(t *testing.T, e *echo.Echo, ownerToken string, supplierID uint, email string, role model.SupplierRole) string {
	t.Helper()
	rec := doRequest(t, e, http.MethodPost, fmt.Sprintf("/api/suppliers/%d/staff", supplierID), ownerToken, echo.Map{
		"email": email, "role": string(role),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// New staff accounts get a generated password; set a known one directly
	db := database.GetDB()
	var user model.User
	require.NoError(t, db.Where("email = ?", email).First(&user).Error)
	hash := hashPasswordForTest(t, "secret123")
	require.NoError(t, db.Model(&user).Update("password", hash).Error)
	return login(t, e, email, "")
}

func seedCatalogProduct(t *testing.T, supplierID uint, name, price, discount string, stock, minQty, leadDays int) model.Product {
	t.Helper()
	product := model.Product{
		SupplierID:        supplierID,
		Name:              name,
		Unit:              "kg",
		Price:             decimal.RequireFromString(price),
		Discount:          decimal.RequireFromString(discount),
		Stock:             stock,
		MinOrderQuantity:  minQty,
		DeliveryAvailable: true,
		PickupAvailable:   true,
		LeadTimeDays:      leadDays,
		IsActive:          true,
	}
	require.NoError(t, database.GetDB().Create(&product).Error)
	return product
}

// linkAccepted wires an accepted link between a supplier and consumer
func linkAccepted(t *testing.T, e *echo.Echo, consumerToken, ownerToken string, supplierID uint) uint {
	t.Helper()
	rec := doRequest(t, e, http.MethodPost, "/api/links", consumerToken, echo.Map{
		"supplier_id": supplierID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	linkID := uint(decodeBody(t, rec)["id"].(float64))

	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/links/%d/status", linkID), ownerToken, echo.Map{
		"status": "accepted",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return linkID
}

func TestRegisterAndLogin(t *testing.T) {
	e := newTestServer(t)

	rec := doRequest(t, e, http.MethodPost, "/auth/register", "", echo.Map{
		"email": "alice@example.com", "password": "secret123", "full_name": "Alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate email
	rec = doRequest(t, e, http.MethodPost, "/auth/register", "", echo.Map{
		"email": "alice@example.com", "password": "other", "full_name": "Alice Again",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decodeBody(t, rec)["kind"])

	// Missing fields
	rec = doRequest(t, e, http.MethodPost, "/auth/register", "", echo.Map{
		"email": "bob@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Wrong password is indistinguishable from an unknown user
	rec = doRequest(t, e, http.MethodPost, "/auth/login", "", echo.Map{
		"email": "alice@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	wrongPass := decodeBody(t, rec)["error"]

	rec = doRequest(t, e, http.MethodPost, "/auth/login", "", echo.Map{
		"email": "ghost@example.com", "password": "whatever",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, wrongPass, decodeBody(t, rec)["error"])

	// Successful login carries resolved roles
	token := login(t, e, "alice@example.com", "")
	rec = doRequest(t, e, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody(t, rec)
	assert.Equal(t, "USER", me["main_role"])
}

func TestLoginPlatformGating(t *testing.T) {
	e := newTestServer(t)
	_, supplierID := becomeSupplierOwner(t, e, "owner@example.com", "Acme Foods")
	addStaffMember(t, e, login(t, e, "owner@example.com", ""), supplierID, "sales@example.com", model.SupplierRoleSales)

	// Owner rejected on mobile with the generic credentials message
	rec := doRequest(t, e, http.MethodPost, "/auth/login?platform=mobile", "", echo.Map{
		"email": "owner@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "incorrect email or password", decodeBody(t, rec)["error"])

	// Owner allowed on web
	login(t, e, "owner@example.com", "web")

	// Sales rejected on web, allowed on mobile
	rec = doRequest(t, e, http.MethodPost, "/auth/login?platform=web", "", echo.Map{
		"email": "sales@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	login(t, e, "sales@example.com", "mobile")

	// No platform parameter means no restriction
	login(t, e, "owner@example.com", "")

	// Platform admins bypass the gating everywhere
	registerUser(t, e, "admin@example.com")
	db := database.GetDB()
	require.NoError(t, db.Model(&model.User{}).Where("email = ?", "admin@example.com").
		Update("global_role", model.GlobalRolePlatformAdmin).Error)
	login(t, e, "admin@example.com", "mobile")
	login(t, e, "admin@example.com", "web")
}

func TestSupplierCreationGrantsOwnership(t *testing.T) {
	e := newTestServer(t)
	token, supplierID := becomeSupplierOwner(t, e, "owner@example.com", "Acme Foods")

	var supplierUser model.SupplierUser
	require.NoError(t, database.GetDB().
		Where("supplier_id = ?", supplierID).First(&supplierUser).Error)
	assert.Equal(t, model.SupplierRoleOwner, supplierUser.Role)

	rec := doRequest(t, e, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SUPPLIER_OWNER", decodeBody(t, rec)["main_role"])
}

func TestStaffManagement(t *testing.T) {
	e := newTestServer(t)
	ownerToken, supplierID := becomeSupplierOwner(t, e, "owner@example.com", "Acme Foods")
	managerToken := addStaffMember(t, e, ownerToken, supplierID, "manager@example.com", model.SupplierRoleManager)

	// Duplicate role assignment
	rec := doRequest(t, e, http.MethodPost, fmt.Sprintf("/api/suppliers/%d/staff", supplierID), ownerToken, echo.Map{
		"email": "manager@example.com", "role": "MANAGER",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Only MANAGER and SALES can be invited
	rec = doRequest(t, e, http.MethodPost, fmt.Sprintf("/api/suppliers/%d/staff", supplierID), ownerToken, echo.Map{
		"email": "second-owner@example.com", "role": "OWNER",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Manager may list staff but not invite
	rec = doRequest(t, e, http.MethodGet, fmt.Sprintf("/api/suppliers/%d/staff", supplierID), managerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, e, http.MethodPost, fmt.Sprintf("/api/suppliers/%d/staff", supplierID), managerToken, echo.Map{
		"email": "sales@example.com", "role": "SALES",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Owner cannot remove themselves
	db := database.GetDB()
	var owner model.User
	require.NoError(t, db.Where("email = ?", "owner@example.com").First(&owner).Error)
	rec = doRequest(t, e, http.MethodDelete,
		fmt.Sprintf("/api/suppliers/%d/staff/%d", supplierID, owner.ID), ownerToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Removing the manager works
	var manager model.User
	require.NoError(t, db.Where("email = ?", "manager@example.com").First(&manager).Error)
	rec = doRequest(t, e, http.MethodDelete,
		fmt.Sprintf("/api/suppliers/%d/staff/%d", supplierID, manager.ID), ownerToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLinkLifecycle(t *testing.T) {
	e := newTestServer(t)
	ownerToken, supplierID := becomeSupplierOwner(t, e, "owner@example.com", "Acme Foods")
	salesToken := addStaffMember(t, e, ownerToken, supplierID, "sales@example.com", model.SupplierRoleSales)
	consumerToken, _ := becomeConsumer(t, e, "buyer@example.com", "Buyer Co")

	// Staff cannot request links
	rec := doRequest(t, e, http.MethodPost, "/api/links", ownerToken, echo.Map{
		"supplier_id": supplierID,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Unknown supplier
	rec = doRequest(t, e, http.MethodPost, "/api/links", consumerToken, echo.Map{
		"supplier_id": 9999,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, e, http.MethodPost, "/api/links", consumerToken, echo.Map{
		"supplier_id": supplierID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	linkID := uint(body["id"].(float64))
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "Acme Foods", body["supplier_name"])
	assert.Equal(t, "Buyer Co", body["consumer_name"])

	// One link per pair, in any status
	rec = doRequest(t, e, http.MethodPost, "/api/links", consumerToken, echo.Map{
		"supplier_id": supplierID,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Sales cannot accept
	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/links/%d/status", linkID), salesToken, echo.Map{
		"status": "accepted",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Consumer cannot accept their own request
	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/links/%d/status", linkID), consumerToken, echo.Map{
		"status": "accepted",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Owner accepts
	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/links/%d/status", linkID), ownerToken, echo.Map{
		"status": "accepted",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "accepted", decodeBody(t, rec)["status"])

	// Accepting twice is an invalid transition
	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/links/%d/status", linkID), ownerToken, echo.Map{
		"status": "accepted",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_transition", decodeBody(t, rec)["kind"])

	// Both sides see the link
	rec = doRequest(t, e, http.MethodGet, "/api/links/mine", consumerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var links []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &links))
	require.Len(t, links, 1)

	// Consumer removes the accepted link
	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/links/%d/status", linkID), consumerToken, echo.Map{
		"status": "removed",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOrderLifecycle(t *testing.T) {
	e := newTestServer(t)
	ownerToken, supplierID := becomeSupplierOwner(t, e, "owner@example.com", "Acme Foods")
	consumerToken, _ := becomeConsumer(t, e, "buyer@example.com", "Buyer Co")
	flour := seedCatalogProduct(t, supplierID, "Flour", "3.33", "10", 50, 1, 2)
	sugar := seedCatalogProduct(t, supplierID, "Sugar", "2.50", "0", 20, 5, 0)

	// Unknown supplier
	rec := doRequest(t, e, http.MethodPost, "/api/orders", consumerToken, echo.Map{
		"supplier_id": 9999,
		"items":       []echo.Map{{"product_id": flour.ID, "quantity": 3}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// No accepted link yet
	rec = doRequest(t, e, http.MethodPost, "/api/orders", consumerToken, echo.Map{
		"supplier_id": supplierID,
		"items":       []echo.Map{{"product_id": flour.ID, "quantity": 3}},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	linkAccepted(t, e, consumerToken, ownerToken, supplierID)

	// Below minimum order quantity
	rec = doRequest(t, e, http.MethodPost, "/api/orders", consumerToken, echo.Map{
		"supplier_id": supplierID,
		"items":       []echo.Map{{"product_id": sugar.ID, "quantity": 3}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Discounted unit price: 3.33 * 0.9 = 3.00; 3 * 3.00 + 5 * 2.50 = 21.50
	rec = doRequest(t, e, http.MethodPost, "/api/orders", consumerToken, echo.Map{
		"supplier_id":     supplierID,
		"delivery_method": "delivery",
		"items": []echo.Map{
			{"product_id": flour.ID, "quantity": 3},
			{"product_id": sugar.ID, "quantity": 5},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	orderID := uint(body["id"].(float64))
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "Acme Foods", body["supplier_name"])
	assert.Equal(t, "Buyer Co", body["consumer_name"])
	total := decimal.RequireFromString(body["total_amount"].(string))
	assert.True(t, decimal.RequireFromString("21.50").Equal(total), "total %s", total)
	assert.NotNil(t, body["estimated_delivery_date"])

	// The display names survive a fresh read
	rec = doRequest(t, e, http.MethodGet, fmt.Sprintf("/api/orders/%d", orderID), consumerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "Acme Foods", body["supplier_name"])
	assert.Equal(t, "Buyer Co", body["consumer_name"])

	// Stock is untouched while the order is pending
	db := database.GetDB()
	var stored model.Product
	require.NoError(t, db.First(&stored, flour.ID).Error)
	assert.Equal(t, 50, stored.Stock)

	// Consumer cannot accept their own order
	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/orders/%d/status", orderID), consumerToken, echo.Map{
		"new_status": "accepted",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Acceptance reserves stock
	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/orders/%d/status", orderID), ownerToken, echo.Map{
		"new_status": "accepted",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, db.First(&stored, flour.ID).Error)
	assert.Equal(t, 47, stored.Stock)

	// Accepting again is a no-op on stock
	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/orders/%d/status", orderID), ownerToken, echo.Map{
		"new_status": "accepted",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, db.First(&stored, flour.ID).Error)
	assert.Equal(t, 47, stored.Stock)

	// Rejecting an accepted order restores stock
	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/orders/%d/status", orderID), ownerToken, echo.Map{
		"new_status": "rejected",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, db.First(&stored, flour.ID).Error)
	assert.Equal(t, 50, stored.Stock)

	// Only accepted and rejected are valid targets
	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/orders/%d/status", orderID), ownerToken, echo.Map{
		"new_status": "fulfilled",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderAcceptInsufficientStock(t *testing.T) {
	e := newTestServer(t)
	ownerToken, supplierID := becomeSupplierOwner(t, e, "owner@example.com", "Acme Foods")
	consumerToken, _ := becomeConsumer(t, e, "buyer@example.com", "Buyer Co")
	product := seedCatalogProduct(t, supplierID, "Flour", "2.00", "0", 10, 1, 0)
	linkAccepted(t, e, consumerToken, ownerToken, supplierID)

	rec := doRequest(t, e, http.MethodPost, "/api/orders", consumerToken, echo.Map{
		"supplier_id": supplierID,
		"items":       []echo.Map{{"product_id": product.ID, "quantity": 8}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := uint(decodeBody(t, rec)["id"].(float64))

	// Stock shrinks between order creation and acceptance
	db := database.GetDB()
	require.NoError(t, db.Model(&model.Product{}).Where("id = ?", product.ID).
		Update("stock", 5).Error)

	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/orders/%d/status", orderID), ownerToken, echo.Map{
		"new_status": "accepted",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The failed acceptance left status and stock untouched
	var order model.Order
	require.NoError(t, db.First(&order, orderID).Error)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	var stored model.Product
	require.NoError(t, db.First(&stored, product.ID).Error)
	assert.Equal(t, 5, stored.Stock)
}

func TestReorderSkipsRetiredProducts(t *testing.T) {
	e := newTestServer(t)
	ownerToken, supplierID := becomeSupplierOwner(t, e, "owner@example.com", "Acme Foods")
	consumerToken, _ := becomeConsumer(t, e, "buyer@example.com", "Buyer Co")
	keep := seedCatalogProduct(t, supplierID, "Flour", "2.00", "0", 50, 1, 0)
	retire := seedCatalogProduct(t, supplierID, "Sugar", "3.00", "0", 50, 1, 0)
	linkAccepted(t, e, consumerToken, ownerToken, supplierID)

	rec := doRequest(t, e, http.MethodPost, "/api/orders", consumerToken, echo.Map{
		"supplier_id": supplierID,
		"items": []echo.Map{
			{"product_id": keep.ID, "quantity": 2},
			{"product_id": retire.ID, "quantity": 1},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := uint(decodeBody(t, rec)["id"].(float64))

	// Price change and retirement after the original order
	db := database.GetDB()
	require.NoError(t, db.Model(&model.Product{}).Where("id = ?", keep.ID).
		Update("price", "2.50").Error)
	require.NoError(t, db.Model(&model.Product{}).Where("id = ?", retire.ID).
		Update("is_active", false).Error)

	rec = doRequest(t, e, http.MethodPost, fmt.Sprintf("/api/orders/%d/reorder", orderID), consumerToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)

	// Replayed at the current price, retired line dropped: 2 * 2.50
	total := decimal.RequireFromString(body["total_amount"].(string))
	assert.True(t, decimal.RequireFromString("5.00").Equal(total), "total %s", total)
	items := body["items"].([]interface{})
	assert.Len(t, items, 1)

	// Another consumer cannot reorder someone else's order
	otherToken, _ := becomeConsumer(t, e, "other@example.com", "Other Co")
	rec = doRequest(t, e, http.MethodPost, fmt.Sprintf("/api/orders/%d/reorder", orderID), otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestComplaintAndIncidentFlow(t *testing.T) {
	e := newTestServer(t)
	ownerToken, supplierID := becomeSupplierOwner(t, e, "owner@example.com", "Acme Foods")
	salesToken := addStaffMember(t, e, ownerToken, supplierID, "sales@example.com", model.SupplierRoleSales)
	consumerToken, _ := becomeConsumer(t, e, "buyer@example.com", "Buyer Co")
	product := seedCatalogProduct(t, supplierID, "Flour", "2.00", "0", 50, 1, 0)
	linkAccepted(t, e, consumerToken, ownerToken, supplierID)

	rec := doRequest(t, e, http.MethodPost, "/api/orders", consumerToken, echo.Map{
		"supplier_id": supplierID,
		"items":       []echo.Map{{"product_id": product.ID, "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := uint(decodeBody(t, rec)["id"].(float64))

	// Another consumer cannot complain about this order
	otherToken, _ := becomeConsumer(t, e, "other@example.com", "Other Co")
	rec = doRequest(t, e, http.MethodPost, "/api/complaints", otherToken, echo.Map{
		"order_id": orderID, "description": "not my order",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, e, http.MethodPost, "/api/complaints", consumerToken, echo.Map{
		"order_id": orderID, "description": "half the bags were torn",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	complaintID := uint(decodeBody(t, rec)["id"].(float64))

	// The matching incident was created in the same transaction
	db := database.GetDB()
	var incident model.Incident
	require.NoError(t, db.Where("complaint_id = ?", complaintID).First(&incident).Error)
	assert.Equal(t, model.IncidentStatusOpen, incident.Status)
	assert.Equal(t, fmt.Sprintf("Complaint #%d - Order #%d", complaintID, orderID), incident.Summary)

	// Sales works the complaint: open -> in_progress
	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/complaints/%d/status", complaintID), salesToken, echo.Map{
		"new_status": "in_progress",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, db.Where("complaint_id = ?", complaintID).First(&incident).Error)
	assert.Equal(t, model.IncidentStatusInProgress, incident.Status)

	// Sales escalates instead of resolving
	rec = doRequest(t, e, http.MethodPost, fmt.Sprintf("/api/complaints/%d/escalate", complaintID), salesToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "escalated", decodeBody(t, rec)["status"])

	// Escalation is terminal for Sales
	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/complaints/%d/status", complaintID), salesToken, echo.Map{
		"new_status": "resolved",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_transition", decodeBody(t, rec)["kind"])

	// Owner cannot escalate
	rec = doRequest(t, e, http.MethodPost, fmt.Sprintf("/api/complaints/%d/escalate", complaintID), ownerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Owner resolves the escalated complaint; incident mirrors
	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/complaints/%d/status", complaintID), ownerToken, echo.Map{
		"new_status": "resolved", "resolution": "replacement shipped",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "resolved", body["status"])
	assert.Equal(t, "replacement shipped", body["resolution"])
	require.NoError(t, db.Where("complaint_id = ?", complaintID).First(&incident).Error)
	assert.Equal(t, model.IncidentStatusResolved, incident.Status)
}

func TestIncidentVisibilityAndDirectUpdate(t *testing.T) {
	e := newTestServer(t)
	ownerToken, supplierID := becomeSupplierOwner(t, e, "owner@example.com", "Acme Foods")
	becomeSupplierOwner(t, e, "rival@example.com", "Rival Foods")

	rec := doRequest(t, e, http.MethodPost, "/api/incidents", ownerToken, echo.Map{
		"supplier_id": supplierID,
		"summary":     "Cold chain failure",
		"description": "Freezer truck broke down on route 7",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	incidentID := uint(decodeBody(t, rec)["id"].(float64))

	// The rival's owner sees nothing
	rivalToken := login(t, e, "rival@example.com", "")
	rec = doRequest(t, e, http.MethodGet, "/api/incidents/mine", rivalToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var incidents []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &incidents))
	assert.Empty(t, incidents)

	// ...and cannot touch the incident
	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/incidents/%d/status", incidentID), rivalToken, echo.Map{
		"new_status": "resolved",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// A platform admin sees and updates everything
	adminToken := registerUser(t, e, "admin@example.com")
	db := database.GetDB()
	require.NoError(t, db.Model(&model.User{}).Where("email = ?", "admin@example.com").
		Update("global_role", model.GlobalRolePlatformAdmin).Error)
	adminToken = login(t, e, "admin@example.com", "")

	rec = doRequest(t, e, http.MethodGet, "/api/incidents/mine", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &incidents))
	assert.Len(t, incidents, 1)

	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/incidents/%d/status", incidentID), adminToken, echo.Map{
		"new_status": "resolved",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatRequiresAcceptedLink(t *testing.T) {
	e := newTestServer(t)
	ownerToken, supplierID := becomeSupplierOwner(t, e, "owner@example.com", "Acme Foods")
	consumerToken, consumerID := becomeConsumer(t, e, "buyer@example.com", "Buyer Co")

	// No link yet
	rec := doRequest(t, e, http.MethodPost, "/api/messages", consumerToken, echo.Map{
		"supplier_id": supplierID, "consumer_id": consumerID, "content": "hello?",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	linkAccepted(t, e, consumerToken, ownerToken, supplierID)

	rec = doRequest(t, e, http.MethodPost, "/api/messages", consumerToken, echo.Map{
		"supplier_id": supplierID, "consumer_id": consumerID, "content": "do you have rye flour?",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "CONSUMER", decodeBody(t, rec)["sender_role"])

	rec = doRequest(t, e, http.MethodPost, "/api/messages", ownerToken, echo.Map{
		"supplier_id": supplierID, "consumer_id": consumerID, "content": "yes, 25kg bags",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "OWNER", decodeBody(t, rec)["sender_role"])

	// Outsiders get no access to the thread
	strangerToken := registerUser(t, e, "stranger@example.com")
	rec = doRequest(t, e, http.MethodGet,
		fmt.Sprintf("/api/messages/%d/%d", supplierID, consumerID), strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, e, http.MethodGet,
		fmt.Sprintf("/api/messages/%d/%d", supplierID, consumerID), consumerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var messages []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &messages))
	require.Len(t, messages, 2)
	assert.Equal(t, "do you have rye flour?", messages[0]["content"])
	assert.Equal(t, "CONSUMER", messages[0]["sender_role"])
	assert.Equal(t, "OWNER", messages[1]["sender_role"])
}

func TestProductCatalogManagement(t *testing.T) {
	e := newTestServer(t)
	ownerToken, supplierID := becomeSupplierOwner(t, e, "owner@example.com", "Acme Foods")

	rec := doRequest(t, e, http.MethodPost, fmt.Sprintf("/api/suppliers/%d/products", supplierID), ownerToken, echo.Map{
		"name": "Rye Flour", "unit": "kg", "price": "4.20", "stock": 30, "lead_time_days": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	productID := uint(decodeBody(t, rec)["id"].(float64))

	// Catalog access is role gated
	outsiderToken := registerUser(t, e, "outsider@example.com")
	rec = doRequest(t, e, http.MethodPost, fmt.Sprintf("/api/suppliers/%d/products", supplierID), outsiderToken, echo.Map{
		"name": "Sneaky", "unit": "kg", "price": "1.00",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/products/%d", productID), outsiderToken, echo.Map{
		"price": "0.01",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Public listing filtered by supplier
	rec = doRequest(t, e, http.MethodGet, fmt.Sprintf("/products?supplier_id=%d", supplierID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var products []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	require.Len(t, products, 1)
	assert.Equal(t, "Rye Flour", products[0]["name"])

	// Owner updates the price
	rec = doRequest(t, e, http.MethodPut, fmt.Sprintf("/api/products/%d", productID), ownerToken, echo.Map{
		"price": "4.50",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	price := decimal.RequireFromString(decodeBody(t, rec)["price"].(string))
	assert.True(t, decimal.RequireFromString("4.50").Equal(price))

	// Soft delete hides the product from reads
	rec = doRequest(t, e, http.MethodDelete, fmt.Sprintf("/api/products/%d", productID), ownerToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, e, http.MethodGet, fmt.Sprintf("/products/%d", productID), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var stored model.Product
	require.NoError(t, database.GetDB().First(&stored, productID).Error)
	assert.False(t, stored.IsActive)
}

func TestAuthMiddlewareRejections(t *testing.T) {
	e := newTestServer(t)

	rec := doRequest(t, e, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, e, http.MethodGet, "/api/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A valid token for a deactivated account is rejected
	token := registerUser(t, e, "gone@example.com")
	db := database.GetDB()
	require.NoError(t, db.Model(&model.User{}).Where("email = ?", "gone@example.com").
		Update("is_active", false).Error)
	rec = doRequest(t, e, http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
