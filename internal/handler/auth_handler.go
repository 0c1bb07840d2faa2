package handler

import (
	"net/http"
	"time"

	"supplylink/internal/authz"
	"supplylink/internal/model"
	"supplylink/pkg/database"
	"supplylink/pkg/jwtutil"
	"supplylink/pkg/logger"
	"supplylink/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Platform selectors accepted by the login endpoint
const (
	PlatformMobile = "mobile"
	PlatformWeb    = "web"
)

// UserOut is the user representation with resolved roles
type UserOut struct {
	ID            uint                     `json:"id"`
	Email         string                   `json:"email"`
	FullName      string                   `json:"full_name"`
	IsActive      bool                     `json:"is_active"`
	GlobalRole    model.GlobalRole         `json:"global_role,omitempty"`
	SupplierRoles []authz.SupplierRoleInfo `json:"supplier_roles"`
	ConsumerID    *uint                    `json:"consumer_id,omitempty"`
	MainRole      string                   `json:"main_role"`
}

func buildUserOut(user *model.User) (*UserOut, error) {
	facts, err := authz.Resolve(database.GetDB(), user)
	if err != nil {
		return nil, err
	}
	roles := facts.SupplierRoles
	if roles == nil {
		roles = []authz.SupplierRoleInfo{}
	}
	return &UserOut{
		ID:            user.ID,
		Email:         user.Email,
		FullName:      user.FullName,
		IsActive:      user.IsActive,
		GlobalRole:    user.GlobalRole,
		SupplierRoles: roles,
		ConsumerID:    facts.ConsumerID,
		MainRole:      facts.MainRole(),
	}, nil
}

// Register creates a new user account
func Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	// Parse request
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request", "kind": "invalid_request"})
	}

	if req.Email == "" || req.Password == "" || req.FullName == "" {
		log.Error("Invalid registration data",
			zap.String("email", req.Email),
			zap.Bool("password_provided", req.Password != ""))
		prometheus.RecordAuthError("incomplete_registration")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email, password and full_name are required", "kind": "invalid_request"})
	}

	// Check if user already exists - track DB query
	defer prometheus.TrackDBOperation("query")(time.Now())
	var existingUser model.User
	result := database.GetDB().Where("email = ?", req.Email).First(&existingUser)
	if result.Error == nil {
		log.Warn("User already exists", zap.String("email", req.Email))
		prometheus.RecordAuthError("email_already_exists")
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered", "kind": "conflict"})
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	// Create new user
	user := model.User{
		Email:    req.Email,
		Password: string(hashedPassword),
		FullName: req.FullName,
		IsActive: true,
	}

	// Save to database - track DB insert operation
	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&user); result.Error != nil {
		log.Error("Failed to create user", zap.Error(result.Error))
		prometheus.RecordAuthError("user_creation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	log.Info("User registered", zap.String("email", user.Email))
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User registered successfully",
		"user": map[string]interface{}{
			"id":        user.ID,
			"email":     user.Email,
			"full_name": user.FullName,
		},
	})
}

// Login authenticates a user and issues a bearer token.
//
// The optional `platform` query parameter restricts which roles may log in:
// mobile excludes supplier Owners/Managers, web excludes Sales staff.
// Platform admins bypass the restriction. A platform rejection returns the
// same generic message as a wrong password so callers cannot probe roles.
func Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	// Parse request
	var req struct {
		Email    string `json:"email" form:"username"`
		Password string `json:"password" form:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request", "kind": "invalid_request"})
	}

	platform := c.QueryParam("platform")

	// Find user in database - track DB operation duration
	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	result := database.GetDB().Where("email = ?", req.Email).First(&user)
	if result.Error != nil {
		log.Warn("Login for unknown user", zap.String("email", req.Email))
		prometheus.RecordAuthError("user_not_found")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "incorrect email or password", "kind": "unauthenticated"})
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "incorrect email or password", "kind": "unauthenticated"})
	}

	if !user.IsActive {
		log.Warn("Inactive user login rejected", zap.String("email", req.Email))
		prometheus.RecordAuthError("inactive_user")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "user is inactive", "kind": "forbidden"})
	}

	userOut, err := buildUserOut(&user)
	if err != nil {
		return fail(c, log, err)
	}

	// Platform-based role validation. The rejection is indistinguishable
	// from a wrong password on purpose.
	if user.GlobalRole != model.GlobalRolePlatformAdmin {
		facts := authz.RoleFacts{SupplierRoles: userOut.SupplierRoles}
		switch platform {
		case PlatformMobile:
			if facts.HasSupplierRole(model.SupplierRoleOwner, model.SupplierRoleManager) {
				log.Warn("Owner/Manager rejected on mobile platform", zap.String("email", req.Email))
				prometheus.RecordAuthError("platform_role_rejected")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "incorrect email or password", "kind": "unauthenticated"})
			}
		case PlatformWeb:
			if facts.HasSupplierRole(model.SupplierRoleSales) {
				log.Warn("Sales staff rejected on web platform", zap.String("email", req.Email))
				prometheus.RecordAuthError("platform_role_rejected")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "incorrect email or password", "kind": "unauthenticated"})
			}
		}
	}

	// Generate JWT token
	token, err := jwtutil.GenerateToken(user.Email, user.ID)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("User logged in",
		zap.String("email", user.Email),
		zap.String("main_role", userOut.MainRole),
		zap.String("platform", platform))

	return c.JSON(http.StatusOK, echo.Map{
		"access_token": token,
		"token_type":   "bearer",
		"user":         userOut,
	})
}

// Me returns the authenticated user's profile with resolved roles
func Me(c echo.Context) error {
	log := logger.FromContext(c)

	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
	}

	userOut, err := buildUserOut(&user)
	if err != nil {
		return fail(c, log, err)
	}

	return c.JSON(http.StatusOK, userOut)
}
