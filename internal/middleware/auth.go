package middleware

import (
	"net/http"
	"strings"

	"supplylink/internal/model"
	"supplylink/pkg/database"
	"supplylink/pkg/jwtutil"
	"supplylink/pkg/logger"
	"supplylink/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthMiddleware verifies the JWT token and resolves the authenticated user.
// Inactive accounts are rejected with 403 even when the token is valid.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		// Track authentication attempts
		prometheus.AuthAttemptsCounter.Inc()

		// Extract the token from the Authorization header
		tokenString := c.Request().Header.Get("Authorization")
		if tokenString == "" {
			log.Warn("Missing authorization token")
			prometheus.RecordAuthError("missing_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "kind": "unauthenticated"})
		}

		// Remove "Bearer " prefix if present
		if len(tokenString) > 7 && strings.ToUpper(tokenString[0:7]) == "BEARER " {
			tokenString = tokenString[7:]
		}

		// Validate the token
		claims, err := jwtutil.ValidateToken(tokenString)
		if err != nil {
			log.Warn("Invalid token", zap.Error(err))
			prometheus.RecordAuthError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "could not validate credentials", "kind": "unauthenticated"})
		}

		// Resolve the user behind the token
		var user model.User
		result := database.GetDB().Where("email = ?", claims.Email).First(&user)
		if result.Error != nil {
			log.Warn("Token user not found", zap.String("email", claims.Email))
			prometheus.RecordAuthError("user_not_found")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "could not validate credentials", "kind": "unauthenticated"})
		}

		if !user.IsActive {
			log.Warn("Inactive user rejected", zap.Uint("user_id", user.ID))
			prometheus.RecordAuthError("inactive_user")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "user is inactive", "kind": "forbidden"})
		}

		// Increment successful auth counter
		prometheus.AuthSuccessCounter.Inc()

		// Store user information in the context
		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Set("email", user.Email)

		// Update logger with user information
		log = log.With(
			zap.Uint("user_id", user.ID),
			zap.String("email", user.Email),
		)
		c.Set("logger", log)

		// Call the next handler
		return next(c)
	}
}

// CurrentUser returns the authenticated user stored by AuthMiddleware
func CurrentUser(c echo.Context) (model.User, bool) {
	user, ok := c.Get("user").(model.User)
	return user, ok
}
