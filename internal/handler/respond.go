package handler

import (
	"net/http"

	"supplylink/internal/apperror"
	"supplylink/internal/model"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// fail maps an application error to its HTTP status and JSON body.
// Non-application errors are logged and hidden behind a generic 500.
func fail(c echo.Context, log *zap.Logger, err error) error {
	kind := apperror.KindOf(err)
	if kind == "" {
		log.Error("Unexpected error", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	return c.JSON(apperror.HTTPStatus(kind), echo.Map{
		"error": err.Error(),
		"kind":  string(kind),
	})
}

// currentUser returns the authenticated user stored by AuthMiddleware
func currentUser(c echo.Context) (model.User, bool) {
	user, ok := c.Get("user").(model.User)
	return user, ok
}
