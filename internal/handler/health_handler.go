package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Hello returns a simple service banner
func Hello(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"message": "SupplyLink Platform API",
		"version": "1.0.0",
	})
}

// Health returns the service health status
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status": "healthy",
	})
}
