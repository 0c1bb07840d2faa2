package main

import (
	"time"

	"supplylink/internal/handler"
	"supplylink/internal/middleware"
	"supplylink/pkg/config"
	"supplylink/pkg/database"
	"supplylink/pkg/jwtutil"
	"supplylink/pkg/logger"
	"supplylink/pkg/storage"
	"supplylink/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting supplylink service...", zap.String("environment", cfg.Server.Env))

	// Initialize JWT utilities
	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utilities initialized")

	// Initialize Prometheus metrics
	prometheus.InitMetrics(cfg)
	log.Info("Prometheus metrics initialized")

	// Initialize attachment storage
	if err := storage.Init(&cfg.Upload); err != nil {
		log.Fatal("Failed to initialize attachment storage", zap.Error(err))
	}
	log.Info("Attachment storage initialized", zap.String("dir", cfg.Upload.Dir))

	// Initialize database and run migrations
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established and migrations completed",
		zap.String("db_host", cfg.Database.Host), zap.String("db_name", cfg.Database.Name))

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(middleware.MetricsMiddleware)

	// Request logging middleware
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Process request
			err := next(c)

			// Log request details
			log := logger.FromContext(c)
			log.Info("HTTP Request",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Float64("duration_s", time.Since(start).Seconds()),
				zap.String("ip", c.RealIP()),
			)

			return err
		}
	})

	// Public routes that don't require authentication
	e.GET("/", handler.Hello)
	e.GET("/health", handler.Health)

	// Prometheus metrics endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Message attachments
	e.Static("/uploads", cfg.Upload.Dir)

	// Authentication
	e.POST("/auth/register", handler.Register)
	e.POST("/auth/login", handler.Login)

	// Public catalog browsing
	e.GET("/suppliers", handler.ListSuppliers)
	e.GET("/products", handler.ListProducts)
	e.GET("/products/:product_id", handler.GetProduct)

	// API routes that require authentication
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	api.GET("/me", handler.Me)

	// Supplier management
	api.POST("/suppliers", handler.CreateSupplier)
	api.GET("/suppliers/mine", handler.ListMySuppliers)
	api.DELETE("/suppliers/:supplier_id", handler.DeleteSupplier)
	api.POST("/suppliers/:supplier_id/staff", handler.AddStaff)
	api.GET("/suppliers/:supplier_id/staff", handler.ListStaff)
	api.DELETE("/suppliers/:supplier_id/staff/:user_id", handler.RemoveStaff)

	// Consumer profile
	api.POST("/consumers", handler.CreateConsumer)

	// Catalog management
	api.POST("/suppliers/:supplier_id/products", handler.CreateProduct)
	api.PUT("/products/:product_id", handler.UpdateProduct)
	api.DELETE("/products/:product_id", handler.DeleteProduct)

	// Supplier-consumer links
	api.POST("/links", handler.CreateLink)
	api.GET("/links/mine", handler.ListMyLinks)
	api.PUT("/links/:link_id/status", handler.UpdateLinkStatus)

	// Orders
	api.POST("/orders", handler.CreateOrder)
	api.GET("/orders/mine", handler.ListMyOrders)
	api.GET("/orders/:order_id", handler.GetOrder)
	api.PUT("/orders/:order_id/status", handler.UpdateOrderStatus)
	api.POST("/orders/:order_id/reorder", handler.Reorder)

	// Complaints
	api.POST("/complaints", handler.CreateComplaint)
	api.GET("/complaints/mine", handler.ListMyComplaints)
	api.PUT("/complaints/:complaint_id/status", handler.UpdateComplaintStatus)
	api.POST("/complaints/:complaint_id/escalate", handler.EscalateComplaint)

	// Incidents
	api.POST("/incidents", handler.CreateIncident)
	api.GET("/incidents/mine", handler.ListMyIncidents)
	api.PUT("/incidents/:incident_id/status", handler.UpdateIncidentStatus)

	// Chat
	api.POST("/messages", handler.CreateMessage)
	api.POST("/messages/file", handler.CreateMessageWithFile)
	api.GET("/messages/:supplier_id/:consumer_id", handler.GetThreadMessages)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
