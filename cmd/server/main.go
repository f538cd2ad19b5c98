package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/config"
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/handlers"
	"github.com/swiftbus/booking-backend/internal/middleware"
	"github.com/swiftbus/booking-backend/internal/services"
	"github.com/swiftbus/booking-backend/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting SwiftBus Booking Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Repositories
	userRepo := database.NewUserRepository(db)
	tripRepo := database.NewTripRepository(db)
	seatRepo := database.NewSeatRepository(db)
	bookingRepo := database.NewBookingRepository(db)
	sessionRepo := database.NewPaymentSessionRepository(db)
	auditRepo := database.NewPaymentAuditRepository(db, logger)

	// Services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	bookingService := services.NewBookingService(
		bookingRepo, tripRepo, seatRepo, &cfg.Booking, cfg.Payment.Currency, logger,
	)
	checkoutService := services.NewCheckoutService(&cfg.Payment, logger)
	auditService := services.NewAuditService(auditRepo, logger)
	paymentService := services.NewPaymentService(
		sessionRepo, bookingService, checkoutService, auditService, cfg.Payment.Currency, logger,
	)
	ticketService := services.NewTicketService(bookingService, tripRepo)
	analyticsService := services.NewAnalyticsService(userRepo, bookingRepo, tripRepo)

	expiryService := services.NewExpiryService(bookingService, seatRepo, &cfg.Booking, logger)
	if err := expiryService.Start(); err != nil {
		logger.Fatalf("Failed to start expiry service: %v", err)
	}
	logger.Info("Expiry service started")

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, jwtService, cfg.Security.BcryptCost, logger)
	tripHandler := handlers.NewTripHandler(tripRepo, seatRepo, logger)
	bookingHandler := handlers.NewBookingHandler(bookingService, ticketService, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, &cfg.Payment, logger)
	adminHandler := handlers.NewAdminHandler(tripRepo, bookingRepo, userRepo, analyticsService, auditService, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Security.EnableRequestLog {
		router.Use(requestLogger(logger))
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(db))

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)

			protected := auth.Group("")
			protected.Use(middleware.AuthMiddleware(jwtService))
			{
				protected.GET("/me", authHandler.Me)
			}
		}

		// Public trip catalog
		trips := v1.Group("/trips")
		{
			trips.GET("/search", tripHandler.Search)
			trips.GET("/:id", tripHandler.GetByID)
			trips.GET("/:id/seats", tripHandler.GetSeatMap)
		}

		// Bookings (protected)
		bookings := v1.Group("/bookings")
		bookings.Use(middleware.AuthMiddleware(jwtService))
		{
			bookings.POST("", bookingHandler.Create)
			bookings.GET("", bookingHandler.List)
			bookings.GET("/:id", bookingHandler.GetByID)
			bookings.DELETE("/:id", bookingHandler.Cancel)
			bookings.GET("/:id/ticket", bookingHandler.DownloadTicket)
		}

		// Payments
		payments := v1.Group("/payments")
		{
			// Webhook is authenticated by the processor, not by users
			payments.POST("/webhook", paymentHandler.Webhook)

			paymentsProtected := payments.Group("")
			paymentsProtected.Use(middleware.AuthMiddleware(jwtService))
			{
				paymentsProtected.POST("/sessions", paymentHandler.OpenSession)
				paymentsProtected.GET("/status/:session_id", paymentHandler.CheckStatus)
			}
		}

		// Admin surface
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService), middleware.RequireAdmin())
		{
			admin.POST("/trips", adminHandler.CreateTrip)
			admin.GET("/trips", adminHandler.ListTrips)
			admin.PUT("/trips/:id", adminHandler.UpdateTrip)
			admin.DELETE("/trips/:id", adminHandler.DeleteTrip)
			admin.GET("/bookings", adminHandler.ListBookings)
			admin.GET("/users", adminHandler.ListUsers)
			admin.GET("/analytics", adminHandler.GetAnalytics)
			admin.GET("/payments/sessions/:session_id/audits", adminHandler.GetSessionAudits)
			admin.GET("/payments/mismatches", adminHandler.GetAmountMismatches)

			admin.POST("/sweep", func(c *gin.Context) {
				expired, err := expiryService.RunSweepNow()
				if err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
					return
				}
				c.JSON(http.StatusOK, gin.H{"expired": expired})
			})
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	expiryService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		if userCtx, exists := middleware.GetUserContext(c); exists {
			fields["user_id"] = userCtx.UserID
		}

		entry := logger.WithFields(fields)
		status := c.Writer.Status()
		switch {
		case len(c.Errors) > 0:
			entry.WithField("errors", c.Errors.String()).Error("Request failed with errors")
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
