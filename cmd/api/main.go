package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/distributor-platform/tracking-service/internal/application"
	"github.com/distributor-platform/tracking-service/internal/config"
	mongoRepo "github.com/distributor-platform/tracking-service/internal/infrastructure/mongodb"
	"github.com/distributor-platform/tracking-service/internal/notify"
	"github.com/distributor-platform/tracking-service/pkg/errors"
	"github.com/distributor-platform/tracking-service/pkg/logging"
	"github.com/distributor-platform/tracking-service/pkg/metrics"
	"github.com/distributor-platform/tracking-service/pkg/middleware"
	"github.com/distributor-platform/tracking-service/pkg/mongodb"
	"github.com/distributor-platform/tracking-service/pkg/tracing"
)

const serviceName = "tracking-service"

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting tracking-service API")

	cfg := loadConfig()
	ctx := context.Background()

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	tracingConfig.Environment = getEnv("ENVIRONMENT", "development")
	tracingConfig.Enabled = getEnv("TRACING_ENABLED", "true") == "true"

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		// Continue without tracing - don't exit
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", tracingConfig.OTLPEndpoint)
	}

	// Initialize Prometheus metrics
	m := metrics.New(metrics.DefaultConfig(serviceName))
	logger.Info("Metrics initialized")

	// Initialize MongoDB with instrumentation and circuit breaker
	mongoClient, err := mongodb.NewProductionClient(ctx, cfg.MongoDB, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(ctx)
	logger.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)

	// Initialize repositories
	shipmentRepo := mongoRepo.NewShipmentRepository(
		mongoClient.Collection(mongoRepo.CollectionShipments),
		mongoClient.Collection(mongoRepo.CollectionShipmentHistory),
	)
	subscriberRepo := mongoRepo.NewSubscriberRepository(mongoClient.Collection(mongoRepo.CollectionSubscribers))
	deadLetterRepo := mongoRepo.NewDeadLetterRepository(mongoClient.Collection(mongoRepo.CollectionDeadLetters))
	routeRepo := mongoRepo.NewRouteRepository(mongoClient.Collection(mongoRepo.CollectionRoutes))

	// Load the partner directory for direct broadcasts
	partners, err := config.LoadPartners(cfg.PartnerConfigPath)
	if err != nil {
		logger.WithError(err).Warn("No partner directory loaded, direct broadcasts disabled", "path", cfg.PartnerConfigPath)
		partners = map[string]string{}
	}
	logger.Info("Partner directory loaded", "partners", len(partners))

	// Initialize notification fan-out
	dispatcher := notify.NewDispatcher(cfg.Dispatcher, deadLetterRepo, logger, m)
	broadcaster := notify.NewBroadcaster(cfg.Broadcaster, partners, shipmentRepo, logger, m)

	// Initialize application services
	trackingService := application.NewTrackingApplicationService(
		shipmentRepo,
		routeRepo,
		subscriberRepo,
		dispatcher,
		broadcaster,
		m,
		logger,
	)
	webhookService := application.NewWebhookApplicationService(
		subscriberRepo,
		deadLetterRepo,
		m,
		logger,
	)

	// Setup Gin router with middleware
	router := gin.New()

	middlewareConfig := middleware.DefaultConfig(serviceName, logger.Logger)
	middleware.Setup(router, middlewareConfig)

	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.SimpleTracingMiddleware(serviceName))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	// Health check endpoints
	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		return mongoClient.HealthCheck(ctx)
	}))

	// Metrics endpoint
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	api := router.Group("/api/v1")
	{
		api.POST("/quotes", quoteHandler(trackingService, logger))

		api.POST("/shipments", createShipmentHandler(trackingService, logger))
		api.GET("/shipments", listShipmentsHandler(trackingService, logger))
		api.GET("/shipments/tracking/:trackingCode", getByTrackingHandler(trackingService, logger))
		api.GET("/shipments/:shipmentId", getShipmentHandler(trackingService, logger))
		api.POST("/shipments/:shipmentId/status", updateStatusHandler(trackingService, logger))

		api.POST("/routes", createRouteHandler(trackingService, logger))
		api.GET("/routes", listRoutesHandler(trackingService, logger))

		api.POST("/webhooks/subscriptions", subscribeHandler(webhookService, logger))
		api.POST("/webhooks/unsubscribe", unsubscribeHandler(webhookService, logger))
		api.GET("/webhooks/dead-letters", listDeadLettersHandler(webhookService, logger))

		api.POST("/broadcasts/test", broadcastTestHandler(trackingService, logger))
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
		}
	}()
	logger.Info("Server started", "addr", cfg.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Let in-flight webhook deliveries and queued broadcasts finish
	dispatcher.Wait()
	broadcaster.Close()

	logger.Info("Server stopped")
}

// Config holds application configuration
type Config struct {
	ServerAddr        string
	PartnerConfigPath string
	MongoDB           *mongodb.Config
	Dispatcher        *notify.DispatcherConfig
	Broadcaster       *notify.BroadcasterConfig
}

func loadConfig() *Config {
	dispatcher := notify.DefaultDispatcherConfig()
	// Synchronous delivery makes the status endpoint wait for every
	// webhook outcome; useful for partners that poll dead letters.
	dispatcher.Async = getEnv("WEBHOOK_SYNC", "false") != "true"

	broadcaster := notify.DefaultBroadcasterConfig()
	broadcaster.QueueSize = getEnvInt("BROADCAST_QUEUE_SIZE", broadcaster.QueueSize)
	broadcaster.Workers = getEnvInt("BROADCAST_WORKERS", broadcaster.Workers)

	return &Config{
		ServerAddr:        getEnv("SERVER_ADDR", ":8007"),
		PartnerConfigPath: getEnv("PARTNER_CONFIG_PATH", "configs/partners.yaml"),
		MongoDB: &mongodb.Config{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "distributor_tracking"),
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    100,
			MinPoolSize:    10,
		},
		Dispatcher:  dispatcher,
		Broadcaster: broadcaster,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func respond(responder *middleware.ErrorResponder, err error) {
	if appErr, ok := errors.AsAppError(err); ok {
		responder.RespondWithAppError(appErr)
		return
	}
	responder.RespondInternalError(err)
}

// HTTP Handlers

func quoteHandler(service *application.TrackingApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Origin      string `json:"origin" binding:"required"`
			Destination string `json:"destination" binding:"required"`
			WeightKg    int    `json:"weightKg" binding:"required,gte=1"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		quote, err := service.Quote(c.Request.Context(), application.QuoteCommand{
			Origin:      req.Origin,
			Destination: req.Destination,
			WeightKg:    req.WeightKg,
		})
		if err != nil {
			respond(responder, err)
			return
		}

		c.JSON(http.StatusOK, quote)
	}
}

func createShipmentHandler(service *application.TrackingApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			OrderID     string `json:"orderId"`
			PartnerID   string `json:"partnerId" binding:"required,partner_id"`
			Supplier    string `json:"supplier"`
			Distributor string `json:"distributor"`
			Origin      string `json:"origin" binding:"required"`
			Destination string `json:"destination" binding:"required"`
			WeightKg    int    `json:"weightKg" binding:"omitempty,gte=1"`
			Items       []struct {
				ItemID   string `json:"itemId"`
				Name     string `json:"name" binding:"required"`
				Quantity int    `json:"quantity" binding:"required,gte=1"`
			} `json:"items" binding:"required,min=1,dive"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		cmd := application.CreateShipmentCommand{
			OrderID:     req.OrderID,
			PartnerID:   req.PartnerID,
			Supplier:    req.Supplier,
			Distributor: req.Distributor,
			Origin:      req.Origin,
			Destination: req.Destination,
			WeightKg:    req.WeightKg,
		}
		for _, item := range req.Items {
			cmd.Items = append(cmd.Items, application.ItemInput{
				ItemID:   item.ItemID,
				Name:     item.Name,
				Quantity: item.Quantity,
			})
		}

		shipment, err := service.CreateShipment(c.Request.Context(), cmd)
		if err != nil {
			respond(responder, err)
			return
		}

		c.JSON(http.StatusCreated, shipment)
	}
}

func listShipmentsHandler(service *application.TrackingApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)
		query := application.ListShipmentsQuery{
			PartnerID: c.Query("partnerId"),
			Limit:     limit,
		}

		shipments, err := service.ListShipments(c.Request.Context(), query)
		if err != nil {
			respond(responder, err)
			return
		}

		c.JSON(http.StatusOK, shipments)
	}
}

func getShipmentHandler(service *application.TrackingApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		query := application.GetShipmentQuery{ShipmentID: c.Param("shipmentId")}
		shipment, err := service.GetShipment(c.Request.Context(), query)
		if err != nil {
			respond(responder, err)
			return
		}

		c.JSON(http.StatusOK, shipment)
	}
}

func getByTrackingHandler(service *application.TrackingApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		query := application.GetByTrackingQuery{TrackingCode: c.Param("trackingCode")}
		shipment, err := service.GetByTracking(c.Request.Context(), query)
		if err != nil {
			respond(responder, err)
			return
		}

		c.JSON(http.StatusOK, shipment)
	}
}

func updateStatusHandler(service *application.TrackingApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Status string `json:"status" binding:"required"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		cmd := application.UpdateStatusCommand{
			ShipmentID: c.Param("shipmentId"),
			Status:     req.Status,
		}

		result, err := service.UpdateStatus(c.Request.Context(), cmd)
		if err != nil {
			respond(responder, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func createRouteHandler(service *application.TrackingApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Origin      string  `json:"origin" binding:"required"`
			Destination string  `json:"destination" binding:"required"`
			BasePrice   float64 `json:"basePrice" binding:"required,gt=0"`
			ETADays     int     `json:"etaDays" binding:"omitempty,gte=0"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		route, err := service.CreateRoute(c.Request.Context(), application.CreateRouteCommand{
			Origin:      req.Origin,
			Destination: req.Destination,
			BasePrice:   req.BasePrice,
			ETADays:     req.ETADays,
		})
		if err != nil {
			respond(responder, err)
			return
		}

		c.JSON(http.StatusCreated, route)
	}
}

func listRoutesHandler(service *application.TrackingApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		routes, err := service.ListRoutes(c.Request.Context())
		if err != nil {
			respond(responder, err)
			return
		}

		c.JSON(http.StatusOK, routes)
	}
}

func subscribeHandler(service *application.WebhookApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			TargetURL string   `json:"targetUrl" binding:"required,webhook_url"`
			Events    []string `json:"events" binding:"required,min=1"`
			Secret    string   `json:"secret"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		subscription, err := service.Subscribe(c.Request.Context(), application.SubscribeCommand{
			TargetURL: req.TargetURL,
			Events:    req.Events,
			Secret:    req.Secret,
		})
		if err != nil {
			respond(responder, err)
			return
		}

		c.JSON(http.StatusCreated, subscription)
	}
}

func unsubscribeHandler(service *application.WebhookApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			SubscriberID string `json:"subscriberId"`
			TargetURL    string `json:"targetUrl" binding:"omitempty,webhook_url"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := service.Unsubscribe(c.Request.Context(), application.UnsubscribeCommand{
			SubscriberID: req.SubscriberID,
			TargetURL:    req.TargetURL,
		})
		if err != nil {
			respond(responder, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func listDeadLettersHandler(service *application.WebhookApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
		letters, err := service.ListDeadLetters(c.Request.Context(), application.ListDeadLettersQuery{Limit: limit})
		if err != nil {
			respond(responder, err)
			return
		}

		c.JSON(http.StatusOK, letters)
	}
}

func broadcastTestHandler(service *application.TrackingApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			PartnerID    string `json:"partnerId" binding:"required,partner_id"`
			TrackingCode string `json:"trackingCode" binding:"required,tracking_code"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		shipmentID, err := service.BroadcastTest(c.Request.Context(), application.BroadcastTestCommand{
			PartnerID:    req.PartnerID,
			TrackingCode: req.TrackingCode,
		})
		if err != nil {
			respond(responder, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"shipmentId": shipmentID, "partnerId": req.PartnerID})
	}
}
