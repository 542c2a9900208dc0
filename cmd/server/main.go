package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appfiling "github.com/gstfiling/backend/internal/application/filing"
	"github.com/gstfiling/backend/internal/infrastructure/config"
	"github.com/gstfiling/backend/internal/infrastructure/jobstore"
	"github.com/gstfiling/backend/internal/infrastructure/logger"
	"github.com/gstfiling/backend/internal/infrastructure/magento"
	"github.com/gstfiling/backend/internal/infrastructure/telemetry"
	"github.com/gstfiling/backend/internal/interfaces/http/handler"
	"github.com/gstfiling/backend/internal/interfaces/http/middleware"
	"github.com/gstfiling/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting GST Filing Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize OpenTelemetry tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Upstream commerce platform adapter
	magentoCfg := magento.NewConfig(cfg.Magento.BaseURL)
	magentoCfg.TimeoutSeconds = cfg.Magento.TimeoutSeconds
	magentoCfg.LookupTimeoutSeconds = cfg.Magento.LookupTimeoutSeconds
	magentoCfg.PageSize = cfg.Magento.PageSize
	adapter, err := magento.NewAdapter(magentoCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize commerce platform adapter", zap.Error(err))
	}

	// Job store for background report jobs
	store, err := jobstore.NewFromConfig(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize job store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing job store", zap.Error(err))
		}
	}()
	log.Info("Job store initialized", zap.String("backend", cfg.JobStore.Backend))

	// Report service and background coordinator
	svcCfg, err := serviceConfig(&cfg.Report)
	if err != nil {
		log.Fatal("Invalid report configuration", zap.Error(err))
	}
	reportService := appfiling.NewService(adapter, svcCfg, log)
	coordinator := appfiling.NewCoordinator(reportService, store, log)

	// Initialize HTTP handlers
	authHandler := handler.NewAuthHandler(adapter, log)
	reportHandler := handler.NewReportHandler(reportService, coordinator, log)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack: request ID first so recovery and logging can tag it
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.Timeout(cfg.HTTP.RequestTimeout))

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Health check endpoint (outside API versioning)
	engine.GET("/healthz", systemHandler.Health)

	// Setup API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(authHandler).
		Register(reportHandler).
		Register(systemHandler)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	// Let in-flight background report jobs finish writing their final state
	coordinator.Wait()

	log.Info("Server exited gracefully")
}

// serviceConfig maps the flat report configuration onto the typed
// service switches, resolving the timezone when local boundaries are
// requested.
func serviceConfig(rc *config.ReportConfig) (appfiling.ServiceConfig, error) {
	cfg := appfiling.ServiceConfig{
		Aggregation: appfiling.AggregatorConfig{
			ClassificationMode: appfiling.ClassificationMode(rc.ClassificationMode),
			DefaultHSNCode:     rc.DefaultHSNCode,
			B2CGranularity:     appfiling.B2CGranularity(rc.B2CGranularity),
			DocumentSort:       appfiling.DocumentSortMode(rc.DocumentSort),
		},
		DateBoundary:       appfiling.DateBoundaryMode(rc.DateBoundary),
		FetchItemsPerOrder: rc.FetchItemsPerOrder,
	}

	if cfg.DateBoundary == appfiling.DateBoundaryLocal {
		loc := time.Local
		if rc.Timezone != "" {
			var err error
			loc, err = time.LoadLocation(rc.Timezone)
			if err != nil {
				return cfg, err
			}
		}
		cfg.Location = loc
	}

	return cfg, nil
}
