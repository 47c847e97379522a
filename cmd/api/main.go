package main

// @title Lead CRM API
// @version 1.0
// @description Lead pipeline for real-estate sales teams: capture, qualify, schedule, import and export.

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/jordanlanch/leadcrm/config"
	"github.com/jordanlanch/leadcrm/pkg/api/handlers"
	"github.com/jordanlanch/leadcrm/pkg/auth"
	"github.com/jordanlanch/leadcrm/pkg/cache"
	"github.com/jordanlanch/leadcrm/pkg/database"
	"github.com/jordanlanch/leadcrm/pkg/export"
	importpkg "github.com/jordanlanch/leadcrm/pkg/import"
	"github.com/jordanlanch/leadcrm/pkg/leadlifecycle"
	"github.com/jordanlanch/leadcrm/pkg/leads"
	"github.com/jordanlanch/leadcrm/pkg/logger"
	"github.com/jordanlanch/leadcrm/pkg/metrics"
	custommiddleware "github.com/jordanlanch/leadcrm/pkg/middleware"
	"github.com/jordanlanch/leadcrm/pkg/store"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	appLog := logger.New(cfg.LogLevel)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 0.2,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	loc, err := time.LoadLocation(cfg.CRMTimezone)
	if err != nil {
		log.Fatalf("❌ Invalid CRM_TIMEZONE %q: %v", cfg.CRMTimezone, err)
	}

	// Initialize database with SSL configuration
	pool := database.DefaultPoolConfig()
	if cfg.DatabaseDriver == database.DriverSQLite {
		pool = database.SQLitePoolConfig()
	}
	sslCfg := &database.SSLConfig{
		Mode:         cfg.DBSSLMode,
		CertPath:     cfg.DBSSLCertPath,
		KeyPath:      cfg.DBSSLKeyPath,
		RootCertPath: cfg.DBSSLRootCertPath,
	}
	db, err := database.NewClientWithPoolAndSSL(cfg.DatabaseDriver, cfg.DatabaseURL, pool, sslCfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Redis only backs token revocation, so the API can run without it
	var (
		tokenBlacklist *auth.TokenBlacklist
		cachePinger    handlers.Pinger
	)
	redisClient, err := cache.NewClient(cfg.RedisURL,
		cache.WithNamespace(cfg.RedisNamespace),
		cache.WithTimeouts(5*time.Second, 3*time.Second),
	)
	if err != nil {
		log.Printf("⚠️  Redis unavailable, logout disabled: %v", err)
	} else {
		defer redisClient.Close()
		tokenBlacklist = auth.NewTokenBlacklist(redisClient)
		cachePinger = redisClient
	}

	// Initialize Prometheus metrics
	var prometheusMetrics *metrics.Metrics
	if cfg.MetricsEnabled {
		prometheusMetrics = metrics.New(prometheus.DefaultRegisterer)
		log.Printf("✅ Prometheus metrics initialized")
	}

	// Services
	leadStore := store.New(db.Driver)
	leadService := leads.NewService(leadStore, loc, appLog.With("component", "leads"))
	lifecycleService := leadlifecycle.NewService(leadStore, loc, appLog.With("component", "lifecycle"))
	importService := importpkg.NewCSVImportService(leadService, appLog.With("component", "import"))
	exportService := export.NewService(leadService, loc, appLog.With("component", "export"))

	importCfg := importpkg.DefaultCSVConfig()
	importCfg.MaxRows = cfg.ImportMaxRows
	importCfg.BatchSize = cfg.ImportBatchSize

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Initialize rate limiters
	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	publicLeadsRateLimiter := custommiddleware.NewRateLimiter(cfg.PublicLeadsPerMinute, 2)
	defer globalRateLimiter.Stop()
	defer publicLeadsRateLimiter.Stop()

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[%s] %s - Status: %d", c.Request().Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	// Sentry error tracking middleware (if configured)
	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true, // Recover middleware handles the panic afterwards
		}))
	}

	e.Use(prometheusMetrics.Middleware())
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig(cfg.CORSAllowedOrigins)))
	e.Use(custommiddleware.SecurityHeaders(custommiddleware.DefaultSecurityHeadersConfig()))
	e.Use(middleware.Gzip())
	e.Use(globalRateLimiter.RateLimitMiddleware())

	healthHandler := handlers.NewHealthHandler(db, cachePinger)
	e.GET("/health", healthHandler.Check)
	if cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	registerRoutes(e.Group("/api/v1"), routeDeps{
		jwtSecret:         cfg.JWTSecret,
		blacklist:         tokenBlacklist,
		publicRateLimiter: publicLeadsRateLimiter,
		leads:             handlers.NewLeadHandler(leadService, prometheusMetrics),
		lifecycle:         handlers.NewLeadLifecycleHandler(lifecycleService, prometheusMetrics),
		imports:           handlers.NewImportHandler(importService, importCfg, prometheusMetrics),
		exports:           handlers.NewExportHandler(exportService, prometheusMetrics),
		auth:              handlers.NewAuthHandler(tokenBlacklist),
	})

	statsCtx, stopStats := context.WithCancel(context.Background())
	defer stopStats()
	if prometheusMetrics != nil {
		go reportPoolStats(statsCtx, db, prometheusMetrics)
	}

	// Start server
	address := cfg.APIHost + ":" + cfg.APIPort
	log.Printf("🚀 Lead CRM API starting on %s", address)
	log.Printf("📝 Log level: %s, CRM timezone: %s", cfg.LogLevel, loc)
	log.Printf("🛡️  Rate limiting: %d req/min (burst: %d), public leads: %d req/min", cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst, cfg.PublicLeadsPerMinute)
	log.Printf("📥 Import: max %d rows, progress every %d rows", cfg.ImportMaxRows, cfg.ImportBatchSize)

	// Graceful shutdown
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}

// reportPoolStats publishes the open connection count until ctx ends.
func reportPoolStats(ctx context.Context, db *database.Client, m *metrics.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		m.UpdateDBConnections(db.Stats().OpenConnections)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
