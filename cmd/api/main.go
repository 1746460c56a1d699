package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jordanlanch/funnelsync/config"
	"github.com/jordanlanch/funnelsync/pkg/api/handlers"
	"github.com/jordanlanch/funnelsync/pkg/cache"
	"github.com/jordanlanch/funnelsync/pkg/crm"
	"github.com/jordanlanch/funnelsync/pkg/database"
	"github.com/jordanlanch/funnelsync/pkg/fieldstore"
	"github.com/jordanlanch/funnelsync/pkg/jobs"
	"github.com/jordanlanch/funnelsync/pkg/ledger"
	"github.com/jordanlanch/funnelsync/pkg/logger"
	"github.com/jordanlanch/funnelsync/pkg/metrics"
	custommiddleware "github.com/jordanlanch/funnelsync/pkg/middleware"
	"github.com/jordanlanch/funnelsync/pkg/notify"
	"github.com/jordanlanch/funnelsync/pkg/push"
)

const version = "0.1.0"

func main() {
	// Load configuration
	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			Release:          "funnelsync@" + version,
			TracesSampleRate: 0.2,
			AttachStacktrace: true,
			BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
				// CRM access tokens travel in the Authorization header
				if event.Request != nil {
					delete(event.Request.Headers, "Authorization")
				}
				return event
			},
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

	// Initialize database with SSL configuration
	sslCfg := &database.SSLConfig{
		Mode:         cfg.DBSSLMode,
		CertPath:     cfg.DBSSLCertPath,
		KeyPath:      cfg.DBSSLKeyPath,
		RootCertPath: cfg.DBSSLRootCertPath,
	}
	db, err := database.NewClientWithPoolAndSSL(cfg.DatabaseURL, database.DefaultPoolConfig(), sslCfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fieldStore := fieldstore.NewStore(db.DB)
	operationStore := ledger.NewStore(db.DB)

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx, fieldStore, operationStore); err != nil {
		cancelMigrate()
		log.Fatalf("❌ Failed to migrate database: %v", err)
	}
	cancelMigrate()
	log.Printf("✅ Database schema ready")

	// Redis holds the per-funnel push lease; without it leases are per process
	var locker push.Locker
	var redisPinger handlers.Pinger
	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Printf("⚠️  Redis unavailable, push leases are local to this process: %v", err)
		locker = push.NewMemoryLocker()
	} else {
		defer redisClient.Close()
		locker = redisClient
		redisPinger = redisClient
	}

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New(prometheus.DefaultRegisterer)
	log.Printf("✅ Prometheus metrics initialized")

	// CRM client with instrumented transport
	crmClient := crm.NewClient(crm.Options{
		BaseURL:    cfg.CRMBaseURL,
		APIVersion: cfg.CRMAPIVersion,
		HTTPClient: &http.Client{
			Timeout:   cfg.CRMTimeout,
			Transport: prometheusMetrics.InstrumentCRM(http.DefaultTransport),
		},
		PageSize:   cfg.CRMPageSize,
		MaxRecords: cfg.CRMMaxRecords,
		UserAgent:  "funnelsync/" + version,
	})
	log.Printf("✅ CRM client configured (%s, write interval %s)", cfg.CRMBaseURL, cfg.CRMWriteInterval)

	// Push engine and service
	engine := push.NewEngine(crmClient, operationStore, push.EngineOptions{
		Logger:           appLogger.With("component", "push_engine"),
		NewPacer:         func() push.Pacer { return push.NewRatePacer(cfg.CRMWriteInterval) },
		ProgressInterval: cfg.PushProgressInterval,
	})
	notifiers := notify.Multi{notify.NewEmailNotifier(notify.Options{
		FromEmail: cfg.EmailFrom,
		FromName:  cfg.EmailFromName,
		ToEmail:   cfg.NotifyEmail,
		APIKey:    cfg.SendGridAPIKey,
	})}
	if cfg.SlackWebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(notify.NewWebhookClient(cfg.SlackWebhookURL)))
		log.Printf("✅ Slack notifications enabled")
	} else {
		log.Printf("ℹ️  Slack notifications disabled (no webhook URL configured)")
	}
	pushService := push.NewService(fieldStore, operationStore, engine, push.ServiceOptions{
		Logger:   appLogger.With("component", "push_service"),
		Locker:   locker,
		LeaseTTL: cfg.PushLockTTL,
		Notifier: notifiers,
		Recorder: prometheusMetrics,
	})

	// Re-push funnels whose latest push was partial
	repushMonitor := jobs.NewRepushMonitor(operationStore, pushService, cfg.RepushBatchSize, log.Default())
	var cronManager *jobs.CronManager
	if cfg.RepushEnabled {
		cronManager = jobs.NewCronManager(repushMonitor, log.Default())
		if err := cronManager.SetupJobs(cfg.RepushSchedule); err != nil {
			log.Fatalf("❌ Failed to setup cron jobs: %v", err)
		}
		cronManager.Start()
		log.Printf("✅ Cron jobs started (repush: %s)", cfg.RepushSchedule)
	} else {
		log.Printf("ℹ️  Repush job disabled (REPUSH_ENABLED=false)")
	}

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	defer globalRateLimiter.Close()
	// Pushes are limited per funnel, not per caller
	pushRateLimiter := custommiddleware.NewKeyedRateLimiter(cfg.PushRequestsPerMinute, 1, custommiddleware.ParamKey("funnel_id"))
	defer pushRateLimiter.Close()

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

	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true, // let Recover write the response
		}))
	}

	e.Use(prometheusMetrics.Middleware())
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig(cfg.CORSAllowedOrigins...)))
	e.Use(custommiddleware.SecurityHeaders(custommiddleware.DefaultSecurityHeadersConfig()))
	e.Use(globalRateLimiter.RateLimitMiddleware())

	// Health and metrics (public)
	healthHandler := handlers.NewHealthHandler(db, redisPinger, version)
	e.GET("/health", healthHandler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	pushHandler := handlers.NewPushHandler(pushService, cfg.PushLockTTL)
	fieldsHandler := handlers.NewFieldsHandler(fieldStore)
	jobsHandler := handlers.NewJobsHandler(repushMonitor)

	v1 := e.Group("/api/v1")
	v1.GET("/health", healthHandler.Health)

	funnels := v1.Group("/funnels/:funnel_id")
	{
		funnels.POST("/push", pushHandler.Push, pushRateLimiter.RateLimitMiddleware())
		funnels.GET("/custom-values/preview", pushHandler.Preview)
		funnels.GET("/validation", pushHandler.Validate)
		funnels.GET("/push-operations", pushHandler.ListOperations)

		funnels.PUT("/sections/:section_id/fields/:field_id", fieldsHandler.SaveField)
		funnels.DELETE("/sections/:section_id/fields/:field_id", fieldsHandler.DeleteField)
		funnels.POST("/sections/:section_id/approve", fieldsHandler.ApproveSection)
	}

	v1.GET("/push-operations/:id", pushHandler.GetOperation)
	v1.GET("/push-operations/:id/report", pushHandler.DownloadReport)
	v1.POST("/jobs/repush", jobsHandler.TriggerRepushHandler)

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 FunnelSync API starting on %s", address)
	log.Printf("📝 Log level: %s, Log format: %s", cfg.LogLevel, cfg.LogFormat)
	log.Printf("🛡️  Rate limiting: %d req/min (burst: %d), pushes: %d/min per funnel",
		cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst, cfg.PushRequestsPerMinute)

	// Graceful shutdown
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	if cronManager != nil {
		cronManager.Stop()
		log.Println("✅ Cron jobs stopped")
	}

	// Running pushes keep their lease until it expires if cut off here
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}
