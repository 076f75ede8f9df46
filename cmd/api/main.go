package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pipeworks-za/backend/config"
	"github.com/pipeworks-za/backend/pkg/ai/llm"
	"github.com/pipeworks-za/backend/pkg/analytics"
	"github.com/pipeworks-za/backend/pkg/api/handlers"
	"github.com/pipeworks-za/backend/pkg/cache"
	"github.com/pipeworks-za/backend/pkg/database"
	"github.com/pipeworks-za/backend/pkg/email"
	"github.com/pipeworks-za/backend/pkg/export"
	"github.com/pipeworks-za/backend/pkg/followup"
	"github.com/pipeworks-za/backend/pkg/intake"
	"github.com/pipeworks-za/backend/pkg/jobs"
	"github.com/pipeworks-za/backend/pkg/metrics"
	custommiddleware "github.com/pipeworks-za/backend/pkg/middleware"
	"github.com/pipeworks-za/backend/pkg/storage"
	"github.com/pipeworks-za/backend/pkg/store"
	"github.com/pipeworks-za/backend/pkg/telegram"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
			BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
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

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("❌ Failed to run migrations: %v", err)
	}
	log.Println("✅ Database connected and migrated")

	// Initialize Redis. Optional: without it dedup claims and sliding
	// window limits are skipped, per-IP limiting still applies.
	var redisClient *cache.Client
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("❌ Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		log.Println("ℹ️  Redis disabled (no REDIS_URL configured)")
	}

	// Interface fields must stay nil, not hold a nil *cache.Client
	var claimer intake.Claimer
	var windowLimiter custommiddleware.WindowLimiter
	if redisClient != nil {
		claimer = redisClient
		windowLimiter = redisClient
	}

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New()
	log.Printf("✅ Prometheus metrics initialized")

	st := store.NewStore(db)

	// Telegram operator bot
	operatorID, err := strconv.ParseInt(cfg.TelegramOperatorID, 10, 64)
	if err != nil && cfg.TelegramOperatorID != "" {
		log.Fatalf("❌ TELEGRAM_OPERATOR_ID must be a numeric chat id: %v", err)
	}
	botClient := telegram.NewClient(cfg.TelegramBotToken)
	telegramService := telegram.NewService(botClient, st, operatorID)
	if botClient.Enabled() && operatorID != 0 {
		log.Println("✅ Telegram notifications enabled")
	} else {
		log.Println("ℹ️  Telegram notifications disabled (missing token or operator id)")
	}

	// OpenAI assistant. Without a key the chat falls back to a canned reply.
	var completer llm.Completer
	if cfg.OpenAIAPIKey != "" {
		completer = llm.NewOpenAIClient(llm.Config{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.OpenAIModel,
			Temperature: float32(cfg.OpenAITemperature),
			MaxTokens:   cfg.OpenAIMaxTokens,
		}, nil)
		log.Printf("✅ OpenAI client initialized (model: %s)", cfg.OpenAIModel)
	} else {
		log.Println("ℹ️  OpenAI disabled (no API key configured)")
	}

	// Attachment storage
	uploader, err := storage.New(storage.Config{
		AWSAccessKeyID:     cfg.AWSAccessKeyID,
		AWSSecretAccessKey: cfg.AWSSecretAccessKey,
		AWSRegion:          cfg.AWSRegion,
		S3Bucket:           cfg.S3Bucket,
		LocalPath:          cfg.StorageLocalPath,
	})
	if err != nil {
		log.Fatalf("❌ Failed to initialize attachment storage: %v", err)
	}

	// Domain services
	analyticsService := analytics.NewService(st)
	intakeService := intake.NewService(st, claimer, completer, telegramService, uploader,
		analyticsService, prometheusMetrics, intake.Config{
			BusinessName:  cfg.BusinessName,
			ServiceArea:   cfg.ServiceArea,
			BusinessPhone: cfg.BusinessPhone,
		})
	followupService := followup.NewService(st, telegramService, prometheusMetrics)
	exportService := export.NewService(st)
	emailService := email.NewService(cfg.SendGridAPIKey, cfg.EmailFrom, cfg.OperatorEmail, cfg.BusinessName)

	// Scheduled jobs
	cronManager := jobs.NewCronManager(followupService, analyticsService, emailService, st)
	if err := cronManager.SetupJobs(); err != nil {
		log.Fatalf("❌ Failed to setup cron jobs: %v", err)
	}
	cronManager.Start()

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

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
			Repanic: true,
		}))
	}

	e.Use(prometheusMetrics.Middleware())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
		},
		AllowCredentials: true,
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
		},
	}))

	e.Use(middleware.Gzip())
	e.Use(middleware.Secure())

	// Global per-IP rate limiting (default 60 req/min)
	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	e.Use(globalRateLimiter.RateLimitMiddleware())

	// Handlers
	chatHandler := handlers.NewChatHandler(intakeService)
	leadsHandler := handlers.NewLeadsHandler(intakeService)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService)
	cronHandler := handlers.NewCronHandler(followupService, analyticsService)
	telegramHandler := handlers.NewTelegramHandler(telegramService, cfg.TelegramWebhookSecret)
	adminHandler := handlers.NewAdminHandler(st, analyticsService, exportService)

	// Service info
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"service": cfg.BusinessName + " API",
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Health check
	e.GET("/health", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"reason": "database unreachable",
			})
		}

		if redisClient != nil {
			if err := redisClient.Redis.Ping(ctx).Err(); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"reason": "redis unreachable",
				})
			}
		}

		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	// Prometheus metrics endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")

	// Public intake endpoints with per-endpoint sliding windows
	api.POST("/chat", chatHandler.Chat,
		custommiddleware.SlidingWindowMiddleware(windowLimiter, "chat", cfg.ChatRateLimitPerMinute, time.Minute))
	api.POST("/leads", leadsHandler.Submit,
		custommiddleware.SlidingWindowMiddleware(windowLimiter, "form", cfg.FormRateLimitPerHour, time.Hour))

	// Public tracking endpoints
	api.POST("/analytics/track-visit", analyticsHandler.TrackVisit)
	api.POST("/analytics/track-interaction", analyticsHandler.TrackInteraction)

	// External scheduler endpoints
	cronGroup := api.Group("/cron", custommiddleware.CronAuth(cfg.CronSecret, cfg.IsProduction()))
	{
		cronGroup.GET("/follow-ups", cronHandler.FollowUps)
		cronGroup.GET("/calculate-stats", cronHandler.CalculateStats)
	}

	// Telegram webhook
	api.POST("/telegram/webhook", telegramHandler.Webhook)

	// Operator dashboard endpoints
	adminGroup := api.Group("/admin", custommiddleware.AdminAuth(cfg.AdminJWTSecret))
	{
		adminGroup.GET("/stats", adminHandler.Stats)
		adminGroup.GET("/leads/export", adminHandler.ExportLeads)
		adminGroup.PATCH("/leads/:id/status", adminHandler.UpdateLeadStatus)
	}

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 %s API starting on %s", cfg.BusinessName, address)
	log.Printf("🛡️  Rate limiting: %d req/min global, chat %d/min, form %d/hour",
		cfg.RateLimitRequestsPerMinute, cfg.ChatRateLimitPerMinute, cfg.FormRateLimitPerHour)
	log.Printf("⏰ Cron jobs: follow-ups every 15m, daily stats 01:00")

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

	cronManager.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}
