package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	appintegration "github.com/souq/backend/internal/application/integration"
	apptracking "github.com/souq/backend/internal/application/tracking"
	"github.com/souq/backend/internal/domain/tracking"
	"github.com/souq/backend/internal/infrastructure/auth"
	"github.com/souq/backend/internal/infrastructure/cache"
	"github.com/souq/backend/internal/infrastructure/config"
	"github.com/souq/backend/internal/infrastructure/ecommerce"
	"github.com/souq/backend/internal/infrastructure/event"
	"github.com/souq/backend/internal/infrastructure/logger"
	"github.com/souq/backend/internal/infrastructure/persistence"
	"github.com/souq/backend/internal/infrastructure/scheduler"
	"github.com/souq/backend/internal/infrastructure/telemetry"
	"github.com/souq/backend/internal/interfaces/http/handler"
	"github.com/souq/backend/internal/interfaces/http/middleware"
	"github.com/souq/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

//	@title			Souq Marketplace API
//	@version		1.0
//	@description	Marketplace backend: store sync for Salla and Zid, webhook ingestion, click attribution and trending.

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		TimeFormat:  "2006-01-02T15:04:05.000Z07:00",
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Env,
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	tel, err := setupTelemetry(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer tel.shutdown(context.Background())

	// Tee local output with the OTLP log bridge when log export is on
	if tel.logs.IsEnabled() {
		baseCore, err := logger.NewCore(logCfg)
		if err != nil {
			log.Fatal("Failed to build log core", zap.Error(err))
		}
		log = telemetry.NewBridgedLogger(baseCore, telemetry.NewZapOTELCore(tel.logs, logger.ParseLevel(cfg.Log.Level)),
			zap.AddCaller(), zap.Fields(zap.String("service", cfg.App.Name), zap.String("env", cfg.App.Env)))
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Souq Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithParameterizedQueries(cfg.App.IsProduction()),
	)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL && !cfg.App.IsProduction(),
		SlowQueryThresh: telemetry.DefaultDBTracingConfig().SlowQueryThresh,
		DBSystem:        telemetry.DefaultDBTracingConfig().DBSystem,
	}, log); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Repositories
	merchantRepo := persistence.NewGormMerchantRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)
	categoryRepo := persistence.NewGormCategoryRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	clickRepo := persistence.NewGormClickRepository(db.DB)
	trendingLogRepo := persistence.NewGormTrendingLogRepository(db.DB)
	webhookEventRepo := persistence.NewGormWebhookEventRepository(db.DB)

	// Platforms
	registry, refresher, err := ecommerce.BuildRegistry(cfg, log)
	if err != nil {
		log.Fatal("Failed to configure e-commerce platforms", zap.Error(err))
	}
	log.Info("E-commerce platforms configured", zap.Any("platforms", registry.Codes()))

	// Event bus and notification handlers
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(appintegration.NewStockNotificationHandler(appintegration.NewLoggingStockNotifier(log), log))

	if cfg.Notifications.KafkaEnabled {
		serializer := event.NewEventSerializer()
		event.RegisterAllEvents(serializer)
		kafkaPublisher, err := event.NewKafkaPublisher(&cfg.Notifications, serializer, log.Named("kafka"))
		if err != nil {
			log.Fatal("Failed to create Kafka publisher", zap.Error(err))
		}
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				log.Error("Error closing Kafka publisher", zap.Error(err))
			}
		}()
		eventBus.Subscribe(kafkaPublisher)
		log.Info("Kafka notifications enabled",
			zap.Strings("brokers", cfg.Notifications.KafkaBrokers),
			zap.String("topic", cfg.Notifications.KafkaTopic),
			zap.Strings("event_types", kafkaPublisher.EventTypes()),
		)
	}

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Rate limit store shared by the event filter and the HTTP limiter
	limiter, err := cache.NewRateLimiterFactory(cfg.Redis, cache.WithLogger(log)).CreateLimiter()
	if err != nil {
		log.Fatal("Failed to create rate limiter", zap.Error(err))
	}
	defer func() {
		_ = limiter.Close()
	}()

	weights := tracking.Weights{
		View:  cfg.Trending.ViewWeight,
		Save:  cfg.Trending.SaveWeight,
		Click: cfg.Trending.ClickWeight,
		Order: cfg.Trending.OrderWeight,
	}

	// Integration services
	credentials := appintegration.NewCredentialManager(merchantRepo, refresher, cfg.Sync.TokenRefreshSkew, log.Named("credentials"))
	catalogReconciler := appintegration.NewCatalogReconciler(productRepo, categoryRepo, eventBus, appintegration.CatalogReconcilerConfig{
		MaxPages:        cfg.Sync.MaxPages,
		MaxSlugAttempts: cfg.Sync.MaxSlugAttempts,
	}, log.Named("catalog"))
	orderRecorder := appintegration.NewOrderRecorder(productRepo, orderRepo, trendingLogRepo, weights, log.Named("orders"))
	orderReconciler := appintegration.NewOrderReconciler(orderRecorder, cfg.Sync.OrderWorkers, cfg.Sync.MaxPages, log.Named("orders"))
	syncService := appintegration.NewSyncService(merchantRepo, registry, credentials, catalogReconciler, orderReconciler,
		appintegration.SyncServiceConfig{
			Cooldown:          cfg.Sync.Cooldown,
			SyncOrdersDefault: cfg.Sync.SyncOrdersDefault,
		}, tel.marketplace, log.Named("sync"))
	webhookService := appintegration.NewWebhookService(registry, webhookEventRepo, merchantRepo, orderRecorder, catalogReconciler, eventBus,
		appintegration.WebhookServiceConfig{
			AllowUnsigned: cfg.Webhook.AllowUnsigned,
			Production:    cfg.App.IsProduction(),
		}, tel.marketplace, log.Named("webhook"))

	// Tracking services
	eventFilter, err := apptracking.NewEventFilter(apptracking.EventFilterConfig{
		BaseURL:              cfg.App.BaseURL,
		AllowedReferrerPaths: cfg.Tracking.AllowedReferrerPaths,
		BotUserAgents:        cfg.Tracking.BotUserAgents,
		PerIPLimit:           cfg.Tracking.PerIPLimit,
		PerIPProductLimit:    cfg.Tracking.PerIPProductLimit,
		Window:               cfg.Tracking.RateLimitWindow,
	}, limiter, log.Named("event_filter"))
	if err != nil {
		log.Fatal("Failed to configure event filter", zap.Error(err))
	}
	ipHasher, err := apptracking.NewIPHasher(cfg.Tracking.IPHashKey)
	if err != nil {
		log.Fatal("Failed to configure IP hasher", zap.Error(err))
	}
	clickService := apptracking.NewClickService(productRepo, merchantRepo, clickRepo, trendingLogRepo, eventFilter, ipHasher, weights,
		apptracking.ClickServiceConfig{
			ClickTTL:           cfg.Tracking.ClickTTL,
			UTMSource:          cfg.Tracking.UTMSource,
			UTMMedium:          cfg.Tracking.UTMMedium,
			UTMCampaign:        cfg.Tracking.UTMCampaign,
			StoreURLPathFormat: cfg.Sync.StoreURLPathFormat,
		}, tel.marketplace, log.Named("tracking"))
	trendingService := apptracking.NewTrendingService(trendingLogRepo, productRepo, apptracking.TrendingServiceConfig{
		Window:   cfg.Trending.Window,
		HalfLife: cfg.Trending.HalfLife,
		Weights:  weights,
	}, log.Named("trending"))

	stopJobs, err := startBackgroundJobs(ctx, cfg.Scheduler, syncService, merchantRepo, trendingService, log.Named("scheduler"))
	if err != nil {
		log.Fatal("Failed to start background jobs", zap.Error(err))
	}

	// HTTP
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware order:
	// 1. RequestID - generate or propagate the request ID
	// 2. Tracing - server span, then request attributes and error status
	// 3. Recovery and request logging
	// 4. Metrics and profiling labels
	// 5. Security headers, CORS, body size limit
	engine.Use(middleware.RequestID())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.TracingAttributeInjector())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: tel.meters,
		Enabled:       cfg.Telemetry.MetricsEnabled,
	}))
	engine.Use(middleware.ProfilingWithConfig(middleware.ProfilingConfig{
		Enabled:   cfg.Telemetry.ProfilingEnabled,
		SkipPaths: middleware.DefaultProfilingConfig().SkipPaths,
	}))
	engine.Use(middleware.SecureWithConfig(middleware.SecurityConfig{
		HSTSEnabled: cfg.App.IsProduction(),
		HSTSMaxAge:  31536000,
	}))

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	guards := router.Guards{
		Authenticate: middleware.JWTAuthMiddleware(auth.NewJWTService(cfg.JWT), log),
	}
	if cfg.HTTP.RateLimitEnabled {
		guards.TrackingLimit = middleware.RateLimit(middleware.RateLimitConfig{
			Limiter: limiter,
			Limit:   cfg.HTTP.RateLimitRequests,
			Window:  cfg.HTTP.RateLimitWindow,
			Scope:   "tracking",
			Logger:  log,
		})
		guards.WebhookLimit = middleware.RateLimit(middleware.RateLimitConfig{
			Limiter: limiter,
			Limit:   cfg.HTTP.RateLimitRequests,
			Window:  cfg.HTTP.RateLimitWindow,
			Scope:   "webhook",
			Logger:  log,
		})
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	router.SetupRoutes(engine, router.Handlers{
		Sync:     handler.NewSyncHandler(syncService),
		Webhook:  handler.NewWebhookHandler(webhookService, cfg.Webhook.MaxBodySize),
		Tracking: handler.NewTrackingHandler(clickService),
		Trending: handler.NewTrendingHandler(trendingService),
		Health:   handler.NewHealthHandler(db),
	}, guards, router.WithAPIVersion("v1"))

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopJobs(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}

// startBackgroundJobs starts the scheduled sync pool with its auto sync trigger
// and the periodic trending recompute. The returned func stops them.
func startBackgroundJobs(
	ctx context.Context,
	cfg config.SchedulerConfig,
	syncs scheduler.SyncRunner,
	merchants scheduler.MerchantLister,
	trending scheduler.TrendingRecomputer,
	log *zap.Logger,
) (func(context.Context), error) {
	if !cfg.Enabled {
		log.Info("Background jobs disabled")
		return func(context.Context) {}, nil
	}

	pool, err := scheduler.NewScheduler(scheduler.Config{
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		JobTimeout:        cfg.JobTimeout,
		QueueSize:         cfg.QueueSize,
		HistorySize:       scheduler.DefaultConfig().HistorySize,
	}, syncs, log)
	if err != nil {
		return nil, err
	}
	if err := pool.Start(ctx); err != nil {
		return nil, err
	}

	triggers := []*scheduler.IntervalTrigger{
		scheduler.NewIntervalTrigger("auto_sync", cfg.AutoSyncInterval, scheduler.AutoSyncTask(merchants, pool, log), log),
	}
	if cfg.TrendingInterval > 0 {
		triggers = append(triggers,
			scheduler.NewIntervalTrigger("trending", cfg.TrendingInterval, scheduler.TrendingTask(trending, log), log))
	}
	for _, t := range triggers {
		if err := t.Start(ctx); err != nil {
			return nil, err
		}
	}

	return func(stopCtx context.Context) {
		for _, t := range triggers {
			if err := t.Stop(stopCtx); err != nil {
				log.Error("Error stopping trigger", zap.Error(err))
			}
		}
		if err := pool.Stop(stopCtx); err != nil {
			log.Error("Error stopping sync scheduler", zap.Error(err))
		}
	}, nil
}

// telemetryStack holds the OpenTelemetry providers and the profiler
type telemetryStack struct {
	tracer      *telemetry.TracerProvider
	meters      *telemetry.MeterProvider
	logs        *telemetry.LoggerProvider
	profiler    *telemetry.Profiler
	marketplace *telemetry.MarketplaceMetrics
	log         *zap.Logger
}

func setupTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*telemetryStack, error) {
	t := cfg.Telemetry
	env := cfg.App.Env

	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           t.Enabled,
		CollectorEndpoint: t.CollectorEndpoint,
		SamplingRatio:     t.SamplingRatio,
		ServiceName:       t.ServiceName,
		Environment:       env,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}

	meters, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           t.MetricsEnabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ExportInterval:    t.MetricsInterval,
		ServiceName:       t.ServiceName,
		Environment:       env,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}

	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           t.LogsEnabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ServiceName:       t.ServiceName,
		Environment:       env,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         t.ProfilingEnabled,
		ServerAddress:   t.ProfilingServer,
		ApplicationName: t.ServiceName,
		Environment:     env,
	}, log)
	if err != nil {
		return nil, err
	}
	if profiler.IsEnabled() && tracer.IsEnabled() {
		tracer.EnableSpanProfiles()
	}

	marketplace, err := telemetry.NewMarketplaceMetrics(meters.Meter("souq.marketplace"))
	if err != nil {
		return nil, err
	}

	return &telemetryStack{
		tracer:      tracer,
		meters:      meters,
		logs:        logs,
		profiler:    profiler,
		marketplace: marketplace,
		log:         log,
	}, nil
}

func (s *telemetryStack) shutdown(ctx context.Context) {
	if err := s.tracer.Shutdown(ctx); err != nil {
		s.log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := s.meters.Shutdown(ctx); err != nil {
		s.log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := s.logs.Shutdown(ctx); err != nil {
		s.log.Error("Error shutting down logger provider", zap.Error(err))
	}
	if err := s.profiler.Stop(); err != nil {
		s.log.Error("Error stopping profiler", zap.Error(err))
	}
}
