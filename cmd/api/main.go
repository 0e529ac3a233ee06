// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/joho/godotenv"

	"github.com/auramanager/aura-api/internal/admin"
	"github.com/auramanager/aura-api/internal/analytics"
	"github.com/auramanager/aura-api/internal/assistant"
	"github.com/auramanager/aura-api/internal/auth"
	"github.com/auramanager/aura-api/internal/config"
	"github.com/auramanager/aura-api/internal/connection"
	"github.com/auramanager/aura-api/internal/core"
	"github.com/auramanager/aura-api/internal/health"
	"github.com/auramanager/aura-api/internal/jobs"
	"github.com/auramanager/aura-api/internal/metrics"
	"github.com/auramanager/aura-api/internal/middleware"
	"github.com/auramanager/aura-api/internal/notification"
	"github.com/auramanager/aura-api/internal/payment"
	"github.com/auramanager/aura-api/internal/paypal"
	"github.com/auramanager/aura-api/internal/plan"
	"github.com/auramanager/aura-api/internal/profile"
	"github.com/auramanager/aura-api/internal/server"
	"github.com/auramanager/aura-api/internal/storage"
	"github.com/auramanager/aura-api/internal/subscription"
	"github.com/auramanager/aura-api/internal/upload"
	"github.com/auramanager/aura-api/internal/user"
	"github.com/auramanager/aura-api/migrations"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read dotenv file", "path", *envPath, "error", err)
	}

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen,gocyclo // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		configPath = ""
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(migrations.Files, logger); err != nil {
			return err
		}
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	sealer, err := newSealer(cfg, logger)
	if err != nil {
		return err
	}

	store := storage.NewClient(cfg.Storage, logger)
	assistantClient := assistant.NewClient(cfg.Assistant, logger)
	if !assistantClient.Configured() {
		logger.Warn("assistant API key missing, chat and file analysis disabled")
	}

	var paypalClient payment.PayPalClient
	if cfg.PayPal.Enabled {
		paypalClient = paypal.NewClient(cfg.PayPal, logger)
		logger.Info("paypal checkout enabled", "base_url", cfg.PayPal.BaseURL)
	}

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo, logger)
	userHandler := user.NewHandler(userSvc)

	authRepo := auth.NewRepository(db.DB)
	authSvc := auth.NewService(
		authRepo,
		jwtManager,
		userSvc,
		auth.NewRedisBlacklist(redis.Client),
		logger,
	)
	authHandler := auth.NewHandler(authSvc)

	notificationRepo := notification.NewRepository(db.DB)
	notificationSvc := notification.NewService(notificationRepo, m, logger)
	notificationHandler := notification.NewHandler(notificationSvc)

	var (
		publisher *notification.AMQPPublisher
		consumer  *notification.Consumer
	)
	if cfg.AMQP.Enabled {
		publisher, err = notification.NewAMQPPublisher(cfg.AMQP, logger)
		if err != nil {
			logger.Warn("broker unavailable, storing notifications directly",
				"error", err,
			)
		} else {
			notificationSvc.UsePublisher(publisher)
			consumer = notification.NewConsumer(cfg.AMQP, notificationSvc, logger)
		}
	}

	profileRepo := profile.NewRepository(db.DB)
	profileSvc := profile.NewService(profileRepo, store, cfg.Storage.AvatarBucket, logger)
	profileHandler := profile.NewHandler(profileSvc)

	subscriptionRepo := subscription.NewRepository(db.DB)
	subscriptionSvc := subscription.NewService(
		subscriptionRepo,
		userSvc,
		notificationSvc,
		logger,
	)
	subscriptionHandler := subscription.NewHandler(subscriptionSvc)

	authSvc.OnRegister(profileSvc, subscriptionSvc)

	connectionRepo := connection.NewRepository(db.DB)
	connectionSvc := connection.NewService(cfg.OAuth, connection.Deps{
		Repo:     connectionRepo,
		Registry: connection.NewRegistry(cfg.OAuth, connection.DefaultProviders()),
		Signer:   jwtManager,
		States:   redis,
		Tiers:    userSvc,
		Profiles: profileSvc,
		Notifier: notificationSvc,
		Sealer:   sealer,
		Metrics:  m,
		Logger:   logger,
	})
	connectionHandler := connection.NewHandler(connectionSvc)

	subscriptionSvc.UseConnectionCounter(connectionSvc)

	paymentRepo := payment.NewRepository(db.DB)
	paymentSvc := payment.NewService(payment.Deps{
		Repo:          paymentRepo,
		PayPal:        paypalClient,
		Subscriptions: subscriptionSvc,
		Notifier:      notificationSvc,
		Metrics:       m,
		Logger:        logger,
	})
	paymentHandler := payment.NewHandler(paymentSvc)

	assistantRepo := assistant.NewRepository(db.DB)
	assistantSvc := assistant.NewService(
		assistantRepo,
		assistantClient,
		userSvc,
		redis,
		cfg.Assistant.History,
		m,
		logger,
	)
	assistantHandler := assistant.NewHandler(assistantSvc)

	userSvc.OnDelete(connectionSvc, assistantSvc)

	uploadRepo := upload.NewRepository(db.DB)
	uploadSvc := upload.NewService(
		uploadRepo,
		store,
		cfg.Storage.UploadsBucket,
		assistantSvc,
		notificationSvc,
		logger,
	)
	uploadHandler := upload.NewHandler(uploadSvc)

	analyticsRepo := analytics.NewRepository(db.DB)
	analyticsSvc := analytics.NewService(analyticsRepo, connectionSvc, redis, logger)
	analyticsHandler := analytics.NewHandler(analyticsSvc)

	planHandler := plan.NewHandler()

	scheduler := jobs.NewScheduler(m, logger)
	for _, job := range jobs.Catalog(cfg.Jobs, jobs.Targets{
		Subscriptions: subscriptionSvc,
		Tokens:        authSvc,
		Uploads:       uploadSvc,
		Payments:      paymentSvc,
	}) {
		if !cfg.Jobs.Enabled {
			job.Schedule = ""
		}
		if err := scheduler.Add(job); err != nil {
			return err
		}
	}

	healthHandler := health.NewHandler(
		health.Check{Name: "database", Checker: db},
		health.Check{Name: "redis", Checker: redis},
	)
	if publisher != nil {
		healthHandler.Add(health.Check{
			Name:     "broker",
			Checker:  publisher,
			Optional: true,
		})
	}

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:       db.Stats,
		RedisStats:    redis.PoolStats,
		DBPing:        db.Ping,
		RedisPing:     redis.Ping,
		Subscriptions: subscriptionSvc,
		Revenue:       paymentSvc,
		Jobs:          scheduler,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Tracing)
	router.Use(middleware.Logger(logger))
	if m != nil {
		router.Use(middleware.Metrics(m))
	}
	limiter := middleware.NewLimiter(redis.Client)
	router.Use(limiter.PerIP(redis_rate.Limit{
		Rate:   cfg.RateLimit.Requests,
		Burst:  cfg.RateLimit.Burst,
		Period: cfg.RateLimit.Window,
	}))
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())
	if m != nil {
		router.Handle(cfg.Metrics.Path, m.Handler())
	}

	authenticator := authenticated(
		middleware.Authenticator(authSvc),
		limiter.PerTier(middleware.TierLimits),
	)
	adminOnly := middleware.RequireAdmin

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)

		r.Post("/users", authHandler.Register)

		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)

		planHandler.RegisterRoutes(r)
		profileHandler.RegisterRoutes(r, authenticator)
		connectionHandler.RegisterRoutes(r, authenticator)
		subscriptionHandler.RegisterRoutes(r, authenticator)
		paymentHandler.RegisterRoutes(r, authenticator)
		notificationHandler.RegisterRoutes(r, authenticator)
		uploadHandler.RegisterRoutes(r, authenticator)
		assistantHandler.RegisterRoutes(r, authenticator)
		analyticsHandler.RegisterRoutes(r, authenticator)
	})

	router.Route("/api", func(r chi.Router) {
		paymentHandler.RegisterAliases(r, authenticator)
	})

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	consumerDone := make(chan struct{})
	if consumer != nil {
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(workerCtx); err != nil {
				logger.Error("notification consumer stopped", "error", err)
			}
		}()
	} else {
		close(consumerDone)
	}

	scheduler.Start()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown error", "error", err)
	}

	if err := uploadSvc.Wait(shutdownCtx); err != nil {
		logger.Error("upload analysis still running at shutdown", "error", err)
	}

	stopWorkers()
	<-consumerDone

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("broker close error", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

// authenticated verifies the bearer token before applying the per-tier
// limiter, which keys on the authenticated user.
func authenticated(
	verify, limit func(http.Handler) http.Handler,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return verify(limit(next))
	}
}

// newSealer builds the OAuth token sealer. Development falls back to a
// process-local key, so sealed tokens do not survive a restart.
func newSealer(cfg *config.Config, logger *slog.Logger) (*core.Sealer, error) {
	if cfg.OAuth.EncryptionKey != "" {
		key, err := cfg.OAuth.DecodedKey()
		if err != nil {
			return nil, err
		}
		return core.NewSealer(key)
	}

	if cfg.IsProduction() {
		return nil, fmt.Errorf("OAUTH_ENCRYPTION_KEY is required in production")
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate sealing key: %w", err)
	}
	logger.Warn("OAUTH_ENCRYPTION_KEY not set, using an ephemeral key")
	return core.NewSealer(key)
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
