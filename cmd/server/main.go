package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/alwalid54321/su-st-sub001/internal/config"
	"github.com/alwalid54321/su-st-sub001/internal/db"
	httpHandlers "github.com/alwalid54321/su-st-sub001/internal/http/handlers"
	httpRouter "github.com/alwalid54321/su-st-sub001/internal/http/router"
	"github.com/alwalid54321/su-st-sub001/internal/logger"
	"github.com/alwalid54321/su-st-sub001/internal/mailer"
	"github.com/alwalid54321/su-st-sub001/internal/metrics"
	"github.com/alwalid54321/su-st-sub001/internal/notifier"
	"github.com/alwalid54321/su-st-sub001/internal/ratelimit"
	"github.com/alwalid54321/su-st-sub001/internal/repository"
	"github.com/alwalid54321/su-st-sub001/internal/service"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: failed to load config: %v", err)
	}

	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.WithError(err).Fatal("main: failed to connect to database")
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, os.DirFS(cfg.MigrationsPath)); err != nil {
		logger.Log.WithError(err).Fatal("main: migrations failed")
	}

	// Метрики.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		logger.Log.WithError(err).Fatal("main: failed to register metrics")
	}

	checks := map[string]httpHandlers.Pinger{"database": dbConn}

	// Хранилище счётчиков попыток.
	var store ratelimit.Store
	switch cfg.AttemptStore {
	case config.AttemptStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() {
			if err := client.Close(); err != nil {
				logger.Log.WithError(err).Warn("main: failed to close redis client")
			}
		}()
		redisStore := ratelimit.NewRedisStore(client, "sudastock:attempts")
		if err := redisStore.PingContext(ctx); err != nil {
			logger.Log.WithError(err).Fatal("main: redis is unreachable")
		}
		checks["redis"] = redisStore
		store = redisStore
	default:
		store = ratelimit.NewMemoryStore()
	}

	tracker := ratelimit.NewTracker(store, ratelimit.WithObserver(m))

	sweeper := ratelimit.NewSweeper(store, cfg.AttemptSweepInterval, cfg.Policies.Longest(), m)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// Доставка писем и push уведомлений.
	var mail service.Mailer = mailer.LogMailer{}
	if cfg.SMTP.Enabled() {
		mail = mailer.NewSMTPMailer(cfg.SMTP, cfg.OTPTTL)
	} else {
		logger.Log.Warn("main: SMTP_HOST is empty, emails are logged and not delivered")
	}
	push := notifier.NewWebPush(cfg.VAPID.PublicKey, cfg.VAPID.PrivateKey, cfg.VAPID.Subject)
	if !push.Enabled() {
		logger.Log.Warn("main: VAPID keys are not set, push notifications are skipped")
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	codeRepo := repository.NewVerificationRepository(dbConn)
	alertRepo := repository.NewAlertRepository(dbConn)
	pushRepo := repository.NewPushSubscriptionRepository(dbConn)

	// Сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.SessionTTL)
	hasher := service.NewPasswordHasher(cfg.BcryptCost)

	verificationService := service.NewVerificationService(userRepo, codeRepo, mail, tracker, cfg.Policies, tokenManager, hasher,
		service.WithCodeTTL(cfg.OTPTTL),
		service.WithCodeObserver(m),
	)
	authService := service.NewAuthService(userRepo, verificationService, tracker, cfg.Policies, tokenManager, hasher)
	adminService := service.NewAdminUserService(userRepo, tracker)
	alertService := service.NewAlertService(alertRepo, pushRepo, mail, push, m)

	// HTTP хэндлеры и роутер.
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Auth:         httpHandlers.NewAuthHandler(authService),
		Verification: httpHandlers.NewVerificationHandler(verificationService),
		Alerts:       httpHandlers.NewAlertHandler(alertService),
		Admin:        httpHandlers.NewAdminHandler(adminService),
		Health:       httpHandlers.NewHealthHandler(checks),
	}, tokenManager, m, registry)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("main: http server shutdown failed")
		}
	}()

	logger.Log.WithField("port", cfg.HTTPPort).Info("main: http server started")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Log.WithError(err).Fatal("main: http server failed")
	}
}

// safeClose закрывает соединение с базой.
func safeClose(conn *sqlx.DB) {
	if err := conn.Close(); err != nil {
		logger.Log.WithError(err).Warn("main: failed to close database")
	}
}
