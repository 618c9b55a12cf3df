package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"golang.org/x/time/rate"

	"shopfloor-ops-backend/config"
	"shopfloor-ops-backend/internal/api"
	"shopfloor-ops-backend/internal/auth"
	"shopfloor-ops-backend/internal/db"
	"shopfloor-ops-backend/internal/duewatch"
	"shopfloor-ops-backend/internal/lifecycle"
	"shopfloor-ops-backend/internal/logging"
	"shopfloor-ops-backend/internal/machines"
	"shopfloor-ops-backend/internal/maintenance"
	"shopfloor-ops-backend/internal/notification"
	"shopfloor-ops-backend/internal/store"
	"shopfloor-ops-backend/internal/users"
)

const (
	serviceName    = "opsd"
	serviceVersion = "0.1.0"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx, logger := logging.NewLogger(ctx, serviceName, serviceVersion, cfg.Log.Level, cfg.Log.Pretty)
	logger.Info().Str("path", configPath).Msg("configuration loaded")

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to access database handle")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database initialized")

	appStore := store.NewGormStore(gormDB)

	var webpushOptions *webpush.Options
	var channels []notification.Channel
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		channels = append(channels, notification.NewPushChannel(appStore, webpushOptions))
	} else {
		logger.Warn().Msg("vapid keys are not configured, web push is disabled")
	}
	if cfg.Slack.Enabled() {
		channels = append(channels, notification.NewSlackChannel(cfg.Slack.Token, cfg.Slack.Channel))
	}
	if cfg.Email.Enabled() {
		channels = append(channels, notification.NewEmailChannel(cfg.Email))
	}

	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, channels...)
	workerPool.Start(ctx)
	logger.Info().Int("workers", cfg.WorkerPool.Size).Int("channels", len(channels)).Msg("notification workers started")

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token issuer")
	}

	machineSvc := machines.NewService(appStore, nil)
	handler := api.NewHandler(appStore, api.Services{
		Alerts: lifecycle.New(appStore, lifecycle.Options{
			Strict:     cfg.Alerts.Strict(),
			Dispatcher: workerPool,
		}),
		Machines:    machineSvc,
		Users:       users.NewService(appStore, issuer),
		Maintenance: maintenance.NewService(appStore, nil),
	}, webpushOptions)

	go duewatch.New(cfg.DueWatch, machineSvc, workerPool).Run(ctx)

	router := api.NewRouter(handler, api.RouterOptions{
		Logger:    logger,
		Issuer:    issuer,
		RateLimit: rate.Limit(cfg.Server.RateLimitPerSec),
		Burst:     cfg.Server.RateLimitBurst,
		IPHeader:  cfg.Server.RequestIPHeader,
		CacheTTL:  cfg.Server.CacheTTL(),
		Ping:      sqlDB.PingContext,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info().Msg("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}
	cancel()
	if err := sqlDB.Close(); err != nil {
		logger.Error().Err(err).Msg("closing database")
	}

	logger.Info().Msg("server gracefully stopped")
}
