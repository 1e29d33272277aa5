package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/careloop/patient-portal/internal/api"
	"github.com/careloop/patient-portal/internal/clock"
	"github.com/careloop/patient-portal/internal/config"
	"github.com/careloop/patient-portal/internal/db"
	"github.com/careloop/patient-portal/internal/instantconsult"
	"github.com/careloop/patient-portal/internal/logger"
	redisclient "github.com/careloop/patient-portal/internal/redis"
	"github.com/careloop/patient-portal/internal/schedule"
	"github.com/careloop/patient-portal/internal/video"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("api-server", "dev")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New("api-server", cfg.Env)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	var provisioner video.Provisioner = video.Noop{}
	if cfg.VideoAPIURL != "" {
		provisioner = video.NewClient(cfg.VideoAPIURL, cfg.VideoAPIKey, log)
	}

	locker := redisclient.NewRedisBookingLocker(rdb, cfg.LockTTL)

	scheduleSvc := schedule.NewService(schedule.NewPgRepository(pgPool), locker, log)
	instantSvc := instantconsult.NewService(
		instantconsult.NewPgRepository(pgPool),
		provisioner,
		clock.Real{},
		cfg.InstantConsultTTL,
		log,
	)

	handler := api.NewRouter(api.RouterConfig{
		Schedule: scheduleSvc,
		Instant:  instantSvc,
		PgPool:   pgPool,
		Redis:    rdb,
		Log:      log,
		Env:      cfg.Env,
		Version:  version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("listening")
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	case <-rootCtx.Done():
		log.Info().Msg("shutting down api-server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}
