package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/carepoint/booking-service/internal/api"
	"github.com/carepoint/booking-service/internal/booking"
	"github.com/carepoint/booking-service/internal/config"
	"github.com/carepoint/booking-service/internal/db"
	"github.com/carepoint/booking-service/internal/logger"
	redisclient "github.com/carepoint/booking-service/internal/redis"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("practice_tz", cfg.PracticeTimeZone),
		zap.Duration("hold_ttl", cfg.HoldTTL))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		zlog.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	zlog.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		zlog.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			zlog.Warn("error closing redis", zap.Error(err))
		}
	}()
	zlog.Info("connected to Redis")

	loc := cfg.Location()
	repo := booking.NewPgRepository(pgPool, loc)
	blockedCache := redisclient.NewBlockedDateCache(rdb, booking.NewRepositoryBlockages(repo), cfg.BlockedCacheTTL, zlog)
	svc := booking.NewService(repo, blockedCache, zlog, loc, cfg.HoldTTL)

	router := api.NewRouter(api.RouterConfig{
		Service:        svc,
		Cache:          blockedCache,
		PgPool:         pgPool,
		Redis:          rdb,
		Logger:         zlog,
		Location:       loc,
		Env:            cfg.Env,
		Version:        version,
		CORSOrigin:     cfg.CORSOrigin,
		WriteRateLimit: cfg.WriteRateLimit,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zlog.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		zlog.Fatal("http server error", zap.Error(err))
	case <-rootCtx.Done():
		zlog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("graceful shutdown failed", zap.Error(err))
	}
	zlog.Info("api-server stopped")
}
