package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/carepoint/booking-service/internal/booking"
	"github.com/carepoint/booking-service/internal/config"
	"github.com/carepoint/booking-service/internal/db"
	"github.com/carepoint/booking-service/internal/logger"
	redisclient "github.com/carepoint/booking-service/internal/redis"
)

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

	zlog.Info("expiry-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval))

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

	// Run once at startup
	runOnce(rootCtx, svc, zlog)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			zlog.Info("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, zlog)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.Service, zlog *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	released, err := svc.SweepExpiredHolds(runCtx)
	if err != nil {
		zlog.Error("sweep run error", zap.Error(err))
		return
	}
	zlog.Info("sweep run complete",
		zap.Int64("released", released),
		zap.Duration("took", time.Since(start)))
}
