package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jobtrack/jobtrack/pkg/allocation"
	"github.com/jobtrack/jobtrack/pkg/apiserver"
	"github.com/jobtrack/jobtrack/pkg/config"
	"github.com/jobtrack/jobtrack/pkg/eventbus"
	redisclient "github.com/jobtrack/jobtrack/pkg/store/redis"
	"github.com/jobtrack/jobtrack/pkg/store/sqlstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := cfg.Logging.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := sqlstore.NewStore(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	opts := []allocation.Option{allocation.WithLocation(cfg.Server.TimeLocation())}

	var bus *eventbus.Bus
	if cfg.Redis.Enabled() {
		redis, err := redisclient.NewClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redis.Close()

		bus = eventbus.NewBus(redis.Client())
		opts = append(opts, allocation.WithLocker(redis), allocation.WithNotifier(bus))
	} else {
		logger.Warn("Redis is not configured, job order locks and live updates are disabled")
	}

	service := allocation.NewService(db, logger, opts...)
	server := apiserver.NewServer(service, db, bus, cfg, logger)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	if cfg.Server.DriftInterval > 0 {
		go service.WatchDrift(workerCtx, cfg.Server.DriftInterval)
	}

	// No write timeout: the events endpoint holds responses open.
	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:     server.Router(),
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	go func() {
		logger.Info("Starting API server", zap.Int("port", cfg.Server.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
}
