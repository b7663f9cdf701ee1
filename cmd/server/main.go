// Package main provides the API server entry point for the reputation engine.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/reputation-engine/internal/api"
	"github.com/reputation-engine/internal/app"
	"github.com/reputation-engine/internal/config"
	"github.com/reputation-engine/internal/logging"
	"github.com/reputation-engine/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger().WithField("service", "server")
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize dependencies")
	}
	defer deps.Close()

	// The in-process sweep shares the identity locker with API writes
	var sweepWorker *worker.ReferralWorker
	if cfg.Referral.SweepSchedule != "" {
		sweepWorker, err = worker.NewReferralWorker(&worker.ReferralWorkerConfig{
			Sweeper:  deps.Sweeper,
			Schedule: cfg.Referral.SweepSchedule,
			Logger:   logger,
		})
		if err != nil {
			logger.WithError(err).Fatal("Invalid referral sweep schedule")
		}
		if err := sweepWorker.Start(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to start referral worker")
		}
	} else {
		logger.Info("Referral sweep schedule empty, in-process sweep disabled")
	}

	server := api.NewServer(&api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		AdminToken:        cfg.Server.AdminToken,
	}, deps.Aggregation, deps.ProfileSvc, deps.Sweeper, logger, deps.Breakers...)
	server.AddStore("postgres", deps.Postgres)
	server.AddStore("redis", deps.Redis)
	if deps.ClickHouse != nil {
		server.AddStore("clickhouse", deps.ClickHouse)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("Server failed")
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if sweepWorker != nil {
		if err := sweepWorker.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Referral worker did not stop cleanly")
		}
	}

	logger.Info("Server exited")
}
