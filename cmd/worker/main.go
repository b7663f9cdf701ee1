// Package main runs the referral sweep outside the API server.
//
// The identity locker is per process, so this binary must not run a schedule
// while an API server with its own in-process sweep is writing profiles.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/reputation-engine/internal/app"
	"github.com/reputation-engine/internal/config"
	"github.com/reputation-engine/internal/logging"
	"github.com/reputation-engine/internal/worker"
)

func main() {
	once := flag.Bool("once", false, "Run a single referral sweep and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger().WithField("service", "worker")
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize dependencies")
	}
	defer deps.Close()

	schedule := cfg.Referral.SweepSchedule
	if schedule == "" {
		schedule = "@every 1h"
	}
	w, err := worker.NewReferralWorker(&worker.ReferralWorkerConfig{
		Sweeper:    deps.Sweeper,
		Schedule:   schedule,
		RunOnStart: true,
		Logger:     logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Invalid referral sweep schedule")
	}

	if *once {
		result, err := w.RunOnce(ctx)
		if err != nil {
			logger.WithError(err).Error("Referral sweep failed")
			return
		}
		logger.WithFields(map[string]interface{}{
			"referrers":         result.Referrers,
			"updated":           result.UpdatedCount,
			"total_distributed": result.TotalDistributed,
		}).Info("Referral sweep finished")
		return
	}

	if err := w.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start referral worker")
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		logger.WithError(err).Warn("Referral worker did not stop cleanly")
	}
	logger.Info("Worker exited")
}
