// Package main provides a CLI tool for running database migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/reputation-engine/internal/config"
	"github.com/reputation-engine/internal/logging"
	"github.com/reputation-engine/internal/storage"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version")
		dbType = flag.String("db", "postgres", "Database type: postgres, clickhouse")
		dir    = flag.String("dir", "migrations", "Root directory holding postgres/ and clickhouse/ migrations")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger().WithFields(map[string]interface{}{
		"db":     *dbType,
		"action": *action,
	})

	switch *dbType {
	case "postgres":
		err = runPostgresMigrations(cfg, *dir+"/postgres", *action, logger)
	case "clickhouse":
		err = runClickHouseMigrations(cfg, *dir+"/clickhouse", *action, logger)
	default:
		err = fmt.Errorf("unknown database type: %s", *dbType)
	}
	if err != nil {
		logger.WithError(err).Fatal("Migration failed")
	}
}

func runPostgresMigrations(cfg *config.Config, path, action string, logger *logging.Logger) error {
	m := storage.NewMigrator(cfg.Database.Postgres.URL(), path)

	switch action {
	case "up":
		if err := m.Up(); err != nil {
			return err
		}
		logger.Info("Postgres migrations completed")
	case "down":
		if err := m.Down(); err != nil {
			return err
		}
		logger.Info("Postgres migration rolled back")
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		logger.WithFields(map[string]interface{}{
			"version": version,
			"dirty":   dirty,
		}).Info("Current Postgres migration version")
	default:
		return fmt.Errorf("unknown action: %s", action)
	}
	return nil
}

func runClickHouseMigrations(cfg *config.Config, path, action string, logger *logging.Logger) error {
	if action != "up" {
		return fmt.Errorf("clickhouse migrations only support up, got %s", action)
	}

	db, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx := logging.WithLogger(context.Background(), logger)
	applied, err := storage.RunClickHouseMigrations(ctx, db, path)
	if err != nil {
		return err
	}
	logger.WithField("files", applied).Info("ClickHouse migrations completed")
	return nil
}
