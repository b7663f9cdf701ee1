// Package app wires configuration, storage, providers and services
// into the runtime shared by the server and worker binaries.
package app

import (
	"context"
	"fmt"

	"github.com/reputation-engine/internal/adapter"
	"github.com/reputation-engine/internal/circuitbreaker"
	"github.com/reputation-engine/internal/config"
	"github.com/reputation-engine/internal/logging"
	"github.com/reputation-engine/internal/ratelimit"
	"github.com/reputation-engine/internal/retry"
	"github.com/reputation-engine/internal/service"
	"github.com/reputation-engine/internal/storage"
)

// App holds every long-lived dependency. Close releases them in reverse order.
type App struct {
	Config *config.Config
	Logger *logging.Logger

	Postgres   *storage.PostgresDB
	Redis      *storage.RedisCache
	ClickHouse *storage.ClickHouseDB

	Profiles    *storage.ProfileRepository
	StatsCache  *storage.StatsCacheRepository
	Ledger      service.PointsLedger
	Aggregation *service.AggregationService
	ProfileSvc  *service.ProfileService
	Sweeper     *service.ReferralSweeper
	Breakers    []*circuitbreaker.CircuitBreaker

	closers []func()
}

// New connects to every backing store with retry and builds the services.
// ClickHouse is only dialed when enabled in config.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	ctx = logging.WithLogger(ctx, logger)

	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.buildServices()
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config

	err := connectWithRetry(ctx, "postgres", func() error {
		db, err := storage.NewPostgresDB(&cfg.Database.Postgres)
		if err != nil {
			return err
		}
		a.Postgres = db
		return nil
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.Postgres.Close)

	err = connectWithRetry(ctx, "redis", func() error {
		cache, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			return err
		}
		a.Redis = cache
		return nil
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { _ = a.Redis.Close() })

	if !cfg.Database.ClickHouse.Enabled {
		a.Logger.Info("ClickHouse points ledger disabled")
		return nil
	}
	err = connectWithRetry(ctx, "clickhouse", func() error {
		db, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			return err
		}
		a.ClickHouse = db
		return nil
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { _ = a.ClickHouse.Close() })
	return nil
}

func connectWithRetry(ctx context.Context, name string, fn func() error) error {
	logger := logging.FromContext(ctx).WithField("store", name)
	logger.Info("Connecting")

	result := retry.WithExponentialBackoff(ctx, retry.DefaultRetryConfig(), func(ctx context.Context, attempt int) error {
		return fn()
	})
	if !result.Success {
		return fmt.Errorf("failed to connect to %s after %d attempts: %w", name, result.Attempts, result.LastError)
	}

	logger.WithField("attempts", result.Attempts).Info("Connected")
	return nil
}

func (a *App) buildServices() {
	cfg := a.Config

	a.Profiles = storage.NewProfileRepository(a.Postgres)
	a.StatsCache = storage.NewStatsCacheRepository(storage.NewCacheService(a.Redis, cfg.Stats.TTL))
	if a.ClickHouse != nil {
		a.Ledger = storage.NewPointsLedgerRepository(a.ClickHouse)
	}

	covalent := adapter.NewCovalentClient(cfg.Providers.Covalent, cfg.Ledger)
	neynar := adapter.NewNeynarClient(cfg.Providers.Neynar, cfg.Social)
	if gate := a.providerGate("covalent"); gate != nil {
		covalent.WithGate(gate)
	}
	if gate := a.providerGate("neynar"); gate != nil {
		neynar.WithGate(gate)
	}
	a.Breakers = []*circuitbreaker.CircuitBreaker{covalent.Breaker(), neynar.Breaker()}

	a.Aggregation = service.NewAggregationService(
		covalent,
		service.NewActivityReducer(cfg.Ledger.TokenAllowList),
		service.NewHoldingsScanner(covalent, cfg.Holdings.BadgeContracts),
		service.NewSocialMetricsFetcher(neynar),
		a.StatsCache,
		cfg.Stats.FreshnessWindow,
	)

	locker := service.NewIdentityLocker()
	a.ProfileSvc = service.NewProfileService(
		a.Profiles,
		a.Aggregation,
		service.NewStreakTracker(cfg.Rewards.CheckInPoints),
		service.NewRewardBoxEngine(nil),
		a.Ledger,
		locker,
	)
	a.Sweeper = service.NewReferralSweeper(a.Profiles, a.Ledger, locker, cfg.Referral.WorkerPoolSize)
}

// providerGate returns a Redis-backed request budget shared by every process
// talking to the provider, or nil when the budget is disabled.
func (a *App) providerGate(name string) adapter.RequestGate {
	rl := a.Config.RateLimit
	if rl.ProviderRequestsPerSecond <= 0 {
		return nil
	}

	budget, err := ratelimit.NewRequestBudget(&ratelimit.BudgetConfig{
		Redis:   a.Redis.Client(),
		Name:    name,
		Limit:   rl.ProviderRequestsPerSecond,
		MaxWait: rl.ProviderMaxWait,
	})
	if err != nil {
		a.Logger.WithError(err).WithField("provider", name).Warn("Provider budget disabled")
		return nil
	}
	return budget
}

// Close releases connections in reverse order of creation
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
