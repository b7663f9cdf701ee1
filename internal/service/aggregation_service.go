package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/reputation-engine/internal/adapter"
	apperrors "github.com/reputation-engine/internal/errors"
	"github.com/reputation-engine/internal/logging"
	"github.com/reputation-engine/internal/types"
)

// StatsCache stores the latest aggregate per address
type StatsCache interface {
	Get(ctx context.Context, address string) (*types.StatsCacheEntry, error)
	Upsert(ctx context.Context, address string, activity types.ActivitySummary, holdings types.HoldingsSnapshot, social types.SocialMetrics) (*types.StatsCacheEntry, error)
	Invalidate(ctx context.Context, address string) error
}

// AggregationService runs the ledger, holdings and social fetchers behind the stats cache
type AggregationService struct {
	ledger    adapter.LedgerProvider
	reducer   *ActivityReducer
	holdings  *HoldingsScanner
	social    *SocialMetricsFetcher
	cache     StatsCache
	freshness time.Duration
	now       func() time.Time

	// in-flight refreshes keyed by address and fid, so concurrent
	// misses for the same address share one provider round
	flight    singleflight.Group
	hits      atomic.Int64
	misses    atomic.Int64
	coalesced atomic.Int64
}

// CacheStats counts how Aggregate calls were served
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Coalesced int64 `json:"coalesced"`
}

// NewAggregationService creates an aggregation service. A zero freshness
// window refetches on every call.
func NewAggregationService(
	ledger adapter.LedgerProvider,
	reducer *ActivityReducer,
	holdings *HoldingsScanner,
	social *SocialMetricsFetcher,
	cache StatsCache,
	freshness time.Duration,
) *AggregationService {
	return &AggregationService{
		ledger:    ledger,
		reducer:   reducer,
		holdings:  holdings,
		social:    social,
		cache:     cache,
		freshness: freshness,
		now:       time.Now,
	}
}

// WithClock overrides the time source
func (s *AggregationService) WithClock(now func() time.Time) *AggregationService {
	s.now = now
	return s
}

// NormalizeAddress validates a hex address and returns it lowercased
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", types.NewServiceError(types.CodeInvalidInput, "address is required", map[string]interface{}{"field": "address"})
	}
	if !common.IsHexAddress(address) {
		return "", types.NewServiceError(types.CodeInvalidAddress, "invalid address format: "+address, map[string]interface{}{"address": address})
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}

// CacheStats returns counters since startup
func (s *AggregationService) CacheStats() CacheStats {
	return CacheStats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Coalesced: s.coalesced.Load(),
	}
}

// refreshResult is what one shared refresh hands to every waiting caller.
// Configuration errors are kept per branch so the single-view operations
// can surface them while Aggregate absorbs them.
type refreshResult struct {
	entry       *types.StatsCacheEntry
	ledgerErr   error
	holdingsErr error
}

// Aggregate returns the cached entry when it is within the freshness window.
// Otherwise the three fetchers run concurrently; any branch that fails falls
// back to the previous entry's value (or zero) without affecting the others.
// The merged entry is written back before it is returned.
// fid may be 0 when the address has no linked identity, which skips the social branch.
func (s *AggregationService) Aggregate(ctx context.Context, address string, fid int64) (*types.StatsCacheEntry, error) {
	res, err := s.aggregate(ctx, address, fid)
	if err != nil {
		return nil, err
	}
	return res.entry, nil
}

func (s *AggregationService) aggregate(ctx context.Context, address string, fid int64) (*refreshResult, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"address": addr,
		"fid":     fid,
	})

	previous := s.cachedEntry(ctx, addr)
	if previous.IsFresh(s.now(), s.freshness) {
		s.hits.Add(1)
		return &refreshResult{entry: previous}, nil
	}
	s.misses.Add(1)

	// The shared refresh outlives any single caller's cancellation.
	shareCtx := context.WithoutCancel(ctx)
	v, _, shared := s.flight.Do(addr+":"+strconv.FormatInt(fid, 10), func() (interface{}, error) {
		return s.refresh(shareCtx, addr, fid, previous, logger), nil
	})
	if shared {
		s.coalesced.Add(1)
	}
	return v.(*refreshResult), nil
}

// refresh runs the three branches and writes the merged entry back.
// A failed cache write still returns the in-memory entry.
func (s *AggregationService) refresh(ctx context.Context, addr string, fid int64, previous *types.StatsCacheEntry, logger *logging.Logger) *refreshResult {
	var (
		activity types.ActivitySummary
		holdings types.HoldingsSnapshot
		social   types.SocialMetrics
		res      refreshResult
		g        errgroup.Group
	)

	g.Go(func() error {
		activity, res.ledgerErr = s.activityBranch(ctx, addr, previous, logger)
		return nil
	})
	g.Go(func() error {
		holdings, res.holdingsErr = s.holdingsBranch(ctx, addr, previous, logger)
		return nil
	})
	g.Go(func() error {
		social = s.socialBranch(ctx, fid, previous, logger)
		return nil
	})
	_ = g.Wait()

	entry, err := s.cache.Upsert(ctx, addr, activity, holdings, social)
	if err != nil {
		logger.WithError(err).Error("Failed to write stats cache")
		entry = &types.StatsCacheEntry{
			Address:     addr,
			Activity:    activity,
			Holdings:    holdings,
			Social:      social,
			LastUpdated: s.now().UTC(),
		}
	}
	res.entry = entry
	return &res
}

// FetchActivity returns the activity summary for address through the stats
// cache. A miss refreshes the whole entry, keeping the cached social view.
// A missing provider key is returned as an error.
func (s *AggregationService) FetchActivity(ctx context.Context, address string) (types.ActivitySummary, error) {
	res, err := s.aggregate(ctx, address, 0)
	if err != nil {
		return types.ActivitySummary{}, err
	}
	if res.ledgerErr != nil {
		return types.ActivitySummary{}, res.ledgerErr
	}
	return res.entry.Activity, nil
}

// FetchHoldings returns the holdings snapshot for address through the stats
// cache. Upstream failures yield the last known or all-false snapshot rather
// than an error.
func (s *AggregationService) FetchHoldings(ctx context.Context, address string) (types.HoldingsSnapshot, error) {
	res, err := s.aggregate(ctx, address, 0)
	if err != nil {
		return types.HoldingsSnapshot{}, err
	}
	if res.holdingsErr != nil {
		return res.entry.Holdings, res.holdingsErr
	}
	return res.entry.Holdings, nil
}

// Invalidate drops the cached entry for address so the next read refetches
func (s *AggregationService) Invalidate(ctx context.Context, address string) error {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, addr)
}

// FetchSocialMetrics returns the social view of fid. Individual lookups degrade independently.
func (s *AggregationService) FetchSocialMetrics(ctx context.Context, fid int64) (types.SocialMetrics, error) {
	if fid <= 0 {
		return types.SocialMetrics{}, types.NewServiceError(types.CodeInvalidInput, "identity id is required", map[string]interface{}{"field": "fid"})
	}
	metrics, err := s.social.Fetch(ctx, fid)
	if apperrors.IsConfigurationError(err) {
		return metrics, err
	}
	return metrics, nil
}

// LookupCast returns the provider's engagement for a cast authored by fid
func (s *AggregationService) LookupCast(ctx context.Context, fid int64, hash string) (types.BestPost, error) {
	return s.social.LookupCast(ctx, fid, hash)
}

func (s *AggregationService) cachedEntry(ctx context.Context, addr string) *types.StatsCacheEntry {
	entry, err := s.cache.Get(ctx, addr)
	if err != nil {
		logging.FromContext(ctx).WithField("address", addr).WithError(err).Warn("Stats cache read failed")
		return nil
	}
	return entry
}

// activityBranch and holdingsBranch return a configuration error alongside
// the fallback value; any other failure is only logged.
func (s *AggregationService) activityBranch(ctx context.Context, addr string, previous *types.StatsCacheEntry, logger *logging.Logger) (types.ActivitySummary, error) {
	txs, err := s.ledger.FetchTransactions(ctx, addr)
	if err == nil {
		return s.reducer.Reduce(addr, txs, s.now()), nil
	}

	var partial *adapter.PartialResultError
	if errors.As(err, &partial) {
		reduced := s.reducer.Reduce(addr, txs, s.now())
		if previous != nil && previous.Activity.TotalTx > reduced.TotalTx {
			logger.WithError(err).Warn("Ledger fetch partial, keeping richer cached activity")
			return previous.Activity, nil
		}
		logger.WithError(err).Warn("Ledger fetch partial, using partial history")
		return reduced, nil
	}

	s.logBranchFailure(logger, "ledger", err)
	if previous != nil {
		return previous.Activity, configurationError(err)
	}
	return types.NewActivitySummary(addr), configurationError(err)
}

func (s *AggregationService) holdingsBranch(ctx context.Context, addr string, previous *types.StatsCacheEntry, logger *logging.Logger) (types.HoldingsSnapshot, error) {
	snapshot, err := s.holdings.Scan(ctx, addr)
	if err == nil {
		return snapshot, nil
	}

	s.logBranchFailure(logger, "holdings", err)
	if previous != nil && previous.Holdings.Badges != nil {
		return previous.Holdings, configurationError(err)
	}
	return s.holdings.Empty(), configurationError(err)
}

func configurationError(err error) error {
	if apperrors.IsConfigurationError(err) {
		return err
	}
	return nil
}

func (s *AggregationService) socialBranch(ctx context.Context, fid int64, previous *types.StatsCacheEntry, logger *logging.Logger) types.SocialMetrics {
	if fid <= 0 {
		if previous != nil {
			return previous.Social
		}
		return types.SocialMetrics{}
	}

	metrics, err := s.social.Fetch(ctx, fid)
	if err == nil {
		return metrics
	}

	s.logBranchFailure(logger, "social", err)
	if previous == nil {
		return metrics
	}
	if previous.Social.CastCount > metrics.CastCount {
		metrics.CastCount = previous.Social.CastCount
	}
	if metrics.BestPost == nil {
		metrics.BestPost = previous.Social.BestPost
	}
	if metrics.Score == nil {
		metrics.Score = previous.Social.Score
	}
	return metrics
}

func (s *AggregationService) logBranchFailure(logger *logging.Logger, branch string, err error) {
	l := logger.WithField("branch", branch).WithError(err)
	if apperrors.IsConfigurationError(err) {
		l.Error("Provider not configured, using last known value")
		return
	}
	l.Warn("Provider fetch failed, using last known value")
}
