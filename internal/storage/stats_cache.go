package storage

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/reputation-engine/internal/errors"
	"github.com/reputation-engine/internal/types"
)

// StatsCacheRepository keeps the latest StatsCacheEntry per address in Redis.
// Big integers travel as decimal strings through ActivitySummary's JSON form.
type StatsCacheRepository struct {
	cache *CacheService
	now   func() time.Time
}

// NewStatsCacheRepository creates a stats cache on top of cache
func NewStatsCacheRepository(cache *CacheService) *StatsCacheRepository {
	return &StatsCacheRepository{cache: cache, now: time.Now}
}

// Get returns the entry for address, or nil when absent
func (r *StatsCacheRepository) Get(ctx context.Context, address string) (*types.StatsCacheEntry, error) {
	var entry types.StatsCacheEntry
	found, err := r.cache.Get(ctx, r.cache.GenerateStatsKey(address), &entry)
	if err != nil {
		return nil, apperrors.NewCacheError("get stats", err)
	}
	if !found {
		return nil, nil
	}
	return &entry, nil
}

// Upsert replaces the entry for address and stamps it with the current time
func (r *StatsCacheRepository) Upsert(ctx context.Context, address string, activity types.ActivitySummary, holdings types.HoldingsSnapshot, social types.SocialMetrics) (*types.StatsCacheEntry, error) {
	entry := &types.StatsCacheEntry{
		Address:     strings.ToLower(address),
		Activity:    activity,
		Holdings:    holdings,
		Social:      social,
		LastUpdated: r.now().UTC(),
	}
	if err := r.cache.Set(ctx, r.cache.GenerateStatsKey(address), entry); err != nil {
		return nil, apperrors.NewCacheError("upsert stats", err)
	}
	return entry, nil
}

// Invalidate drops the entry so the next read refetches
func (r *StatsCacheRepository) Invalidate(ctx context.Context, address string) error {
	return r.cache.Invalidate(ctx, r.cache.GenerateStatsKey(address))
}
