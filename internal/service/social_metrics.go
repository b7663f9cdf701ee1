package service

import (
	"context"
	"strings"

	"github.com/reputation-engine/internal/adapter"
	"github.com/reputation-engine/internal/logging"
	"github.com/reputation-engine/internal/types"
)

// SocialMetricsFetcher combines the three social lookups into one SocialMetrics
type SocialMetricsFetcher struct {
	provider adapter.SocialProvider
}

// NewSocialMetricsFetcher creates a fetcher on top of provider
func NewSocialMetricsFetcher(provider adapter.SocialProvider) *SocialMetricsFetcher {
	return &SocialMetricsFetcher{provider: provider}
}

// Fetch never fails as a whole. The cast count keeps its partial total, the
// best post and score are simply absent when their lookups fail. The returned
// error reports whether any part degraded.
func (f *SocialMetricsFetcher) Fetch(ctx context.Context, fid int64) (types.SocialMetrics, error) {
	logger := logging.FromContext(ctx).WithField("fid", fid)
	var metrics types.SocialMetrics
	var firstErr error

	count, err := f.provider.FetchCastCount(ctx, fid)
	metrics.CastCount = count
	if err != nil {
		logger.WithError(err).Warn("Cast count incomplete")
		firstErr = err
	}

	casts, err := f.provider.FetchPopularCasts(ctx, fid)
	if err != nil {
		logger.WithError(err).Warn("Popular casts unavailable")
		if firstErr == nil {
			firstErr = err
		}
	} else {
		metrics.BestPost = BestPost(casts)
	}

	score, err := f.provider.FetchUserScore(ctx, fid)
	if err != nil {
		logger.WithError(err).Warn("Social score unavailable")
		if firstErr == nil {
			firstErr = err
		}
	} else {
		metrics.Score = score
	}

	return metrics, firstErr
}

// LookupCast resolves hash to the engagement the provider reports for it.
// The cast must exist and be authored by fid.
func (f *SocialMetricsFetcher) LookupCast(ctx context.Context, fid int64, hash string) (types.BestPost, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return types.BestPost{}, types.NewServiceError(types.CodeInvalidInput, "cast hash is required", map[string]interface{}{"field": "hash"})
	}

	cast, err := f.provider.FetchCast(ctx, hash)
	if err != nil {
		return types.BestPost{}, err
	}
	if cast == nil {
		return types.BestPost{}, types.NewServiceError(types.CodeCastNotFound, "cast not found", map[string]interface{}{"hash": hash})
	}
	if cast.Author == nil || cast.Author.FID != fid {
		return types.BestPost{}, types.NewServiceError(types.CodeCastNotOwned, "cast was not posted by this identity", map[string]interface{}{"hash": hash, "fid": fid})
	}
	return NormalizeEngagement(*cast), nil
}

// BestPost picks the cast with the highest engagement. Ties keep the first one.
func BestPost(casts []types.RawCast) *types.BestPost {
	var best *types.BestPost
	for _, c := range casts {
		post := NormalizeEngagement(c)
		if best == nil || post.Engagement() > best.Engagement() {
			p := post
			best = &p
		}
	}
	return best
}

// NormalizeEngagement reads likes, recasts and replies from whichever shape
// the provider returned. Missing fields count as zero.
func NormalizeEngagement(c types.RawCast) types.BestPost {
	post := types.BestPost{Hash: c.Hash, Text: c.Text}

	if r := c.Reactions; r != nil {
		switch {
		case r.LikesCount != nil:
			post.Likes = *r.LikesCount
		case r.Likes != nil:
			post.Likes = int64(len(r.Likes))
		}
		switch {
		case r.RecastsCount != nil:
			post.Recasts = *r.RecastsCount
		case r.Recasts != nil:
			post.Recasts = int64(len(r.Recasts))
		}
	}
	if post.Likes == 0 {
		post.Likes = types.CountOf(c.Likes)
	}
	if post.Recasts == 0 {
		post.Recasts = types.CountOf(c.Recasts)
	}
	post.Replies = types.CountOf(c.Replies)

	return post
}
