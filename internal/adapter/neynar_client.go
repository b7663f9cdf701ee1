package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/reputation-engine/internal/circuitbreaker"
	"github.com/reputation-engine/internal/config"
	apperrors "github.com/reputation-engine/internal/errors"
	"github.com/reputation-engine/internal/logging"
	"github.com/reputation-engine/internal/types"
)

const neynarProvider = "neynar"

// NeynarClient reads casts and user scores from the Neynar API
type NeynarClient struct {
	apiKey       string
	baseURL      string
	pageSize     int
	maxPages     int
	popularLimit int
	client       *http.Client
	breaker      *circuitbreaker.CircuitBreaker
	gate         RequestGate
}

type neynarFeedResponse struct {
	Casts []types.RawCast `json:"casts"`
	Next  *struct {
		Cursor *string `json:"cursor"`
	} `json:"next"`
}

type neynarBulkUsersResponse struct {
	Users []struct {
		FID          int64    `json:"fid"`
		Score        *float64 `json:"score"`
		Experimental *struct {
			NeynarUserScore *float64 `json:"neynar_user_score"`
		} `json:"experimental"`
	} `json:"users"`
}

type neynarCastResponse struct {
	Cast *types.RawCast `json:"cast"`
}

// NewNeynarClient creates a social graph client
func NewNeynarClient(cfg config.NeynarConfig, social config.SocialConfig) *NeynarClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxPages := social.MaxPages
	if maxPages <= 0 {
		maxPages = 1000
	}
	pageSize := social.PageSize
	if pageSize <= 0 {
		pageSize = 150
	}
	popular := social.PopularLimit
	if popular <= 0 {
		popular = 10
	}

	return &NeynarClient{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		pageSize:     pageSize,
		maxPages:     maxPages,
		popularLimit: popular,
		client:       &http.Client{Timeout: timeout},
		breaker:      circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig(neynarProvider)),
	}
}

// WithGate makes every request wait on gate first
func (c *NeynarClient) WithGate(gate RequestGate) *NeynarClient {
	c.gate = gate
	return c
}

// Breaker exposes the client's circuit breaker for health reporting
func (c *NeynarClient) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

func (c *NeynarClient) headers() map[string]string {
	return map[string]string{"x-api-key": c.apiKey}
}

// FetchCastCount walks the identity's casts and recasts and sums page sizes.
// On a page failure the running total is returned with a *PartialResultError.
func (c *NeynarClient) FetchCastCount(ctx context.Context, fid int64) (int64, error) {
	if c.apiKey == "" {
		return 0, apperrors.NewProviderNotConfiguredError(neynarProvider)
	}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"provider": neynarProvider,
		"fid":      fid,
	})

	var total int64
	cursor := ""
	for page := 0; ; page++ {
		if page >= c.maxPages {
			logger.WithField("maxPages", c.maxPages).Warn("Cast count truncated at page ceiling")
			return total, nil
		}

		q := url.Values{}
		q.Set("fid", fmt.Sprint(fid))
		q.Set("limit", fmt.Sprint(c.pageSize))
		q.Set("include_replies", "true")
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var resp neynarFeedResponse
		if err := getJSON(ctx, c.client, c.breaker, c.gate, c.baseURL+"/feed/user/casts?"+q.Encode(), c.headers(), &resp); err != nil {
			logger.WithField("page", page).WithError(err).Warn("Cast page fetch failed, keeping partial count")
			return total, &PartialResultError{Provider: neynarProvider, Pages: page, Items: int(total), Cause: err}
		}

		if len(resp.Casts) == 0 {
			return total, nil
		}
		total += int64(len(resp.Casts))

		cursor = ""
		if resp.Next != nil && resp.Next.Cursor != nil {
			cursor = *resp.Next.Cursor
		}
		if cursor == "" {
			return total, nil
		}
	}
}

// FetchPopularCasts returns one page of the identity's most engaged casts
func (c *NeynarClient) FetchPopularCasts(ctx context.Context, fid int64) ([]types.RawCast, error) {
	if c.apiKey == "" {
		return nil, apperrors.NewProviderNotConfiguredError(neynarProvider)
	}

	q := url.Values{}
	q.Set("fid", fmt.Sprint(fid))
	q.Set("limit", fmt.Sprint(c.popularLimit))

	var resp neynarFeedResponse
	if err := getJSON(ctx, c.client, c.breaker, c.gate, c.baseURL+"/feed/user/popular?"+q.Encode(), c.headers(), &resp); err != nil {
		return nil, apperrors.NewProviderError(neynarProvider, err)
	}
	return resp.Casts, nil
}

// FetchUserScore looks up the identity's reputation score. A nil score with a
// nil error means the provider had no score for the user.
func (c *NeynarClient) FetchUserScore(ctx context.Context, fid int64) (*float64, error) {
	if c.apiKey == "" {
		return nil, apperrors.NewProviderNotConfiguredError(neynarProvider)
	}

	q := url.Values{}
	q.Set("fids", fmt.Sprint(fid))

	var resp neynarBulkUsersResponse
	if err := getJSON(ctx, c.client, c.breaker, c.gate, c.baseURL+"/user/bulk?"+q.Encode(), c.headers(), &resp); err != nil {
		return nil, apperrors.NewProviderError(neynarProvider, err)
	}

	for _, u := range resp.Users {
		if u.FID != fid {
			continue
		}
		if u.Experimental != nil && u.Experimental.NeynarUserScore != nil {
			return u.Experimental.NeynarUserScore, nil
		}
		return u.Score, nil
	}
	return nil, nil
}

// FetchCast looks up a single cast by hash. An unknown hash returns nil, nil.
func (c *NeynarClient) FetchCast(ctx context.Context, hash string) (*types.RawCast, error) {
	if c.apiKey == "" {
		return nil, apperrors.NewProviderNotConfiguredError(neynarProvider)
	}

	q := url.Values{}
	q.Set("identifier", hash)
	q.Set("type", "hash")

	var resp neynarCastResponse
	err := getJSON(ctx, c.client, c.breaker, c.gate, c.baseURL+"/cast?"+q.Encode(), c.headers(), &resp)
	if err != nil {
		var status *StatusError
		if errors.As(err, &status) && status.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, apperrors.NewProviderError(neynarProvider, err)
	}
	return resp.Cast, nil
}
