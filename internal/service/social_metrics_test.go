package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputation-engine/internal/types"
)

type mockSocialProvider struct {
	count    int64
	countErr error
	casts    []types.RawCast
	castsErr error
	score    *float64
	scoreErr error
	cast     *types.RawCast
	castErr  error
}

func (m *mockSocialProvider) FetchCastCount(ctx context.Context, fid int64) (int64, error) {
	return m.count, m.countErr
}

func (m *mockSocialProvider) FetchPopularCasts(ctx context.Context, fid int64) ([]types.RawCast, error) {
	return m.casts, m.castsErr
}

func (m *mockSocialProvider) FetchUserScore(ctx context.Context, fid int64) (*float64, error) {
	return m.score, m.scoreErr
}

func (m *mockSocialProvider) FetchCast(ctx context.Context, hash string) (*types.RawCast, error) {
	if m.castErr != nil || m.cast == nil {
		return nil, m.castErr
	}
	if m.cast.Hash != hash {
		return nil, nil
	}
	return m.cast, nil
}

func rawCast(t *testing.T, body string) types.RawCast {
	t.Helper()
	var c types.RawCast
	require.NoError(t, json.Unmarshal([]byte(body), &c))
	return c
}

func TestNormalizeEngagement_Shapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want types.BestPost
	}{
		{
			name: "reaction counts with replies object",
			body: `{"hash":"0x1","reactions":{"likes_count":10,"recasts_count":3},"replies":{"count":4}}`,
			want: types.BestPost{Hash: "0x1", Likes: 10, Recasts: 3, Replies: 4},
		},
		{
			name: "reaction arrays",
			body: `{"hash":"0x2","reactions":{"likes":[{"fid":1},{"fid":2}],"recasts":[{"fid":3}]}}`,
			want: types.BestPost{Hash: "0x2", Likes: 2, Recasts: 1},
		},
		{
			name: "flat counts",
			body: `{"hash":"0x3","likes":7,"recasts":"2","replies":[{},{},{}]}`,
			want: types.BestPost{Hash: "0x3", Likes: 7, Recasts: 2, Replies: 3},
		},
		{
			name: "nothing at all",
			body: `{"hash":"0x4"}`,
			want: types.BestPost{Hash: "0x4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeEngagement(rawCast(t, tt.body)))
		})
	}
}

func TestBestPost_PicksHighestEngagement(t *testing.T) {
	casts := []types.RawCast{
		rawCast(t, `{"hash":"0xa","likes":3}`),
		rawCast(t, `{"hash":"0xb","reactions":{"likes_count":2,"recasts_count":2},"replies":{"count":1}}`),
		rawCast(t, `{"hash":"0xc","likes":5}`),
	}

	best := BestPost(casts)
	require.NotNil(t, best)
	assert.Equal(t, "0xb", best.Hash)
	assert.Nil(t, BestPost(nil))
}

func TestSocialMetricsFetcher_AllSucceed(t *testing.T) {
	score := 0.87
	f := NewSocialMetricsFetcher(&mockSocialProvider{
		count: 42,
		casts: []types.RawCast{rawCast(t, `{"hash":"0xa","likes":3}`)},
		score: &score,
	})

	metrics, err := f.Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(42), metrics.CastCount)
	assert.Equal(t, "0xa", metrics.BestPost.Hash)
	assert.Equal(t, 0.87, *metrics.Score)
}

func TestSocialMetricsFetcher_DegradesPerPart(t *testing.T) {
	f := NewSocialMetricsFetcher(&mockSocialProvider{
		count:    12,
		countErr: errors.New("page 3 failed"),
		castsErr: errors.New("timeout"),
		scoreErr: errors.New("timeout"),
	})

	metrics, err := f.Fetch(context.Background(), 1)
	assert.Error(t, err)
	assert.Equal(t, int64(12), metrics.CastCount, "partial count survives")
	assert.Nil(t, metrics.BestPost)
	assert.Nil(t, metrics.Score)
}

func TestSocialMetricsFetcher_LookupCast(t *testing.T) {
	provider := &mockSocialProvider{
		cast: &types.RawCast{
			Hash:      "0xmine",
			Author:    &types.RawCastAuthor{FID: 7},
			Reactions: &types.RawReactions{LikesCount: int64Ptr(6), RecastsCount: int64Ptr(2)},
		},
	}
	fetcher := NewSocialMetricsFetcher(provider)
	ctx := context.Background()

	post, err := fetcher.LookupCast(ctx, 7, " 0xmine ")
	require.NoError(t, err)
	assert.Equal(t, int64(6), post.Likes)
	assert.Equal(t, int64(2), post.Recasts)

	tests := []struct {
		name string
		fid  int64
		hash string
		code string
	}{
		{"empty hash", 7, "", types.CodeInvalidInput},
		{"unknown hash", 7, "0xnope", types.CodeCastNotFound},
		{"someone else's cast", 8, "0xmine", types.CodeCastNotOwned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fetcher.LookupCast(ctx, tt.fid, tt.hash)
			var svcErr *types.ServiceError
			require.ErrorAs(t, err, &svcErr)
			assert.Equal(t, tt.code, svcErr.Code)
		})
	}

	provider.castErr = errors.New("neynar down")
	_, err = fetcher.LookupCast(ctx, 7, "0xmine")
	assert.EqualError(t, err, "neynar down")
}
