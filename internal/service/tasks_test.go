package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputation-engine/internal/models"
	"github.com/reputation-engine/internal/types"
)

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var svcErr *types.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, code, svcErr.Code)
}

func TestClaimTask(t *testing.T) {
	p := models.NewProfile(1, testAddr, "code", nil)

	res, err := ClaimTask(p, "mint_collectible")
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.PointsAdded)
	assert.Equal(t, int64(100), p.GrindedPoints)
	assert.True(t, p.DailyActions.HasCompleted("mint_collectible"))

	_, err = ClaimTask(p, "mint_collectible")
	requireCode(t, err, types.CodeTaskAlreadyClaimed)

	_, err = ClaimTask(p, "fly_to_moon")
	requireCode(t, err, types.CodeUnknownTask)

	_, err = ClaimTask(p, " ")
	requireCode(t, err, types.CodeInvalidInput)

	assert.Equal(t, int64(100), p.Points)
}

func TestClaimDailyCast(t *testing.T) {
	now := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	p := models.NewProfile(1, testAddr, "code", nil)

	res, err := ClaimDailyCast(p, types.BestPost{Hash: "0xa", Likes: 3, Recasts: 2, Replies: 1}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(5+8), res.PointsAdded)
	require.Len(t, p.DailyActions.CastHistory, 1)
	assert.Equal(t, models.CastHistEntry{Hash: "0xa", Points: 13, Engagement: 8, Date: "2026-02-03"}, p.DailyActions.CastHistory[0])

	_, err = ClaimDailyCast(p, types.BestPost{Hash: "0xb"}, now.Add(13*time.Hour))
	requireCode(t, err, types.CodeDailyCastAlreadyRewarded)

	res, err = ClaimDailyCast(p, types.BestPost{Hash: "0xc", Likes: 500}, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.PointsAdded, "bonus is capped")
	assert.Equal(t, int64(63), p.GrindedPoints)
}

func TestClaimDailyCast_HistoryIsBounded(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := models.NewProfile(1, testAddr, "code", nil)

	for i := 0; i < castHistoryLimit+5; i++ {
		_, err := ClaimDailyCast(p, types.BestPost{Hash: fmt.Sprintf("0x%d", i)}, now.AddDate(0, 0, i))
		require.NoError(t, err)
	}
	assert.Len(t, p.DailyActions.CastHistory, castHistoryLimit)
	assert.Equal(t, "0x5", p.DailyActions.CastHistory[0].Hash)
}

func TestLinkCollectible(t *testing.T) {
	p := models.NewProfile(1, testAddr, "code", nil)

	requireCode(t, LinkCollectible(p, "", "x"), types.CodeInvalidInput)
	assert.Nil(t, p.Collectible)

	require.NoError(t, LinkCollectible(p, "42", "https://img/42.png"))
	assert.Equal(t, &models.Collectible{TokenID: "42", ImageURL: "https://img/42.png"}, p.Collectible)
}
