package service

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputation-engine/internal/models"
	"github.com/reputation-engine/internal/types"
)

// fixedRandom always returns v clamped to [0, n)
type fixedRandom struct{ v int64 }

func (f fixedRandom) Int63n(n int64) int64 {
	if f.v >= n {
		return n - 1
	}
	return f.v
}

func TestOpenBox_Tier7Lifecycle(t *testing.T) {
	engine := NewRewardBoxEngine(nil)
	p := profileWithStreak(6, 6, nil)

	_, err := engine.Open(p, 7)
	var svcErr *types.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, types.CodeInsufficientStreak, svcErr.Code)
	assert.Equal(t, 7, svcErr.Details["required"])
	assert.False(t, p.RewardBoxes.IsClaimed(7))

	p.Streak.Current = 7
	res, err := engine.Open(p, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Tier)
	assert.GreaterOrEqual(t, res.PointsAdded, int64(20))
	assert.LessOrEqual(t, res.PointsAdded, int64(40))
	assert.Equal(t, res.PointsAdded, p.Points)
	assert.True(t, p.RewardBoxes.IsClaimed(7))

	_, err = engine.Open(p, 7)
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, types.CodeBoxAlreadyClaimed, svcErr.Code)
	assert.Equal(t, res.PointsAdded, p.Points, "rejection awards nothing")
}

func TestOpenBox_InvalidTier(t *testing.T) {
	engine := NewRewardBoxEngine(fixedRandom{})
	p := profileWithStreak(100, 100, nil)

	for _, tier := range []int{0, 1, 5, 31, -3} {
		_, err := engine.Open(p, tier)
		var svcErr *types.ServiceError
		require.ErrorAs(t, err, &svcErr)
		assert.Equal(t, types.CodeInvalidTier, svcErr.Code)
	}
	assert.Zero(t, p.Points)
}

func TestOpenBox_RangeEndpoints(t *testing.T) {
	for tier, r := range BoxRanges {
		low := profileWithStreak(30, 30, nil)
		res, err := NewRewardBoxEngine(fixedRandom{v: 0}).Open(low, tier)
		require.NoError(t, err)
		assert.Equal(t, r.Min, res.PointsAdded)

		high := profileWithStreak(30, 30, nil)
		res, err = NewRewardBoxEngine(fixedRandom{v: 1 << 40}).Open(high, tier)
		require.NoError(t, err)
		assert.Equal(t, r.Max, res.PointsAdded)
	}
}

func TestOpenBox_AwardAlwaysInRangeProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	engine := NewRewardBoxEngine(nil)

	properties.Property("award stays inside the tier range", prop.ForAll(
		func(idx int) bool {
			tier := models.BoxTiers[idx]
			p := profileWithStreak(tier, tier, nil)
			res, err := engine.Open(p, tier)
			if err != nil {
				return false
			}
			r := BoxRanges[tier]
			return res.PointsAdded >= r.Min && res.PointsAdded <= r.Max && p.GrindedPoints == res.PointsAdded
		},
		gen.IntRange(0, len(models.BoxTiers)-1),
	))

	properties.TestingRun(t)
}
