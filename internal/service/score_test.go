package service

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/reputation-engine/internal/types"
)

func int64Ptr(v int64) *int64 { return &v }

func activity(txs int64, ageDays *int64) types.ActivitySummary {
	s := types.NewActivitySummary(testAddr)
	s.TotalTx = txs
	s.WalletAgeDays = ageDays
	return s
}

func TestComputeScore_Tiers(t *testing.T) {
	tests := []struct {
		name string
		in   ScoreInput
		want int64
	}{
		{"welcome only", ScoreInput{Activity: activity(0, nil)}, 10},
		{"age 31 days", ScoreInput{Activity: activity(0, int64Ptr(31))}, 30},
		{"age exactly 30 days", ScoreInput{Activity: activity(0, int64Ptr(30))}, 10},
		{"age 366 days", ScoreInput{Activity: activity(0, int64Ptr(366))}, 60},
		{"age exactly 365 days", ScoreInput{Activity: activity(0, int64Ptr(365))}, 30},
		{"11 transactions", ScoreInput{Activity: activity(11, nil)}, 20},
		{"10 transactions", ScoreInput{Activity: activity(10, nil)}, 10},
		{"101 transactions", ScoreInput{Activity: activity(101, nil)}, 60},
		{"wallet value 101", ScoreInput{Activity: activity(0, nil), WalletValue: 101}, 40},
		{"wallet value 1001", ScoreInput{Activity: activity(0, nil), WalletValue: 1001}, 110},
		{"three badges", ScoreInput{Activity: activity(0, nil), BadgeCount: 3}, 70},
		{"casts floor", ScoreInput{Activity: activity(0, nil), CastCount: 14}, 12},
		{"casts capped", ScoreInput{Activity: activity(0, nil), CastCount: 10_000}, 110},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeScore(tt.in))
		})
	}
}

func TestCalculateScore_CeilingAndFloor(t *testing.T) {
	maxed := ScoreInput{
		Activity:    activity(500, int64Ptr(1000)),
		CastCount:   10_000,
		BadgeCount:  9,
		WalletValue: 50_000,
	}
	// 10 + 50 + 50 + 100 + 180 + 100 = 490
	assert.Equal(t, int64(490), CalculateScore(0, maxed))

	maxed.BadgeCount = 20
	assert.Equal(t, ScoreCeiling, CalculateScore(0, maxed))

	assert.Equal(t, int64(900), CalculateScore(900, maxed), "existing balance above the ceiling is kept")
	assert.Equal(t, int64(45), CalculateScore(45, ScoreInput{Activity: activity(0, nil)}))
}

func TestCalculateScoreProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	genInput := gopter.CombineGens(
		gen.Int64Range(0, 10_000),
		gen.Int64Range(0, 5_000),
		gen.IntRange(0, 12),
		gen.Float64Range(0, 1e6),
		gen.Int64Range(0, 100_000),
	).Map(func(v []interface{}) ScoreInput {
		age := v[1].(int64)
		return ScoreInput{
			Activity:    activity(v[0].(int64), &age),
			BadgeCount:  v[2].(int),
			WalletValue: v[3].(float64),
			CastCount:   v[4].(int64),
		}
	})

	properties.Property("never lowers existing points", prop.ForAll(
		func(existing int64, in ScoreInput) bool {
			return CalculateScore(existing, in) >= existing
		},
		gen.Int64Range(0, 2_000),
		genInput,
	))

	properties.Property("recalculation is idempotent", prop.ForAll(
		func(existing int64, in ScoreInput) bool {
			first := CalculateScore(existing, in)
			return CalculateScore(first, in) == first
		},
		gen.Int64Range(0, 2_000),
		genInput,
	))

	properties.Property("result within ceiling unless already above", prop.ForAll(
		func(existing int64, in ScoreInput) bool {
			got := CalculateScore(existing, in)
			return got <= ScoreCeiling || got == existing
		},
		gen.Int64Range(0, 2_000),
		genInput,
	))

	properties.TestingRun(t)
}
