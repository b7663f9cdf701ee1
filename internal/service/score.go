package service

import (
	"github.com/reputation-engine/internal/types"
)

// Score table
const (
	WelcomeBonus    int64 = 10
	ScoreCeiling    int64 = 500
	PointsPerBadge  int64 = 20
	CastsPerPoint   int64 = 5
	MaxCastPoints   int64 = 100
	walletAgeYear         = 365
	walletAgeMonth        = 30
	txCountHigh           = 100
	txCountLow            = 10
	walletValueHigh       = 1000.0
	walletValueLow        = 100.0
)

// ScoreInput is everything the calculator reads
type ScoreInput struct {
	Activity    types.ActivitySummary
	CastCount   int64
	BadgeCount  int
	WalletValue float64
}

// ComputeScore returns the uncapped award for in
func ComputeScore(in ScoreInput) int64 {
	total := WelcomeBonus

	if age := in.Activity.WalletAgeDays; age != nil {
		switch {
		case *age > walletAgeYear:
			total += 50
		case *age > walletAgeMonth:
			total += 20
		}
	}

	switch {
	case in.Activity.TotalTx > txCountHigh:
		total += 50
	case in.Activity.TotalTx > txCountLow:
		total += 10
	}

	switch {
	case in.WalletValue > walletValueHigh:
		total += 100
	case in.WalletValue > walletValueLow:
		total += 30
	}

	if in.BadgeCount > 0 {
		total += int64(in.BadgeCount) * PointsPerBadge
	}

	if in.CastCount > 0 {
		castPoints := in.CastCount / CastsPerPoint
		if castPoints > MaxCastPoints {
			castPoints = MaxCastPoints
		}
		total += castPoints
	}

	return total
}

// CalculateScore caps the award at ScoreCeiling and never returns less than existing
func CalculateScore(existing int64, in ScoreInput) int64 {
	total := ComputeScore(in)
	if total > ScoreCeiling {
		total = ScoreCeiling
	}
	if existing > total {
		return existing
	}
	return total
}
