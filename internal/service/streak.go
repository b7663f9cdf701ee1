package service

import (
	"time"

	"github.com/reputation-engine/internal/models"
	"github.com/reputation-engine/internal/types"
)

// StreakContinuityDays is the largest calendar-day gap that still continues a streak.
// A check-in every 47 hours therefore never breaks the streak.
const StreakContinuityDays = 2

const dayLayout = "2006-01-02"

// CheckInResult is returned by a successful check-in
type CheckInResult struct {
	PointsAdded int64 `json:"pointsAdded"`
	NewStreak   int   `json:"newStreak"`
	Highest     int   `json:"highest"`
	Activated   bool  `json:"referralActivated"`
}

// StreakTracker applies daily check-ins to a profile
type StreakTracker struct {
	points int64
}

// NewStreakTracker creates a tracker awarding points per check-in
func NewStreakTracker(points int64) *StreakTracker {
	return &StreakTracker{points: points}
}

// UTCDay returns the calendar day of t in UTC as YYYY-MM-DD
func UTCDay(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// dayDiff counts calendar days from a to b, both taken in UTC
func dayDiff(a, b time.Time) int {
	da := time.Date(a.UTC().Year(), a.UTC().Month(), a.UTC().Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.UTC().Year(), b.UTC().Month(), b.UTC().Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// CheckIn mutates p in place. A second check-in on the same UTC day is
// rejected with DUPLICATE_CHECK_IN and leaves p untouched.
func (t *StreakTracker) CheckIn(p *models.Profile, now time.Time) (*CheckInResult, error) {
	now = now.UTC()
	last := p.Streak.LastCheckIn

	if last != nil && UTCDay(*last) == UTCDay(now) {
		return nil, types.NewServiceError(types.CodeDuplicateCheckIn, "already checked in today", map[string]interface{}{
			"lastCheckIn": last.UTC().Format(time.RFC3339),
			"streak":      p.Streak.Current,
		})
	}

	switch {
	case last == nil:
		p.Streak.Current = 1
	case dayDiff(*last, now) <= StreakContinuityDays:
		p.Streak.Current++
	default:
		p.Streak.Current = 1
	}
	if p.Streak.Current > p.Streak.Highest {
		p.Streak.Highest = p.Streak.Current
	}
	p.Streak.LastCheckIn = &now
	p.Award(t.points)

	activated := false
	if p.Referral.Status == models.ReferralPending {
		p.Referral.Status = models.ReferralActive
		activated = true
	}

	return &CheckInResult{
		PointsAdded: t.points,
		NewStreak:   p.Streak.Current,
		Highest:     p.Streak.Highest,
		Activated:   activated,
	}, nil
}
