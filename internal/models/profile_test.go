package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewProfile(t *testing.T) {
	referrer := int64(7)
	p := NewProfile(42, "0xabc", "CODE1234", &referrer)

	assert.Equal(t, ReferralPending, p.Referral.Status)
	assert.Equal(t, int64(7), *p.Referral.ReferredBy)
	assert.NotNil(t, p.RewardBoxes.Claimed)
	assert.Empty(t, p.DailyActions.CompletedTasks)
	assert.Zero(t, p.Points)
}

func TestProfile_Award(t *testing.T) {
	p := NewProfile(1, "0x1", "C", nil)
	p.Award(15)
	p.Points += 5 // referral payouts touch points only

	assert.Equal(t, int64(20), p.Points)
	assert.Equal(t, int64(15), p.GrindedPoints)
}

func TestProfile_CloneIsDeep(t *testing.T) {
	now := time.Now()
	p := NewProfile(1, "0x1", "C", nil)
	p.Streak.LastCheckIn = &now
	p.RewardBoxes.Claimed[3] = true
	p.DailyActions.CompletedTasks = append(p.DailyActions.CompletedTasks, "share_app")
	p.Collectible = &Collectible{TokenID: "9"}

	c := p.Clone()
	c.RewardBoxes.Claimed[7] = true
	c.DailyActions.CompletedTasks[0] = "other"
	c.Collectible.TokenID = "10"
	*c.Streak.LastCheckIn = now.Add(time.Hour)

	assert.False(t, p.RewardBoxes.IsClaimed(7))
	assert.True(t, p.DailyActions.HasCompleted("share_app"))
	assert.Equal(t, "9", p.Collectible.TokenID)
	assert.True(t, now.Equal(*p.Streak.LastCheckIn))
}
