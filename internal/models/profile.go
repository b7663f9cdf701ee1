// Package models provides persisted data models for the reputation engine.
package models

import (
	"time"
)

// ReferralStatus tracks whether a referred identity has done its first qualifying action
type ReferralStatus string

const (
	ReferralPending ReferralStatus = "pending"
	ReferralActive  ReferralStatus = "active"
)

// BoxTiers are the streak thresholds that unlock a reward box
var BoxTiers = []int{3, 7, 14, 30}

// Profile is the authoritative per-identity record. One per identity id.
type Profile struct {
	ID            int64        `json:"fid" db:"fid"`
	Address       string       `json:"address" db:"address"`
	Points        int64        `json:"points" db:"points"`
	GrindedPoints int64        `json:"grindedPoints" db:"grinded_points"`
	Streak        Streak       `json:"streak" db:"streak"`
	Referral      Referral     `json:"referral" db:"referral"`
	RewardBoxes   RewardBoxes  `json:"rewardBoxes" db:"reward_boxes"`
	DailyActions  DailyActions `json:"dailyActions" db:"daily_actions"`
	Collectible   *Collectible `json:"collectible,omitempty" db:"collectible"`
	CreatedAt     time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time    `json:"updatedAt" db:"updated_at"`
}

// Streak is the daily check-in state
type Streak struct {
	Current     int        `json:"current"`
	Highest     int        `json:"highest"`
	LastCheckIn *time.Time `json:"lastCheckIn,omitempty"`
}

// Referral holds the identity's own code and its link to a referrer.
// ReferredBy is set once at creation and never changes.
type Referral struct {
	Code       string         `json:"code" db:"referral_code"`
	ReferredBy *int64         `json:"referredBy,omitempty" db:"referred_by"`
	Status     ReferralStatus `json:"status" db:"referral_status"`
	Stats      ReferralStats  `json:"stats" db:"referral_stats"`
}

// ReferralStats are maintained by the referral sweep
type ReferralStats struct {
	ActiveCount         int   `json:"activeCount"`
	TotalCommissionPaid int64 `json:"totalCommissionPaid"`
}

// RewardBoxes holds the once-per-lifetime claim flags.
// LastMonthlyReset is stored but no reset job reads it.
type RewardBoxes struct {
	Claimed          map[int]bool `json:"claimed"`
	LastMonthlyReset *time.Time   `json:"lastMonthlyReset,omitempty"`
}

// IsClaimed reports whether tier has been opened
func (r RewardBoxes) IsClaimed(tier int) bool {
	return r.Claimed[tier]
}

// DailyActions records casts and one-time tasks
type DailyActions struct {
	LastRewardedCastDate string          `json:"lastRewardedCastDate,omitempty"`
	CompletedTasks       []string        `json:"completedTasks"`
	CastHistory          []CastHistEntry `json:"castHistory"`
}

// HasCompleted reports whether task was already claimed
func (d DailyActions) HasCompleted(task string) bool {
	for _, t := range d.CompletedTasks {
		if t == task {
			return true
		}
	}
	return false
}

// CastHistEntry is one rewarded cast
type CastHistEntry struct {
	Hash       string `json:"hash"`
	Points     int64  `json:"points"`
	Engagement int64  `json:"engagement"`
	Date       string `json:"date"`
}

// Collectible is an optional minted token linked to the profile
type Collectible struct {
	TokenID  string `json:"tokenId"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// NewProfile returns a profile with empty sub-records and pending referral status
func NewProfile(id int64, address, code string, referredBy *int64) *Profile {
	now := time.Now().UTC()
	return &Profile{
		ID:      id,
		Address: address,
		Referral: Referral{
			Code:       code,
			ReferredBy: referredBy,
			Status:     ReferralPending,
		},
		RewardBoxes: RewardBoxes{Claimed: map[int]bool{}},
		DailyActions: DailyActions{
			CompletedTasks: []string{},
			CastHistory:    []CastHistEntry{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Award adds earned points to both the balance and the grinded total
func (p *Profile) Award(points int64) {
	p.Points += points
	p.GrindedPoints += points
}

// Clone returns a deep copy so callers can mutate without touching a shared value
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Streak.LastCheckIn != nil {
		t := *p.Streak.LastCheckIn
		c.Streak.LastCheckIn = &t
	}
	if p.Referral.ReferredBy != nil {
		r := *p.Referral.ReferredBy
		c.Referral.ReferredBy = &r
	}
	c.RewardBoxes.Claimed = make(map[int]bool, len(p.RewardBoxes.Claimed))
	for k, v := range p.RewardBoxes.Claimed {
		c.RewardBoxes.Claimed[k] = v
	}
	if p.RewardBoxes.LastMonthlyReset != nil {
		t := *p.RewardBoxes.LastMonthlyReset
		c.RewardBoxes.LastMonthlyReset = &t
	}
	c.DailyActions.CompletedTasks = append([]string{}, p.DailyActions.CompletedTasks...)
	c.DailyActions.CastHistory = append([]CastHistEntry{}, p.DailyActions.CastHistory...)
	if p.Collectible != nil {
		col := *p.Collectible
		c.Collectible = &col
	}
	return &c
}
