package models

import (
	"time"

	"github.com/google/uuid"
)

// PointsSource identifies what produced a points award
type PointsSource string

const (
	SourceCheckIn   PointsSource = "check_in"
	SourceRewardBox PointsSource = "reward_box"
	SourceTask      PointsSource = "task"
	SourceDailyCast PointsSource = "daily_cast"
	SourceScore     PointsSource = "score"
	SourceReferral  PointsSource = "referral"
)

// PointsEvent is one append-only entry in the points ledger
type PointsEvent struct {
	ID        uuid.UUID    `json:"id" ch:"id"`
	FID       int64        `json:"fid" ch:"fid"`
	Source    PointsSource `json:"source" ch:"source"`
	Points    int64        `json:"points" ch:"points"`
	Balance   int64        `json:"balance" ch:"balance"`
	Reference string       `json:"reference,omitempty" ch:"reference"`
	CreatedAt time.Time    `json:"createdAt" ch:"created_at"`
}

// NewPointsEvent stamps a new event for the profile's current balance
func NewPointsEvent(p *Profile, source PointsSource, points int64, reference string) PointsEvent {
	return PointsEvent{
		ID:        uuid.New(),
		FID:       p.ID,
		Source:    source,
		Points:    points,
		Balance:   p.Points,
		Reference: reference,
		CreatedAt: time.Now().UTC(),
	}
}
