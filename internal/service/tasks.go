package service

import (
	"strings"
	"time"

	"github.com/reputation-engine/internal/models"
	"github.com/reputation-engine/internal/types"
)

// TaskRewards is the fixed table of one-time tasks
var TaskRewards = map[string]int64{
	"follow_account":   50,
	"join_channel":     50,
	"share_app":        25,
	"mint_collectible": 100,
	"link_wallet":      25,
}

const (
	dailyCastBasePoints     = 5
	dailyCastMaxBonusPoints = 45
	castHistoryLimit        = 30
)

// TaskResult is returned when a task or daily cast is rewarded
type TaskResult struct {
	PointsAdded int64  `json:"pointsAdded"`
	Task        string `json:"task,omitempty"`
}

// ClaimTask rewards a one-time task. Unknown keys and repeats are rejected.
func ClaimTask(p *models.Profile, taskKey string) (*TaskResult, error) {
	taskKey = strings.TrimSpace(taskKey)
	if taskKey == "" {
		return nil, types.NewServiceError(types.CodeInvalidInput, "task key is required", map[string]interface{}{"field": "task"})
	}
	points, ok := TaskRewards[taskKey]
	if !ok {
		return nil, types.NewServiceError(types.CodeUnknownTask, "unknown task", map[string]interface{}{"task": taskKey})
	}
	if p.DailyActions.HasCompleted(taskKey) {
		return nil, types.NewServiceError(types.CodeTaskAlreadyClaimed, "task already claimed", map[string]interface{}{"task": taskKey})
	}

	p.DailyActions.CompletedTasks = append(p.DailyActions.CompletedTasks, taskKey)
	p.Award(points)
	return &TaskResult{PointsAdded: points, Task: taskKey}, nil
}

// CastEngagementPoints is the weighted engagement of a cast: recasts count double
func CastEngagementPoints(c types.BestPost) int64 {
	return c.Likes + 2*c.Recasts + c.Replies
}

// ClaimDailyCast rewards one cast per UTC day. The award is a base amount
// plus the weighted engagement, capped.
func ClaimDailyCast(p *models.Profile, cast types.BestPost, now time.Time) (*TaskResult, error) {
	if strings.TrimSpace(cast.Hash) == "" {
		return nil, types.NewServiceError(types.CodeInvalidInput, "cast hash is required", map[string]interface{}{"field": "castHash"})
	}
	today := UTCDay(now)
	if p.DailyActions.LastRewardedCastDate == today {
		return nil, types.NewServiceError(types.CodeDailyCastAlreadyRewarded, "a cast was already rewarded today", map[string]interface{}{"date": today})
	}

	engagement := CastEngagementPoints(cast)
	if engagement < 0 {
		engagement = 0
	}
	bonus := engagement
	if bonus > dailyCastMaxBonusPoints {
		bonus = dailyCastMaxBonusPoints
	}
	points := int64(dailyCastBasePoints) + bonus

	p.DailyActions.LastRewardedCastDate = today
	p.DailyActions.CastHistory = append(p.DailyActions.CastHistory, models.CastHistEntry{
		Hash:       cast.Hash,
		Points:     points,
		Engagement: engagement,
		Date:       today,
	})
	if n := len(p.DailyActions.CastHistory); n > castHistoryLimit {
		p.DailyActions.CastHistory = p.DailyActions.CastHistory[n-castHistoryLimit:]
	}
	p.Award(points)

	return &TaskResult{PointsAdded: points, Task: "daily_cast"}, nil
}

// LinkCollectible attaches a minted token to the profile
func LinkCollectible(p *models.Profile, tokenID, imageURL string) error {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return types.NewServiceError(types.CodeInvalidInput, "token id is required", map[string]interface{}{"field": "tokenId"})
	}
	p.Collectible = &models.Collectible{TokenID: tokenID, ImageURL: strings.TrimSpace(imageURL)}
	return nil
}
