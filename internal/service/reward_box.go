package service

import (
	"math/rand"
	"sync"
	"time"

	"github.com/reputation-engine/internal/models"
	"github.com/reputation-engine/internal/types"
)

// BoxRange is the closed interval a tier's award is drawn from
type BoxRange struct {
	Min int64
	Max int64
}

// BoxRanges maps each streak tier to its award range
var BoxRanges = map[int]BoxRange{
	3:  {Min: 1, Max: 10},
	7:  {Min: 20, Max: 40},
	14: {Min: 50, Max: 70},
	30: {Min: 80, Max: 100},
}

// RandomSource draws an integer in [0, n)
type RandomSource interface {
	Int63n(n int64) int64
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Int63n(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Int63n(n)
}

// NewDefaultRandomSource returns a goroutine-safe source seeded from the clock
func NewDefaultRandomSource() RandomSource {
	return &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// OpenBoxResult is returned by a successful box opening
type OpenBoxResult struct {
	PointsAdded int64 `json:"pointsAdded"`
	Tier        int   `json:"tier"`
}

// RewardBoxEngine grants once-per-lifetime randomized awards per streak tier
type RewardBoxEngine struct {
	rnd RandomSource
}

// NewRewardBoxEngine creates an engine. A nil source uses NewDefaultRandomSource.
func NewRewardBoxEngine(rnd RandomSource) *RewardBoxEngine {
	if rnd == nil {
		rnd = NewDefaultRandomSource()
	}
	return &RewardBoxEngine{rnd: rnd}
}

// ValidateTier rejects tiers outside the box table
func ValidateTier(tier int) error {
	if _, ok := BoxRanges[tier]; !ok {
		return types.NewServiceError(types.CodeInvalidTier, "invalid box tier", map[string]interface{}{
			"tier":  tier,
			"tiers": models.BoxTiers,
		})
	}
	return nil
}

// Open checks the streak and claim flag, then draws the award and marks the
// tier claimed. Rejections leave p untouched.
func (e *RewardBoxEngine) Open(p *models.Profile, tier int) (*OpenBoxResult, error) {
	if err := ValidateTier(tier); err != nil {
		return nil, err
	}
	if p.Streak.Current < tier {
		return nil, types.NewServiceError(types.CodeInsufficientStreak, "streak too short for this box", map[string]interface{}{
			"required": tier,
			"current":  p.Streak.Current,
		})
	}
	if p.RewardBoxes.IsClaimed(tier) {
		return nil, types.NewServiceError(types.CodeBoxAlreadyClaimed, "box already claimed", map[string]interface{}{
			"tier": tier,
		})
	}

	r := BoxRanges[tier]
	points := r.Min + e.rnd.Int63n(r.Max-r.Min+1)

	if p.RewardBoxes.Claimed == nil {
		p.RewardBoxes.Claimed = map[int]bool{}
	}
	p.RewardBoxes.Claimed[tier] = true
	p.Award(points)

	return &OpenBoxResult{PointsAdded: points, Tier: tier}, nil
}
