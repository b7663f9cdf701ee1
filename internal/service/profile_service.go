package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reputation-engine/internal/logging"
	"github.com/reputation-engine/internal/models"
	"github.com/reputation-engine/internal/types"
)

// ProfileRepository persists profiles. Lookups return nil, nil when absent.
type ProfileRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Profile, error)
	GetByReferralCode(ctx context.Context, code string) (*models.Profile, error)
	Create(ctx context.Context, p *models.Profile) error
	Update(ctx context.Context, p *models.Profile) error
	ListReferred(ctx context.Context) ([]*models.Profile, error)
}

// PointsLedger records point awards for auditing
type PointsLedger interface {
	Record(ctx context.Context, events ...models.PointsEvent) error
}

const referralCodeAttempts = 5

// ProfileService exposes the profile operations: creation, score
// recalculation, check-ins, boxes, tasks and daily casts.
type ProfileService struct {
	repo        ProfileRepository
	aggregation *AggregationService
	streaks     *StreakTracker
	boxes       *RewardBoxEngine
	ledger      PointsLedger
	locker      *IdentityLocker
	now         func() time.Time
}

// NewProfileService creates a profile service. ledger may be nil.
func NewProfileService(
	repo ProfileRepository,
	aggregation *AggregationService,
	streaks *StreakTracker,
	boxes *RewardBoxEngine,
	ledger PointsLedger,
	locker *IdentityLocker,
) *ProfileService {
	if locker == nil {
		locker = NewIdentityLocker()
	}
	return &ProfileService{
		repo:        repo,
		aggregation: aggregation,
		streaks:     streaks,
		boxes:       boxes,
		ledger:      ledger,
		locker:      locker,
		now:         time.Now,
	}
}

// WithClock overrides the time source
func (s *ProfileService) WithClock(now func() time.Time) *ProfileService {
	s.now = now
	return s
}

// Locker returns the identity locker shared with the referral sweep
func (s *ProfileService) Locker() *IdentityLocker {
	return s.locker
}

func validateIdentity(id int64) error {
	if id <= 0 {
		return types.NewServiceError(types.CodeInvalidInput, "identity id is required", map[string]interface{}{"field": "fid"})
	}
	return nil
}

// GetProfile loads an existing profile
func (s *ProfileService) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %d: %w", id, err)
	}
	if p == nil {
		return nil, types.NewServiceError(types.CodeProfileNotFound, "profile not found", map[string]interface{}{"fid": id})
	}
	return p, nil
}

// GetOrCreateProfile returns the profile for id, creating it on first contact.
// The referral code is only resolved at creation; an unknown code or a self
// referral is ignored.
func (s *ProfileService) GetOrCreateProfile(ctx context.Context, id int64, address, referralCode string) (*models.Profile, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	unlock := s.locker.Lock(id)
	defer unlock()

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %d: %w", id, err)
	}
	if existing != nil {
		return existing, nil
	}

	logger := logging.FromContext(ctx).WithField("fid", id)
	referredBy := s.resolveReferrer(ctx, id, referralCode, logger)

	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		p := models.NewProfile(id, addr, NewReferralCode(), referredBy)
		err = s.repo.Create(ctx, p)
		if err == nil {
			logger.WithField("referred", referredBy != nil).Info("Created profile")
			return p, nil
		}
		if errors.Is(err, types.ErrProfileExists) {
			// another process created it between our read and insert
			return s.GetProfile(ctx, id)
		}
		if !errors.Is(err, types.ErrReferralCodeTaken) {
			return nil, fmt.Errorf("failed to create profile %d: %w", id, err)
		}
	}
	return nil, fmt.Errorf("failed to create profile %d: %w", id, err)
}

func (s *ProfileService) resolveReferrer(ctx context.Context, id int64, code string, logger *logging.Logger) *int64 {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	referrer, err := s.repo.GetByReferralCode(ctx, code)
	if err != nil {
		logger.WithError(err).Warn("Referral code lookup failed")
		return nil
	}
	if referrer == nil || referrer.ID == id {
		logger.WithField("code", code).Debug("Ignoring unusable referral code")
		return nil
	}
	ref := referrer.ID
	return &ref
}

// NewReferralCode returns an 8 character uppercase code
func NewReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// RecalculateScore aggregates the profile's address and raises its points to
// the new score. Points are never lowered.
func (s *ProfileService) RecalculateScore(ctx context.Context, id int64) (*models.Profile, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}
	current, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	entry, err := s.aggregation.Aggregate(ctx, current.Address, id)
	if err != nil {
		return nil, err
	}

	var updated *models.Profile
	err = s.mutate(ctx, id, func(p *models.Profile) (*models.PointsEvent, error) {
		before := p.Points
		p.Points = CalculateScore(p.Points, ScoreInput{
			Activity:    entry.Activity,
			CastCount:   entry.Social.CastCount,
			BadgeCount:  entry.Holdings.BadgeCount(),
			WalletValue: entry.Holdings.ValueUSD,
		})
		updated = p
		if gained := p.Points - before; gained > 0 {
			ev := models.NewPointsEvent(p, models.SourceScore, gained, p.Address)
			return &ev, nil
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CheckIn records today's check-in for id
func (s *ProfileService) CheckIn(ctx context.Context, id int64, proofRef string) (*CheckInResult, error) {
	var result *CheckInResult
	err := s.mutate(ctx, id, func(p *models.Profile) (*models.PointsEvent, error) {
		res, err := s.streaks.CheckIn(p, s.now())
		if err != nil {
			return nil, err
		}
		result = res
		ev := models.NewPointsEvent(p, models.SourceCheckIn, res.PointsAdded, proofRef)
		return &ev, nil
	})
	return result, err
}

// OpenBox opens the reward box for tier
func (s *ProfileService) OpenBox(ctx context.Context, id int64, tier int, proofRef string) (*OpenBoxResult, error) {
	if err := ValidateTier(tier); err != nil {
		return nil, err
	}
	var result *OpenBoxResult
	err := s.mutate(ctx, id, func(p *models.Profile) (*models.PointsEvent, error) {
		res, err := s.boxes.Open(p, tier)
		if err != nil {
			return nil, err
		}
		result = res
		ev := models.NewPointsEvent(p, models.SourceRewardBox, res.PointsAdded, proofRef)
		return &ev, nil
	})
	return result, err
}

// ClaimTask rewards a one-time task
func (s *ProfileService) ClaimTask(ctx context.Context, id int64, taskKey string) (*TaskResult, error) {
	var result *TaskResult
	err := s.mutate(ctx, id, func(p *models.Profile) (*models.PointsEvent, error) {
		res, err := ClaimTask(p, taskKey)
		if err != nil {
			return nil, err
		}
		result = res
		ev := models.NewPointsEvent(p, models.SourceTask, res.PointsAdded, res.Task)
		return &ev, nil
	})
	return result, err
}

// ClaimDailyCast rewards today's cast. Engagement is read from the social
// provider, which also confirms the cast belongs to id.
func (s *ProfileService) ClaimDailyCast(ctx context.Context, id int64, castHash string) (*TaskResult, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}
	cast, err := s.aggregation.LookupCast(ctx, id, castHash)
	if err != nil {
		return nil, err
	}

	var result *TaskResult
	err = s.mutate(ctx, id, func(p *models.Profile) (*models.PointsEvent, error) {
		res, err := ClaimDailyCast(p, cast, s.now())
		if err != nil {
			return nil, err
		}
		result = res
		ev := models.NewPointsEvent(p, models.SourceDailyCast, res.PointsAdded, cast.Hash)
		return &ev, nil
	})
	return result, err
}

// LinkCollectible attaches a minted token to the profile
func (s *ProfileService) LinkCollectible(ctx context.Context, id int64, tokenID, imageURL string) (*models.Profile, error) {
	var updated *models.Profile
	err := s.mutate(ctx, id, func(p *models.Profile) (*models.PointsEvent, error) {
		if err := LinkCollectible(p, tokenID, imageURL); err != nil {
			return nil, err
		}
		updated = p
		return nil, nil
	})
	return updated, err
}

// mutate loads id under its lock, applies fn to a copy and persists the copy.
// When fn rejects, nothing is written. The returned event is appended to the
// points ledger once the profile is saved.
func (s *ProfileService) mutate(ctx context.Context, id int64, fn func(p *models.Profile) (*models.PointsEvent, error)) error {
	if err := validateIdentity(id); err != nil {
		return err
	}

	unlock := s.locker.Lock(id)
	defer unlock()

	current, err := s.GetProfile(ctx, id)
	if err != nil {
		return err
	}

	p := current.Clone()
	event, err := fn(p)
	if err != nil {
		return err
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to save profile %d: %w", id, err)
	}
	if event != nil {
		s.record(ctx, *event)
	}
	return nil
}

// record appends to the points ledger. Failures are logged only.
func (s *ProfileService) record(ctx context.Context, events ...models.PointsEvent) {
	if s.ledger == nil || len(events) == 0 {
		return
	}
	if err := s.ledger.Record(ctx, events...); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to append points ledger")
	}
}
