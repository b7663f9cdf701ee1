package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/reputation-engine/internal/logging"
	"github.com/reputation-engine/internal/models"
)

const (
	baseCommissionBP       = 500
	commissionStepBP       = 200
	activeReferralsPerStep = 5
)

// CommissionRateBP returns the referrer's commission in basis points:
// 5% plus 2% for every complete group of five active referrals.
func CommissionRateBP(active int) int64 {
	if active < 0 {
		active = 0
	}
	return baseCommissionBP + commissionStepBP*int64(active/activeReferralsPerStep)
}

// Entitlement is the floor of grinded * rate
func Entitlement(grinded int64, active int) int64 {
	if grinded <= 0 {
		return 0
	}
	return grinded * CommissionRateBP(active) / 10000
}

// SweepResult summarizes one referral sweep
type SweepResult struct {
	UpdatedCount     int   `json:"updatedCount"`
	TotalDistributed int64 `json:"totalDistributed"`
	Referrers        int   `json:"referrers"`
	Failed           int   `json:"failed"`
}

type referralAggregate struct {
	grinded int64
	active  int
}

// ReferralSweeper pays incremental referral commission
type ReferralSweeper struct {
	repo    ProfileRepository
	ledger  PointsLedger
	locker  *IdentityLocker
	workers int
	now     func() time.Time

	// sweeps in this process run one at a time
	runMu sync.Mutex
}

// NewReferralSweeper creates a sweeper. The locker should be the one used by
// ProfileService so payouts never interleave with user actions.
func NewReferralSweeper(repo ProfileRepository, ledger PointsLedger, locker *IdentityLocker, workers int) *ReferralSweeper {
	if locker == nil {
		locker = NewIdentityLocker()
	}
	if workers <= 0 {
		workers = 1
	}
	return &ReferralSweeper{
		repo:    repo,
		ledger:  ledger,
		locker:  locker,
		workers: workers,
		now:     time.Now,
	}
}

// Run aggregates every referred profile by referrer and pays each referrer
// the difference between its entitlement and what it was already paid.
// Active counts are refreshed even when nothing is owed. UpdatedCount is the
// number of referrers that received a payout.
func (s *ReferralSweeper) Run(ctx context.Context) (*SweepResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	logger := logging.FromContext(ctx).WithField("job", "referral_sweep")
	start := s.now()

	referred, err := s.repo.ListReferred(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list referred profiles: %w", err)
	}

	aggregates := make(map[int64]*referralAggregate)
	for _, p := range referred {
		if p.Referral.ReferredBy == nil {
			continue
		}
		agg, ok := aggregates[*p.Referral.ReferredBy]
		if !ok {
			agg = &referralAggregate{}
			aggregates[*p.Referral.ReferredBy] = agg
		}
		agg.grinded += p.GrindedPoints
		if p.Referral.Status == models.ReferralActive {
			agg.active++
		}
	}

	var updated, failed atomic.Int32
	var distributed atomic.Int64

	pool := pond.NewPool(s.workers, pond.WithContext(ctx))
	for referrerID, agg := range aggregates {
		pool.Submit(func() {
			paid, err := s.settle(ctx, referrerID, agg)
			if err != nil {
				failed.Add(1)
				logger.WithField("referrer", referrerID).WithError(err).Error("Failed to settle referrer")
				return
			}
			if paid > 0 {
				updated.Add(1)
				distributed.Add(paid)
			}
		})
	}
	pool.StopAndWait()

	result := &SweepResult{
		UpdatedCount:     int(updated.Load()),
		TotalDistributed: distributed.Load(),
		Referrers:        len(aggregates),
		Failed:           int(failed.Load()),
	}
	logger.WithFields(map[string]interface{}{
		"referrers":   result.Referrers,
		"updated":     result.UpdatedCount,
		"distributed": result.TotalDistributed,
		"failed":      result.Failed,
		"duration":    s.now().Sub(start).String(),
	}).Info("Referral sweep completed")

	return result, nil
}

// settle applies one referrer's payout under its identity lock and returns the amount paid
func (s *ReferralSweeper) settle(ctx context.Context, referrerID int64, agg *referralAggregate) (int64, error) {
	unlock := s.locker.Lock(referrerID)
	defer unlock()

	current, err := s.repo.GetByID(ctx, referrerID)
	if err != nil {
		return 0, err
	}
	if current == nil {
		logging.FromContext(ctx).WithField("referrer", referrerID).Warn("Referrer profile missing, skipping")
		return 0, nil
	}

	p := current.Clone()
	// pending -> active never reverts, so a lower count comes from an older snapshot
	if agg.active > p.Referral.Stats.ActiveCount {
		p.Referral.Stats.ActiveCount = agg.active
	}

	entitlement := Entitlement(agg.grinded, agg.active)
	delta := entitlement - p.Referral.Stats.TotalCommissionPaid
	if delta > 0 {
		// commission goes to points only so it never feeds another referrer's base
		p.Points += delta
		p.Referral.Stats.TotalCommissionPaid = entitlement
	} else {
		delta = 0
	}

	if delta == 0 && p.Referral.Stats.ActiveCount == current.Referral.Stats.ActiveCount {
		return 0, nil
	}

	p.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, p); err != nil {
		return 0, err
	}

	if delta > 0 && s.ledger != nil {
		ev := models.NewPointsEvent(p, models.SourceReferral, delta, "")
		if err := s.ledger.Record(ctx, ev); err != nil {
			logging.FromContext(ctx).WithError(err).Warn("Failed to append points ledger")
		}
	}
	return delta, nil
}
