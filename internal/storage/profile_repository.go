package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/reputation-engine/internal/errors"
	"github.com/reputation-engine/internal/models"
	"github.com/reputation-engine/internal/types"
)

const (
	uniqueViolation       = "23505"
	profilesPKey          = "profiles_pkey"
	profilesReferralCodes = "profiles_referral_code_key"
)

const profileColumns = `
	fid, address, points, grinded_points, streak,
	referral_code, referred_by, referral_status, referral_stats,
	reward_boxes, daily_actions, collectible, created_at, updated_at
`

// ProfileRepository stores one row per identity in the profiles table.
// Streak, referral stats, reward boxes, daily actions and the collectible
// live in JSONB columns; database failures come back as DATABASE_ERROR.
type ProfileRepository struct {
	db *PostgresDB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *PostgresDB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// profileJSON holds the marshaled JSONB columns of a profile
type profileJSON struct {
	streak        []byte
	referralStats []byte
	rewardBoxes   []byte
	dailyActions  []byte
	collectible   []byte
}

func marshalProfile(p *models.Profile) (*profileJSON, error) {
	var out profileJSON
	var err error

	if out.streak, err = json.Marshal(p.Streak); err != nil {
		return nil, fmt.Errorf("failed to marshal streak: %w", err)
	}
	if out.referralStats, err = json.Marshal(p.Referral.Stats); err != nil {
		return nil, fmt.Errorf("failed to marshal referral stats: %w", err)
	}
	if out.rewardBoxes, err = json.Marshal(p.RewardBoxes); err != nil {
		return nil, fmt.Errorf("failed to marshal reward boxes: %w", err)
	}
	if out.dailyActions, err = json.Marshal(p.DailyActions); err != nil {
		return nil, fmt.Errorf("failed to marshal daily actions: %w", err)
	}
	if p.Collectible != nil {
		if out.collectible, err = json.Marshal(p.Collectible); err != nil {
			return nil, fmt.Errorf("failed to marshal collectible: %w", err)
		}
	}
	return &out, nil
}

// Create inserts a new profile. A referral code collision returns
// types.ErrReferralCodeTaken; a profile that already exists for the fid
// returns types.ErrProfileExists.
func (r *ProfileRepository) Create(ctx context.Context, p *models.Profile) error {
	cols, err := marshalProfile(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.Pool().Exec(ctx, query,
		p.ID,
		strings.ToLower(p.Address),
		p.Points,
		p.GrindedPoints,
		cols.streak,
		p.Referral.Code,
		p.Referral.ReferredBy,
		string(p.Referral.Status),
		cols.referralStats,
		cols.rewardBoxes,
		cols.dailyActions,
		cols.collectible,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case profilesReferralCodes:
				return types.ErrReferralCodeTaken
			case profilesPKey:
				return types.ErrProfileExists
			}
		}
		return apperrors.NewDatabaseError("create profile", err)
	}

	return nil
}

// Update writes every mutable field. referred_by and referral_code never change after creation.
func (r *ProfileRepository) Update(ctx context.Context, p *models.Profile) error {
	cols, err := marshalProfile(p)
	if err != nil {
		return err
	}

	query := `
		UPDATE profiles SET
			address = $2,
			points = $3,
			grinded_points = $4,
			streak = $5,
			referral_status = $6,
			referral_stats = $7,
			reward_boxes = $8,
			daily_actions = $9,
			collectible = $10,
			updated_at = $11
		WHERE fid = $1
	`

	tag, err := r.db.Pool().Exec(ctx, query,
		p.ID,
		strings.ToLower(p.Address),
		p.Points,
		p.GrindedPoints,
		cols.streak,
		string(p.Referral.Status),
		cols.referralStats,
		cols.rewardBoxes,
		cols.dailyActions,
		cols.collectible,
		p.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewDatabaseError("update profile", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile not found: %d", p.ID)
	}

	return nil
}

// GetByID retrieves a profile by identity id. Returns nil, nil when absent.
func (r *ProfileRepository) GetByID(ctx context.Context, id int64) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE fid = $1`
	return r.getOne(ctx, query, id)
}

// GetByReferralCode retrieves the profile owning code. Returns nil, nil when absent.
func (r *ProfileRepository) GetByReferralCode(ctx context.Context, code string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE referral_code = $1`
	return r.getOne(ctx, query, code)
}

func (r *ProfileRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Profile, error) {
	p, err := scanProfile(r.db.Pool().QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewDatabaseError("get profile", err)
	}
	return p, nil
}

// ListReferred returns every profile that has a referrer
func (r *ProfileRepository) ListReferred(ctx context.Context) ([]*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE referred_by IS NOT NULL ORDER BY fid`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list referred profiles", err)
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("iterate referred profiles", err)
	}

	return profiles, nil
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	var status string
	var cols profileJSON

	err := row.Scan(
		&p.ID,
		&p.Address,
		&p.Points,
		&p.GrindedPoints,
		&cols.streak,
		&p.Referral.Code,
		&p.Referral.ReferredBy,
		&status,
		&cols.referralStats,
		&cols.rewardBoxes,
		&cols.dailyActions,
		&cols.collectible,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Referral.Status = models.ReferralStatus(status)

	if err := json.Unmarshal(cols.streak, &p.Streak); err != nil {
		return nil, fmt.Errorf("failed to unmarshal streak: %w", err)
	}
	if err := json.Unmarshal(cols.referralStats, &p.Referral.Stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal referral stats: %w", err)
	}
	if err := json.Unmarshal(cols.rewardBoxes, &p.RewardBoxes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reward boxes: %w", err)
	}
	if err := json.Unmarshal(cols.dailyActions, &p.DailyActions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal daily actions: %w", err)
	}
	if len(cols.collectible) > 0 {
		var c models.Collectible
		if err := json.Unmarshal(cols.collectible, &c); err != nil {
			return nil, fmt.Errorf("failed to unmarshal collectible: %w", err)
		}
		p.Collectible = &c
	}

	if p.RewardBoxes.Claimed == nil {
		p.RewardBoxes.Claimed = map[int]bool{}
	}
	if p.DailyActions.CompletedTasks == nil {
		p.DailyActions.CompletedTasks = []string{}
	}
	if p.DailyActions.CastHistory == nil {
		p.DailyActions.CastHistory = []models.CastHistEntry{}
	}

	return &p, nil
}
