package storage

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputation-engine/internal/config"
	"github.com/reputation-engine/internal/models"
	"github.com/reputation-engine/internal/types"
)

func newTestPostgres(t *testing.T) *PostgresDB {
	t.Helper()
	skipIntegration(t)

	cfg := &config.PostgresConfig{
		Host:           testEnv("POSTGRES_HOST", "localhost"),
		Port:           testEnv("POSTGRES_PORT", "5432"),
		Database:       "reputation",
		User:           "reputation",
		Password:       os.Getenv("POSTGRES_PASSWORD"),
		MaxConnections: 4,
	}

	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	require.NoError(t, NewMigrator(cfg.URL(), "../../migrations/postgres").Up())
	return db
}

// testFID returns an id unlikely to collide with rows left by earlier runs
func testFID() int64 {
	return int64(uuid.New().ID()) + 1
}

func TestNewPostgresDB(t *testing.T) {
	db := newTestPostgres(t)
	assert.NoError(t, db.Ping(testContext(t)))
	assert.NotNil(t, db.Pool())
}

func TestProfileRepository_CreateGetUpdate(t *testing.T) {
	db := newTestPostgres(t)
	repo := NewProfileRepository(db)
	ctx := testContext(t)

	referrer := models.NewProfile(testFID(), "0xAAA", uuid.NewString()[:8], nil)
	require.NoError(t, repo.Create(ctx, referrer))

	refID := referrer.ID
	p := models.NewProfile(testFID(), "0xBBB", uuid.NewString()[:8], &refID)
	require.NoError(t, repo.Create(ctx, p))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "0xbbb", got.Address)
	require.NotNil(t, got.Referral.ReferredBy)
	assert.Equal(t, refID, *got.Referral.ReferredBy)
	assert.Equal(t, models.ReferralPending, got.Referral.Status)
	assert.NotNil(t, got.RewardBoxes.Claimed)
	assert.Nil(t, got.Collectible)

	now := time.Now().UTC().Truncate(time.Microsecond)
	got.Award(40)
	got.Streak.Current = 3
	got.Streak.LastCheckIn = &now
	got.RewardBoxes.Claimed[3] = true
	got.Referral.Status = models.ReferralActive
	got.DailyActions.CompletedTasks = append(got.DailyActions.CompletedTasks, "follow_account")
	got.Collectible = &models.Collectible{TokenID: "42"}
	got.Referral.ReferredBy = nil
	require.NoError(t, repo.Update(ctx, got))

	again, err := repo.GetByReferralCode(ctx, p.Referral.Code)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, int64(40), again.Points)
	assert.Equal(t, int64(40), again.GrindedPoints)
	assert.Equal(t, 3, again.Streak.Current)
	assert.True(t, now.Equal(*again.Streak.LastCheckIn))
	assert.True(t, again.RewardBoxes.IsClaimed(3))
	assert.True(t, again.DailyActions.HasCompleted("follow_account"))
	assert.Equal(t, "42", again.Collectible.TokenID)
	require.NotNil(t, again.Referral.ReferredBy, "referrer link is immutable")

	referred, err := repo.ListReferred(ctx)
	require.NoError(t, err)
	var found bool
	for _, r := range referred {
		if r.ID == p.ID {
			found = true
		}
		assert.NotNil(t, r.Referral.ReferredBy)
	}
	assert.True(t, found)
}

func TestProfileRepository_MissingReturnsNil(t *testing.T) {
	repo := NewProfileRepository(newTestPostgres(t))
	ctx := testContext(t)

	p, err := repo.GetByID(ctx, -1)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = repo.GetByReferralCode(ctx, "NO-SUCH-CODE")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestProfileRepository_DuplicateReferralCode(t *testing.T) {
	repo := NewProfileRepository(newTestPostgres(t))
	ctx := testContext(t)

	code := uuid.NewString()[:8]
	require.NoError(t, repo.Create(ctx, models.NewProfile(testFID(), "", code, nil)))

	err := repo.Create(ctx, models.NewProfile(testFID(), "", code, nil))
	assert.ErrorIs(t, err, types.ErrReferralCodeTaken)
}

func TestProfileRepository_DuplicateFIDAndMissingUpdate(t *testing.T) {
	repo := NewProfileRepository(newTestPostgres(t))
	ctx := testContext(t)

	fid := testFID()
	require.NoError(t, repo.Create(ctx, models.NewProfile(fid, "", uuid.NewString()[:8], nil)))

	err := repo.Create(ctx, models.NewProfile(fid, "", uuid.NewString()[:8], nil))
	assert.ErrorIs(t, err, types.ErrProfileExists)

	err = repo.Update(ctx, models.NewProfile(testFID(), "", "", nil))
	assert.Error(t, err)
}
