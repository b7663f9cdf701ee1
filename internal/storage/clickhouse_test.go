package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputation-engine/internal/config"
	"github.com/reputation-engine/internal/models"
)

type recordingExecer struct {
	statements []string
	failOn     int
}

func (r *recordingExecer) Exec(_ context.Context, query string, _ ...interface{}) error {
	r.statements = append(r.statements, query)
	if r.failOn > 0 && len(r.statements) == r.failOn {
		return errors.New("syntax error")
	}
	return nil
}

func TestSplitSQLStatements(t *testing.T) {
	content := `-- header comment
CREATE TABLE a (
    id Int64
) ENGINE = MergeTree()
ORDER BY id;

-- second
ALTER TABLE a ADD COLUMN IF NOT EXISTS b String;
SELECT 1`

	stmts := splitSQLStatements(content)
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.NotContains(t, stmts[0], ";")
	assert.Equal(t, "ALTER TABLE a ADD COLUMN IF NOT EXISTS b String", stmts[1])
	assert.Equal(t, "SELECT 1", stmts[2])
}

func TestRunClickHouseMigrations_AppliesInOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "002_b.sql"), []byte("SELECT 2;"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_a.sql"), []byte("SELECT 1;\nSELECT 11;"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o600))

	exec := &recordingExecer{}
	applied, err := RunClickHouseMigrations(testContext(t), exec, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, []string{"SELECT 1", "SELECT 11", "SELECT 2"}, exec.statements)
}

func TestRunClickHouseMigrations_StopsOnFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_a.sql"), []byte("SELECT 1;"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "002_b.sql"), []byte("BROKEN;"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "003_c.sql"), []byte("SELECT 3;"), 0o600))

	exec := &recordingExecer{failOn: 2}
	applied, err := RunClickHouseMigrations(testContext(t), exec, dir)
	assert.Error(t, err)
	assert.Equal(t, 1, applied)
	assert.Len(t, exec.statements, 2)
}

func TestRunClickHouseMigrations_MissingDir(t *testing.T) {
	_, err := RunClickHouseMigrations(testContext(t), &recordingExecer{}, filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func newTestClickHouse(t *testing.T) *ClickHouseDB {
	t.Helper()
	skipIntegration(t)

	db, err := NewClickHouseDB(&config.ClickHouseConfig{
		Host:     testEnv("CLICKHOUSE_HOST", "localhost"),
		Port:     testEnv("CLICKHOUSE_PORT", "9000"),
		Database: "reputation",
		User:     "default",
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
	})
	if err != nil {
		t.Skipf("Skipping test - ClickHouse not available: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	_, err = RunClickHouseMigrations(testContext(t), db, "../../migrations/clickhouse")
	require.NoError(t, err)
	return db
}

func TestPointsLedgerRepository_RecordAndHistory(t *testing.T) {
	db := newTestClickHouse(t)
	repo := NewPointsLedgerRepository(db)
	ctx := testContext(t)

	fid := int64(uuid.New().ID())
	p := models.NewProfile(fid, "0xabc", "CODE0001", nil)
	p.Award(10)
	first := models.NewPointsEvent(p, models.SourceCheckIn, 10, "day-1")
	p.Award(40)
	second := models.NewPointsEvent(p, models.SourceRewardBox, 40, "tier-7")
	second.CreatedAt = first.CreatedAt.Add(1)

	require.NoError(t, repo.Record(ctx, first, second))
	require.NoError(t, repo.Record(ctx))

	history, err := repo.History(ctx, fid, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.SourceRewardBox, history[0].Source)
	assert.Equal(t, int64(50), history[0].Balance)
	assert.Equal(t, first.ID, history[1].ID)
}
