package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/reputation-engine/internal/models"
)

// PointsLedgerRepository appends points events to ClickHouse
type PointsLedgerRepository struct {
	db *ClickHouseDB
}

// NewPointsLedgerRepository creates a ledger repository
func NewPointsLedgerRepository(db *ClickHouseDB) *PointsLedgerRepository {
	return &PointsLedgerRepository{db: db}
}

// Record inserts events in a single batch
func (r *PointsLedgerRepository) Record(ctx context.Context, events ...models.PointsEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO points_events (id, fid, source, points, balance, reference, created_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, e := range events {
		if err := batch.Append(
			e.ID,
			e.FID,
			string(e.Source),
			e.Points,
			e.Balance,
			e.Reference,
			e.CreatedAt,
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append event %s: %w", e.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// History returns the most recent events for an identity, newest first
func (r *PointsLedgerRepository) History(ctx context.Context, fid int64, limit int) ([]models.PointsEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Conn().Query(ctx, `
		SELECT id, fid, source, points, balance, reference, created_at
		FROM points_events
		WHERE fid = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, fid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query points history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []models.PointsEvent
	for rows.Next() {
		var e models.PointsEvent
		var source string
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.FID, &source, &e.Points, &e.Balance, &e.Reference, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan points event: %w", err)
		}
		e.Source = models.PointsSource(source)
		e.CreatedAt = createdAt.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating points events: %w", err)
	}
	return events, nil
}
