package store

import (
	"context"
	"fmt"

	"evobot/internal/models"

	"github.com/jackc/pgx/v5"
)

// Unified implement db store for the unified log projection.
type Unified struct{}

// NewUnified instance
func NewUnified() *Unified {
	return &Unified{}
}

// Insert is write-once per source event: the unique key
// (strategy_id, ts, event_type) makes repeated sync passes no-ops.
// Returns inserted=false when the row already existed.
func (u *Unified) Insert(ctx context.Context, tx pgx.Tx, rec *models.UnifiedLogRecord) (inserted bool, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Unified.Insert: %w", err)
		}
	}()

	tag, err := tx.Exec(ctx, `
		INSERT INTO unified_log (id, strategy_id, symbol, log_type, event_type, detail, ts)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (strategy_id, ts, event_type) DO NOTHING`,
		rec.ID, rec.StrategyID, rec.Symbol, string(rec.LogType), rec.EventType, rec.Detail, rec.Timestamp,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (u *Unified) Recent(ctx context.Context, tx pgx.Tx, limit int) (out []models.UnifiedLogRecord, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Unified.Recent: %w", err)
		}
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, strategy_id, symbol, log_type, event_type, detail, ts
		FROM unified_log ORDER BY ts DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec   models.UnifiedLogRecord
			lType string
		)
		if err = rows.Scan(&rec.ID, &rec.StrategyID, &rec.Symbol, &lType, &rec.EventType, &rec.Detail, &rec.Timestamp); err != nil {
			return nil, err
		}
		rec.LogType = models.LogType(lType)
		out = append(out, rec)
	}
	return out, rows.Err()
}
