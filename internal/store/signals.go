package store

import (
	"context"
	"fmt"
	"time"

	"evobot/internal/models"

	"github.com/jackc/pgx/v5"
)

// Signals implement db store
type Signals struct{}

// NewSignals instance
func NewSignals() *Signals {
	return &Signals{}
}

const signalColumns = `id, strategy_id, symbol, side, price, quantity, confidence, ts,
	trade_type, is_validation, executed, realized_return, cycle_id, strategy_score`

// Insert дедуплицируется по натуральному ключу (strategy_id, ts, side): id у
// повторной доставки другой, а сигнал тот же. Returns inserted=false when the
// row already existed.
func (s *Signals) Insert(ctx context.Context, tx pgx.Tx, sig *models.TradeSignal) (inserted bool, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Signals.Insert: %w", err)
		}
	}()

	tag, err := tx.Exec(ctx, `
		INSERT INTO trade_signals (`+signalColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (strategy_id, ts, side) DO NOTHING`,
		sig.ID, sig.StrategyID, sig.Symbol, string(sig.Side),
		sig.Price, sig.Quantity, sig.Confidence, sig.Timestamp,
		string(sig.TradeType), sig.IsValidation,
		sig.Executed, sig.RealizedReturn, sig.CycleID, sig.StrategyScore,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Signals) GetByID(ctx context.Context, tx pgx.Tx, id string) (sig *models.TradeSignal, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Signals.GetByID: %w", err)
		}
	}()

	row := tx.QueryRow(ctx, `
		SELECT `+signalColumns+`
		FROM trade_signals WHERE id = $1`, id)
	return scanSignal(row)
}

// MarkSettled records the execution outcome reported by the execution layer.
// Idempotent: repeating a settlement rewrites the same values.
func (s *Signals) MarkSettled(ctx context.Context, tx pgx.Tx, id string, executed bool, realizedReturn float64) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Signals.MarkSettled: %w", err)
		}
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE trade_signals SET executed=$2, realized_return=$3 WHERE id=$1`,
		id, executed, realizedReturn,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ExecutedSince returns the executed signals feeding the outcome aggregator.
// Pending/unexecuted signals never contribute to scoring.
func (s *Signals) ExecutedSince(ctx context.Context, tx pgx.Tx, strategyID string, since time.Time) (out []models.TradeSignal, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Signals.ExecutedSince: %w", err)
		}
	}()

	rows, err := tx.Query(ctx, `
		SELECT `+signalColumns+`
		FROM trade_signals
		WHERE strategy_id = $1 AND executed AND ts >= $2
		ORDER BY ts ASC`, strategyID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		sig, sErr := scanSignal(rows)
		if sErr != nil {
			return nil, sErr
		}
		out = append(out, *sig)
	}
	return out, rows.Err()
}

func scanSignal(row pgx.Row) (*models.TradeSignal, error) {
	var (
		sig   models.TradeSignal
		side  string
		tType string
	)
	err := row.Scan(
		&sig.ID, &sig.StrategyID, &sig.Symbol, &side,
		&sig.Price, &sig.Quantity, &sig.Confidence, &sig.Timestamp,
		&tType, &sig.IsValidation,
		&sig.Executed, &sig.RealizedReturn, &sig.CycleID, &sig.StrategyScore,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	sig.Side = models.Side(side)
	sig.TradeType = models.TradeType(tType)
	return &sig, nil
}
