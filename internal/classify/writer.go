package classify

import (
	"context"
	"fmt"

	"evobot/internal/models"
	"evobot/internal/store"
	"evobot/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Writer projects signals and evolution records into the unified log.
// Inserts are keyed on (strategy_id, ts, event_type) — повторный sync не
// создаёт дублей.
type Writer struct {
	unified *store.Unified
}

func NewWriter(unified *store.Unified) *Writer {
	return &Writer{unified: unified}
}

// LogTypeFor normalizes a trade type for downstream consumers.
func LogTypeFor(t models.TradeType) models.LogType {
	if t.Validation() {
		return models.LogValidation
	}
	return models.LogRealTrading
}

func (w *Writer) WriteSignalTx(ctx context.Context, tx pgx.Tx, sig models.TradeSignal) error {
	return w.insert(ctx, tx, &models.UnifiedLogRecord{
		ID:         uuid.NewString(),
		StrategyID: sig.StrategyID,
		Symbol:     sig.Symbol,
		LogType:    LogTypeFor(sig.TradeType),
		EventType:  string(sig.TradeType),
		Detail:     fmt.Sprintf("%s %s %.8f @ %.8f score=%.1f", sig.Side, sig.Symbol, sig.Quantity, sig.Price, sig.StrategyScore),
		Timestamp:  sig.Timestamp,
	})
}

// WriteSettlementTx projects the execution outcome of a signal. Keyed on the
// signal's own ts with event_type "settlement", so a resent settlement is a
// no-op too.
func (w *Writer) WriteSettlementTx(ctx context.Context, tx pgx.Tx, sig models.TradeSignal) error {
	return w.insert(ctx, tx, &models.UnifiedLogRecord{
		ID:         uuid.NewString(),
		StrategyID: sig.StrategyID,
		Symbol:     sig.Symbol,
		LogType:    LogTypeFor(sig.TradeType),
		EventType:  "settlement",
		Detail:     fmt.Sprintf("%s executed=%t return=%.4f", sig.TradeType, sig.Executed, sig.RealizedReturn),
		Timestamp:  sig.Timestamp,
	})
}

func (w *Writer) WriteEvolutionTx(ctx context.Context, tx pgx.Tx, symbol string, rec models.EvolutionRecord) error {
	return w.insert(ctx, tx, &models.UnifiedLogRecord{
		ID:         uuid.NewString(),
		StrategyID: rec.StrategyID,
		Symbol:     symbol,
		LogType:    models.LogEvolution,
		EventType:  string(rec.EvolutionType),
		Detail:     fmt.Sprintf("gen=%d cycle=%d score %.1f -> %.1f", rec.Generation, rec.Cycle, rec.ScoreBefore, rec.ScoreAfter),
		Timestamp:  rec.CreatedAt,
	})
}

func (w *Writer) insert(ctx context.Context, tx pgx.Tx, rec *models.UnifiedLogRecord) error {
	inserted, err := w.unified.Insert(ctx, tx, rec)
	if err != nil {
		return err
	}
	if !inserted {
		logger.Info("unified log entry %s/%s at %s already present", rec.StrategyID, rec.EventType, rec.Timestamp)
	}
	return nil
}
