package classify

import (
	"context"
	"fmt"
	"time"

	"evobot/internal/models"
	healthsvc "evobot/internal/modules/health/service"
	"evobot/internal/scoring"
	"evobot/internal/store"
	"evobot/pkg/db"
	"evobot/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Decide is the classification rule. A strategy trades real money only when
// it both carries the qualified_for_trading flag and sits in the real_trading
// state; everything else is a validation signal, whatever the caller hinted.
func Decide(s models.Strategy, p models.ProposedSignal) models.TradeSignal {
	sig := models.TradeSignal{
		ID:            uuid.NewString(),
		StrategyID:    s.ID,
		Symbol:        p.Symbol,
		Side:          p.Side,
		Price:         p.Price,
		Quantity:      p.Quantity,
		Confidence:    p.Confidence,
		Timestamp:     p.Timestamp,
		CycleID:       p.CycleID,
		StrategyScore: scoring.Clamp(s.FinalScore),
	}
	if sig.Timestamp.IsZero() {
		sig.Timestamp = time.Now().UTC()
	}

	if s.QualifiedForTrading && s.State == models.StateRealTrading {
		sig.TradeType = models.TradeRealTrading
		sig.IsValidation = false
		return sig
	}

	switch p.Origin {
	case models.OriginScoreCheck:
		sig.TradeType = models.TradeScoreVerification
	case models.OriginPostMutation:
		sig.TradeType = models.TradeOptimizationValidation
	case models.OriginInitialization:
		sig.TradeType = models.TradeInitializationValidation
	default:
		sig.TradeType = models.TradePeriodicValidation
	}
	sig.IsValidation = true
	return sig
}

// Repair fixes a contradictory record. Once a trade ran on real money that is
// the ground truth: real_trading+is_validation=true becomes is_validation=
// false, never the reverse.
func Repair(sig models.TradeSignal) (models.TradeSignal, bool) {
	want := sig.TradeType.Validation()
	if sig.IsValidation == want {
		return sig, false
	}
	sig.IsValidation = want
	return sig, true
}

// Classifier is the single authorized classification path. Any signal
// reaching storage goes through Classify; there is no second entrance.
type Classifier struct {
	tm         db.TxManager
	strategies *store.Strategies
	signals    *store.Signals
	writer     *Writer
	state      *healthsvc.State
}

func NewClassifier(tm db.TxManager, strategies *store.Strategies, signals *store.Signals, writer *Writer, state *healthsvc.State) *Classifier {
	return &Classifier{tm: tm, strategies: strategies, signals: signals, writer: writer, state: state}
}

// Classify reads the strategy row and persists the classified signal plus its
// unified log projection in one transaction, so a concurrent qualification
// write can never produce a half-classified record.
func (c *Classifier) Classify(ctx context.Context, p models.ProposedSignal) (models.TradeSignal, error) {
	var out models.TradeSignal
	err := c.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		s, err := c.strategies.GetByID(ctx, tx, p.StrategyID)
		if err != nil {
			return err
		}

		sig := Decide(*s, p)
		if p.TradeTypeHint != "" && p.TradeTypeHint != sig.TradeType {
			logger.Warn("classification hint ignored for %s: hint=%s assigned=%s",
				p.StrategyID, p.TradeTypeHint, sig.TradeType)
			c.addConflict()
		}
		if p.IsValidation != nil && *p.IsValidation != sig.IsValidation {
			logger.Warn("is_validation hint ignored for %s: hint=%t assigned=%t",
				p.StrategyID, *p.IsValidation, sig.IsValidation)
			c.addConflict()
		}

		// защита от противоречивых записей на единственном пути записи
		sig, repaired := Repair(sig)
		if repaired {
			logger.Warn("classification conflict repaired for %s: %s/is_validation flip", p.StrategyID, sig.TradeType)
			c.addConflict()
		}

		inserted, err := c.signals.Insert(ctx, tx, &sig)
		if err != nil {
			return err
		}
		if !inserted {
			// повторная доставка из фида после reconnect, строка уже есть
			logger.Info("signal for %s at %s already classified, redelivery ignored", sig.StrategyID, sig.Timestamp)
			out = sig
			return nil
		}
		if err := c.writer.WriteSignalTx(ctx, tx, sig); err != nil {
			return err
		}
		out = sig
		return nil
	})
	if err != nil {
		return models.TradeSignal{}, fmt.Errorf("Classifier.Classify: %w", err)
	}
	return out, nil
}

func (c *Classifier) addConflict() {
	if c.state != nil {
		c.state.AddConflict()
	}
}

// Settle records the execution outcome reported back by the execution layer.
// Safe to retry: the update writes the same values again and the unified
// projection dedupes on its key.
func (c *Classifier) Settle(ctx context.Context, signalID string, executed bool, realizedReturn float64) error {
	err := c.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		sig, err := c.signals.GetByID(ctx, tx, signalID)
		if err != nil {
			return err
		}
		if err := c.signals.MarkSettled(ctx, tx, signalID, executed, realizedReturn); err != nil {
			return err
		}
		sig.Executed = executed
		sig.RealizedReturn = realizedReturn
		return c.writer.WriteSettlementTx(ctx, tx, *sig)
	})
	if err != nil {
		return fmt.Errorf("Classifier.Settle: %w", err)
	}
	return nil
}
