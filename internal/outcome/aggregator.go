package outcome

import (
	"context"
	"fmt"
	"time"

	"evobot/internal/models"
	"evobot/internal/store"
	"evobot/pkg/db"

	"github.com/jackc/pgx/v5"
)

// Outcome holds realized trade statistics for one strategy. The zero value
// is the legitimate state of a strategy without executed trades.
type Outcome struct {
	TradeCount  int
	WinCount    int
	WinRate     float64 // percent, 0..100
	AvgReturn   float64
	TotalReturn float64
}

// Aggregate reduces executed signals to an Outcome. Unexecuted signals are
// filtered upstream, but a second guard here keeps the reduction honest when
// fed from other paths.
func Aggregate(signals []models.TradeSignal) Outcome {
	var o Outcome
	for _, sig := range signals {
		if !sig.Executed {
			continue
		}
		o.TradeCount++
		o.TotalReturn += sig.RealizedReturn
		if sig.RealizedReturn > 0 {
			o.WinCount++
		}
	}
	if o.TradeCount > 0 {
		o.WinRate = 100 * float64(o.WinCount) / float64(o.TradeCount)
		o.AvgReturn = o.TotalReturn / float64(o.TradeCount)
	}
	return o
}

// Aggregator queries a strategy's executed history and reduces it.
type Aggregator struct {
	tm      db.TxManager
	signals *store.Signals
}

func NewAggregator(tm db.TxManager, signals *store.Signals) *Aggregator {
	return &Aggregator{tm: tm, signals: signals}
}

// ForStrategy computes the outcome over a trailing window. window <= 0 means
// the full history.
func (a *Aggregator) ForStrategy(ctx context.Context, strategyID string, window time.Duration) (Outcome, error) {
	since := time.Time{}
	if window > 0 {
		since = time.Now().UTC().Add(-window)
	}

	var out Outcome
	err := a.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		signals, err := a.signals.ExecutedSince(ctx, tx, strategyID, since)
		if err != nil {
			return err
		}
		out = Aggregate(signals)
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("Aggregator.ForStrategy: %w", err)
	}
	return out, nil
}
