package qualify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"evobot/internal/models"
	"evobot/internal/modules/config"
	"evobot/internal/store"
	"evobot/pkg/db"
	"evobot/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Floors are the qualification thresholds. One configurable score floor,
// канон 60 — никаких legacy-порогов 45/65 в коде.
type Floors struct {
	TradeFloor   int
	ScoreFloor   float64
	WinRateFloor float64
}

func FloorsFromConfig(cfg *config.Config) Floors {
	return Floors{
		TradeFloor:   cfg.Qualification.TradeFloor,
		ScoreFloor:   cfg.Qualification.ScoreFloor,
		WinRateFloor: cfg.Qualification.WinRateFloor,
	}
}

// NextState returns the automatic transition for a strategy, if any.
// Only unqualified→validating and validating→qualified happen automatically;
// real_trading is reachable solely through an explicit Promote, elimination
// solely through Eliminate. Re-running with a state already reached is a no-op.
func NextState(s models.Strategy, f Floors) (models.StrategyState, bool) {
	switch s.State {
	case models.StateUnqualified:
		return models.StateValidating, true
	case models.StateValidating:
		if s.TotalTrades >= f.TradeFloor &&
			s.FinalScore >= f.ScoreFloor &&
			s.WinRate >= f.WinRateFloor {
			return models.StateQualified, true
		}
	}
	return s.State, false
}

// Notifier is the operator-facing sink for lifecycle events.
type Notifier interface {
	Sendf(format string, args ...any)
}

// Machine owns every write to state/enabled/protected/qualified_for_trading.
// The classifier only ever reads those fields (single-writer discipline).
type Machine struct {
	tm         db.TxManager
	strategies *store.Strategies
	history    *store.History
	unified    *store.Unified
	notifier   Notifier
	floors     Floors
}

func NewMachine(tm db.TxManager, strategies *store.Strategies, history *store.History, unified *store.Unified, notifier Notifier, cfg *config.Config) *Machine {
	return &Machine{
		tm:         tm,
		strategies: strategies,
		history:    history,
		unified:    unified,
		notifier:   notifier,
		floors:     FloorsFromConfig(cfg),
	}
}

func (m *Machine) Floors() Floors { return m.floors }

// EvaluateTx applies the automatic transitions for one strategy inside the
// caller's transaction (the scheduler pairs it with the score write).
func (m *Machine) EvaluateTx(ctx context.Context, tx pgx.Tx, s *models.Strategy) (changed bool, err error) {
	next, ok := NextState(*s, m.floors)
	if !ok {
		return false, nil
	}
	s.State = next
	if err := m.strategies.SetFlags(ctx, tx, s.ID, s.Enabled, s.Protected, s.QualifiedForTrading, s.State); err != nil {
		return false, err
	}
	if next == models.StateQualified {
		logger.Info("strategy %s qualified (score=%.1f trades=%d win=%.1f%%)",
			s.ID, s.FinalScore, s.TotalTrades, s.WinRate)
	}
	return true, nil
}

// Promote — явный перевод qualified → real_trading (оператор/капитал).
// Повторный вызов для уже торгующей стратегии — no-op.
func (m *Machine) Promote(ctx context.Context, id string) error {
	return m.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		s, err := m.strategies.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if s.State == models.StateRealTrading && s.QualifiedForTrading {
			return nil
		}
		if s.State != models.StateQualified {
			return fmt.Errorf("promote %s: state %s, want %s", id, s.State, models.StateQualified)
		}

		scoreBefore := s.FinalScore
		s.State = models.StateRealTrading
		s.QualifiedForTrading = true
		if err := m.strategies.SetFlags(ctx, tx, s.ID, s.Enabled, s.Protected, true, s.State); err != nil {
			return err
		}
		if err := m.appendEvent(ctx, tx, s, models.EvolutionPromotion, scoreBefore); err != nil {
			return err
		}
		if m.notifier != nil {
			m.notifier.Sendf("🚀 %s (%s) promoted to real trading, score %.1f", s.Name, s.ID, s.FinalScore)
		}
		return nil
	})
}

// Demote returns a real-trading strategy to validation. All future signals
// revert to the validation class immediately.
func (m *Machine) Demote(ctx context.Context, id string) error {
	return m.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		s, err := m.strategies.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if s.State != models.StateRealTrading && !s.QualifiedForTrading {
			return nil
		}

		s.State = models.StateValidating
		s.QualifiedForTrading = false
		if err := m.strategies.SetFlags(ctx, tx, s.ID, s.Enabled, s.Protected, false, s.State); err != nil {
			return err
		}
		if m.notifier != nil {
			m.notifier.Sendf("⬇️ %s (%s) demoted to validating", s.Name, s.ID)
		}
		return nil
	})
}

// SetProtected toggles elimination immunity.
func (m *Machine) SetProtected(ctx context.Context, id string, protected bool) error {
	return m.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		s, err := m.strategies.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if s.Protected == protected {
			return nil
		}

		scoreBefore := s.FinalScore
		s.Protected = protected
		if err := m.strategies.SetFlags(ctx, tx, s.ID, s.Enabled, protected, s.QualifiedForTrading, s.State); err != nil {
			return err
		}
		return m.appendEvent(ctx, tx, s, models.EvolutionProtection, scoreBefore)
	})
}

// EliminateTx disables a strategy within the caller's transaction. Protected
// strategies are never eliminated: the attempt is a logged no-op, not an error.
func (m *Machine) EliminateTx(ctx context.Context, tx pgx.Tx, s *models.Strategy) (eliminated bool, err error) {
	if s.Protected {
		logger.Warn("elimination blocked: strategy %s is protected (score=%.1f)", s.ID, s.FinalScore)
		return false, nil
	}
	if s.State == models.StateEliminated {
		return false, nil
	}

	scoreBefore := s.FinalScore
	s.State = models.StateEliminated
	s.Enabled = false
	s.QualifiedForTrading = false
	if err := m.strategies.SetFlags(ctx, tx, s.ID, false, s.Protected, false, s.State); err != nil {
		return false, err
	}
	if err := m.appendEvent(ctx, tx, s, models.EvolutionElimination, scoreBefore); err != nil {
		return false, err
	}
	if m.notifier != nil {
		m.notifier.Sendf("💀 %s (%s) eliminated, score %.1f", s.Name, s.ID, s.FinalScore)
	}
	return true, nil
}

// StatusSummary — сводка для /status.
func (m *Machine) StatusSummary(ctx context.Context) (string, error) {
	var b strings.Builder
	err := m.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		all, err := m.strategies.List(ctx, tx, store.ListFilter{OrderBy: "score_desc"})
		if err != nil {
			return err
		}
		counts := map[models.StrategyState]int{}
		for _, s := range all {
			counts[s.State]++
		}
		fmt.Fprintf(&b, "📊 strategies: %d\n", len(all))
		for _, state := range []models.StrategyState{
			models.StateValidating, models.StateQualified,
			models.StateRealTrading, models.StateEliminated,
		} {
			fmt.Fprintf(&b, "• %s: %d\n", state, counts[state])
		}
		for i, s := range all {
			if i >= 5 || s.State == models.StateEliminated {
				break
			}
			fmt.Fprintf(&b, "%d. %s %.1f %s\n", i+1, s.Name, s.FinalScore, s.State)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("Machine.StatusSummary: %w", err)
	}
	return b.String(), nil
}

// LineageSummary — родословная для /lineage: цепочка предков, дети и
// последние события эволюции стратегии. Repeatable read: три связанных
// выборки из одного снимка.
func (m *Machine) LineageSummary(ctx context.Context, id string) (string, error) {
	var b strings.Builder
	err := m.tm.RunRepeatableRead(ctx, func(ctx context.Context, tx pgx.Tx) error {
		s, err := m.strategies.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		ancestors, err := m.strategies.Ancestors(ctx, tx, id)
		if err != nil {
			return err
		}
		children, err := m.strategies.Children(ctx, tx, id)
		if err != nil {
			return err
		}
		events, err := m.history.ForStrategy(ctx, tx, id, 5)
		if err != nil {
			return err
		}

		fmt.Fprintf(&b, "🧬 %s (%s) g%d %s score %.1f\n", s.Name, s.ID, s.Generation, s.State, s.FinalScore)
		for _, a := range ancestors {
			if a.ID == s.ID {
				continue
			}
			fmt.Fprintf(&b, "↑ %s g%d %.1f\n", a.Name, a.Generation, a.FinalScore)
		}
		for _, c := range children {
			fmt.Fprintf(&b, "↓ %s g%d %.1f %s\n", c.Name, c.Generation, c.FinalScore, c.State)
		}
		for _, e := range events {
			fmt.Fprintf(&b, "• %s %s %.1f->%.1f\n",
				e.CreatedAt.Format("01-02 15:04"), e.EvolutionType, e.ScoreBefore, e.ScoreAfter)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("Machine.LineageSummary: %w", err)
	}
	return b.String(), nil
}

// RecentLog — хвост unified-лога для /log.
func (m *Machine) RecentLog(ctx context.Context, limit int) (string, error) {
	var b strings.Builder
	err := m.tm.RunRepeatableRead(ctx, func(ctx context.Context, tx pgx.Tx) error {
		recs, err := m.unified.Recent(ctx, tx, limit)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			b.WriteString("лог пуст")
			return nil
		}
		for _, r := range recs {
			fmt.Fprintf(&b, "%s [%s] %s %s %s\n",
				r.Timestamp.Format("01-02 15:04"), r.LogType, r.EventType, r.StrategyID, r.Detail)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("Machine.RecentLog: %w", err)
	}
	return b.String(), nil
}

func (m *Machine) appendEvent(ctx context.Context, tx pgx.Tx, s *models.Strategy, et models.EvolutionType, scoreBefore float64) error {
	now := time.Now().UTC()
	rec := &models.EvolutionRecord{
		ID:            uuid.NewString(),
		StrategyID:    s.ID,
		Generation:    s.Generation,
		Cycle:         s.Cycle,
		EvolutionType: et,
		OldParameters: s.Parameters,
		NewParameters: s.Parameters,
		ScoreBefore:   scoreBefore,
		ScoreAfter:    s.FinalScore,
		CreatedAt:     now,
	}
	if err := m.history.Append(ctx, tx, rec); err != nil {
		return err
	}
	inserted, err := m.unified.Insert(ctx, tx, &models.UnifiedLogRecord{
		ID:         uuid.NewString(),
		StrategyID: s.ID,
		Symbol:     s.Symbol,
		LogType:    models.LogEvolution,
		EventType:  string(et),
		Detail:     fmt.Sprintf("score %.1f -> %.1f", scoreBefore, s.FinalScore),
		Timestamp:  now,
	})
	if err != nil {
		return err
	}
	if !inserted {
		logger.Info("unified log entry %s/%s already present", s.ID, et)
	}
	return nil
}
