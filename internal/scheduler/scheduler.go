package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"evobot/internal/evolution"
	"evobot/internal/models"
	"evobot/internal/modules/config"
	healthsvc "evobot/internal/modules/health/service"
	"evobot/internal/outcome"
	"evobot/internal/qualify"
	"evobot/internal/scoring"
	"evobot/internal/store"
	"evobot/pkg/db"
	"evobot/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/opentracing/opentracing-go"
)

// TickReport accumulates per-error-kind counts instead of aborting the tick.
type TickReport struct {
	Scored             int
	Skipped            int // AggregationSkipped
	Qualified          int // transitions into qualified this tick, не общий счёт
	Mutated            int
	Created            int
	Eliminated         int
	EliminationBlocked int
	Duration           time.Duration
}

// Scheduler drives the fixed pipeline: aggregate → score → qualify → evolve.
// Один активный тик: повторное срабатывание таймера при живом тике
// пропускается, не выполняется параллельно.
type Scheduler struct {
	cfg        *config.Config
	tm         db.TxManager
	strategies *store.Strategies
	aggregator *outcome.Aggregator
	machine    *qualify.Machine
	engine     *evolution.Engine
	state      *healthsvc.State

	running atomic.Bool
}

func New(cfg *config.Config, tm db.TxManager, strategies *store.Strategies, aggregator *outcome.Aggregator, machine *qualify.Machine, engine *evolution.Engine, state *healthsvc.State) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		tm:         tm,
		strategies: strategies,
		aggregator: aggregator,
		machine:    machine,
		engine:     engine,
		state:      state,
	}
}

// Run blocks until ctx is done, ticking once per configured interval.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.cfg.Scheduler.Interval)
	defer t.Stop()

	// первый тик сразу, не ждём интервал
	s.tickOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tickOnce(ctx)
		}
	}
}

func (s *Scheduler) tickOnce(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		logger.Warn("scheduler tick still running, skipping this interval")
		return
	}
	defer s.running.Store(false)

	tickCtx, cancel := context.WithTimeout(ctx, s.cfg.Scheduler.TickDeadline)
	defer cancel()

	rep, err := s.Tick(tickCtx)
	if err != nil {
		// полная потеря стора — тик провален, повторим на следующем интервале
		logger.Error("scheduler tick failed: %v", err)
		return
	}
	s.state.SetReady(true)
	s.state.TouchTick(time.Now(), healthsvc.TickSnapshot{
		Scored:             rep.Scored,
		Skipped:            rep.Skipped,
		Qualified:          rep.Qualified,
		Mutated:            rep.Mutated,
		Created:            rep.Created,
		Eliminated:         rep.Eliminated,
		EliminationBlocked: rep.EliminationBlocked,
		Duration:           rep.Duration,
	})
	logger.Info("tick done: scored=%d skipped=%d qualified=%d mutated=%d created=%d eliminated=%d blocked=%d in %s",
		rep.Scored, rep.Skipped, rep.Qualified, rep.Mutated, rep.Created, rep.Eliminated, rep.EliminationBlocked, rep.Duration)
}

// Tick runs one full pass. A single bad strategy never aborts the cycle:
// it is counted in the report and skipped.
func (s *Scheduler) Tick(ctx context.Context) (TickReport, error) {
	started := time.Now()
	span, ctx := opentracing.StartSpanFromContext(ctx, "scheduler.tick")
	defer span.Finish()

	var rep TickReport

	enabled := true
	var population []models.Strategy
	err := s.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		population, err = s.strategies.List(ctx, tx, store.ListFilter{Enabled: &enabled})
		return err
	})
	if err != nil {
		return rep, err
	}

	scoreSpan, scoreCtx := opentracing.StartSpanFromContext(ctx, "scheduler.score")
	for i := range population {
		st := &population[i]
		if scoreCtx.Err() != nil {
			break
		}
		changed, err := s.rescore(scoreCtx, st)
		if err != nil {
			rep.Skipped++
			logger.Warn("aggregation skipped for %s: %v", st.ID, err)
			continue
		}
		rep.Scored++
		if changed && st.State == models.StateQualified {
			rep.Qualified++
		}
	}
	scoreSpan.Finish()

	evoSpan, evoCtx := opentracing.StartSpanFromContext(ctx, "scheduler.evolve")
	evoRep, err := s.engine.RunCycle(evoCtx)
	evoSpan.Finish()
	rep.Mutated = evoRep.Mutated
	rep.Created = evoRep.Created
	rep.Eliminated = evoRep.Eliminated
	rep.EliminationBlocked = evoRep.EliminationBlocked
	rep.Skipped += evoRep.Skipped
	rep.Duration = time.Since(started)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return rep, err
	}
	return rep, nil
}

// rescore aggregates, scores and runs the automatic qualification transition
// for one strategy — одна транзакция на стратегию за тик. Returns whether the
// state machine moved.
func (s *Scheduler) rescore(ctx context.Context, st *models.Strategy) (changed bool, err error) {
	agg, err := s.aggregator.ForStrategy(ctx, st.ID, s.cfg.Evolution.OutcomeWindow)
	if err != nil {
		return false, err
	}
	score := scoring.Score(agg)

	err = s.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.strategies.UpdateScores(ctx, tx, st.ID, score, agg.WinRate, agg.TotalReturn, agg.TradeCount); err != nil {
			return err
		}
		st.FinalScore = score
		st.WinRate = agg.WinRate
		st.TotalReturn = agg.TotalReturn
		st.TotalTrades = agg.TradeCount
		changed, err = s.machine.EvaluateTx(ctx, tx, st)
		return err
	})
	return changed, err
}
