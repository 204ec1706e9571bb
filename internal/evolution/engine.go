package evolution

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"evobot/internal/classify"
	"evobot/internal/models"
	"evobot/internal/modules/config"
	"evobot/internal/params"
	"evobot/internal/qualify"
	"evobot/internal/scoring"
	"evobot/internal/store"
	"evobot/pkg/db"
	"evobot/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Report — итог одного эволюционного прохода.
type Report struct {
	Candidates         int
	Mutated            int
	Created            int
	Eliminated         int
	EliminationBlocked int
	Skipped            int
}

// Engine advances the population once per scheduler tick: eliminate the
// hopeless, mutate the worst of the rest while slots remain under the
// population cap, top the population back up with fresh roots.
type Engine struct {
	tm         db.TxManager
	strategies *store.Strategies
	history    *store.History
	writer     *classify.Writer
	table      *params.Table
	machine    *qualify.Machine
	cfg        *config.Config
	rng        *rand.Rand

	mu          sync.Mutex
	initialized bool
	generation  int
	cycle       int
}

func NewEngine(tm db.TxManager, strategies *store.Strategies, history *store.History, writer *classify.Writer, table *params.Table, machine *qualify.Machine, cfg *config.Config) *Engine {
	return &Engine{
		tm:         tm,
		strategies: strategies,
		history:    history,
		writer:     writer,
		table:      table,
		machine:    machine,
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RunCycle performs one full evolution pass. Each mutation/creation/
// elimination is one transaction pairing the strategy write with its
// evolution history row; a failing strategy is skipped, never fatal.
func (e *Engine) RunCycle(ctx context.Context) (Report, error) {
	if err := e.ensureGeneration(ctx); err != nil {
		return Report{}, fmt.Errorf("Engine.RunCycle: seed generation: %w", err)
	}

	e.mu.Lock()
	e.cycle++
	cycle := e.cycle
	generation := e.generation
	e.mu.Unlock()

	var rep Report

	enabled := true
	var population []models.Strategy
	err := e.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		population, err = e.strategies.List(ctx, tx, store.ListFilter{Enabled: &enabled})
		return err
	})
	if err != nil {
		return rep, fmt.Errorf("Engine.RunCycle: load population: %w", err)
	}
	rep.Candidates = len(population)

	survivors := population[:0]
	for i := range population {
		s := &population[i]
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}

		if e.shouldEliminate(s) {
			if s.Protected {
				rep.EliminationBlocked++
				logger.Warn("elimination blocked: strategy %s is protected (score=%.1f)", s.ID, s.FinalScore)
				survivors = append(survivors, *s)
				continue
			}
			if err := e.eliminate(ctx, s); err != nil {
				rep.Skipped++
				logger.Error("eliminate %s: %v", s.ID, err)
				continue
			}
			rep.Eliminated++
			continue
		}
		survivors = append(survivors, *s)
	}

	// рост популяции ограничен сверху: мутируем худших, пока есть слоты
	capacity := e.cfg.Evolution.PopulationCap - len(survivors)
	for _, s := range mutationCandidates(survivors, capacity) {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		budget := mutationBudget(scoring.BandFor(s.FinalScore))
		if budget > e.cfg.Evolution.MaxMutatedParams {
			budget = e.cfg.Evolution.MaxMutatedParams
		}
		if err := e.spawnChild(ctx, &s, budget, cycle); err != nil {
			rep.Skipped++
			logger.Error("mutate %s: %v", s.ID, err)
			continue
		}
		rep.Mutated++
	}

	created, err := e.topUpPopulation(ctx, generation, cycle)
	rep.Created = created
	if err != nil {
		return rep, fmt.Errorf("Engine.RunCycle: top up population: %w", err)
	}

	// полный проход завершён — новое поколение
	e.mu.Lock()
	e.generation++
	e.mu.Unlock()

	return rep, nil
}

// ensureGeneration resumes the generation counter from the store after a
// restart, so lineage numbering never rewinds.
func (e *Engine) ensureGeneration(ctx context.Context) error {
	e.mu.Lock()
	done := e.initialized
	e.mu.Unlock()
	if done {
		return nil
	}

	var maxGen int
	err := e.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		maxGen, err = e.strategies.MaxGeneration(ctx, tx)
		return err
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	if !e.initialized {
		e.generation = maxGen
		e.initialized = true
	}
	e.mu.Unlock()
	return nil
}

// mutationCandidates picks the strategies allowed to spawn a child this
// cycle: worst score first, at most capacity of them. Protected strategies
// and the excellent band never mutate. Zero capacity means the population
// is at the cap and no children are born until elimination frees a slot.
func mutationCandidates(population []models.Strategy, capacity int) []models.Strategy {
	if capacity <= 0 {
		return nil
	}
	out := make([]models.Strategy, 0, len(population))
	for _, s := range population {
		if s.Protected {
			continue // protected strategies are kept as-is, не мутируем
		}
		if mutationBudget(scoring.BandFor(s.FinalScore)) == 0 {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FinalScore < out[j].FinalScore })
	if len(out) > capacity {
		out = out[:capacity]
	}
	return out
}

func (e *Engine) shouldEliminate(s *models.Strategy) bool {
	return s.FinalScore < e.cfg.Evolution.EliminationThreshold &&
		s.TotalTrades >= e.cfg.Evolution.EliminationMinTrades
}

func (e *Engine) eliminate(ctx context.Context, s *models.Strategy) error {
	return e.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := e.machine.EliminateTx(ctx, tx, s)
		return err
	})
}

// spawnChild persists a mutated copy as a new strategy: same generation as
// the parent, current engine cycle, validation state from birth.
func (e *Engine) spawnChild(ctx context.Context, parent *models.Strategy, budget int, cycle int) error {
	newParams, mutated, clamped := MutateParameters(e.rng, *parent, e.table, budget, e.cfg.Evolution.MutationPct)
	if len(mutated) == 0 {
		return nil
	}
	for _, name := range clamped {
		logger.Warn("parameter %s out of range after mutation of %s, default substituted", name, parent.ID)
	}

	child := &models.Strategy{
		ID:         uuid.NewString(),
		Name:       fmt.Sprintf("%s-g%dc%d", parent.Name, parent.Generation, cycle),
		Symbol:     parent.Symbol,
		Type:       parent.Type,
		Parameters: newParams,
		Generation: parent.Generation,
		Cycle:      cycle,
		ParentID:   parent.ID,
		Enabled:    true,
		State:      models.StateValidating,
		FinalScore: scoring.UnprovenScore,
	}

	return e.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := e.strategies.Insert(ctx, tx, child); err != nil {
			return err
		}
		// на родителе остаётся цикл, в котором линия последний раз дала потомка
		parent.Cycle = cycle
		if err := e.strategies.Update(ctx, tx, parent); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, child, models.EvolutionMutation, parent.Parameters, newParams, parent.FinalScore)
	})
}

// topUpPopulation seeds default root strategies while the enabled population
// is below the configured floor, round-robin over the type catalogue.
func (e *Engine) topUpPopulation(ctx context.Context, generation, cycle int) (int, error) {
	created := 0
	for {
		var n int
		err := e.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
			var err error
			n, err = e.strategies.CountEnabled(ctx, tx)
			return err
		})
		if err != nil {
			return created, err
		}
		if n >= e.cfg.Evolution.PopulationFloor {
			return created, nil
		}

		st := models.AllStrategyTypes[created%len(models.AllStrategyTypes)]
		root := &models.Strategy{
			ID:         uuid.NewString(),
			Name:       fmt.Sprintf("%s-root-g%d-%d", st, generation, created),
			Symbol:     e.cfg.Evolution.DefaultSymbol,
			Type:       st,
			Parameters: e.table.Defaults(st),
			Generation: generation,
			Cycle:      cycle,
			Enabled:    true,
			State:      models.StateValidating,
			FinalScore: scoring.UnprovenScore,
		}
		err = e.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
			if err := e.strategies.Insert(ctx, tx, root); err != nil {
				return err
			}
			return e.appendEvent(ctx, tx, root, models.EvolutionCreation, nil, root.Parameters, 0)
		})
		if err != nil {
			return created, err
		}
		created++
	}
}

func (e *Engine) appendEvent(ctx context.Context, tx pgx.Tx, s *models.Strategy, et models.EvolutionType, oldParams, newParams map[string]float64, scoreBefore float64) error {
	now := time.Now().UTC()
	rec := &models.EvolutionRecord{
		ID:            uuid.NewString(),
		StrategyID:    s.ID,
		Generation:    s.Generation,
		Cycle:         s.Cycle,
		EvolutionType: et,
		OldParameters: oldParams,
		NewParameters: newParams,
		ScoreBefore:   scoreBefore,
		ScoreAfter:    s.FinalScore,
		CreatedAt:     now,
	}
	if err := e.history.Append(ctx, tx, rec); err != nil {
		return err
	}
	return e.writer.WriteEvolutionTx(ctx, tx, s.Symbol, *rec)
}
