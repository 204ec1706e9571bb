package evolution

import (
	"math/rand"
	"testing"

	"evobot/internal/models"
	"evobot/internal/params"
	"evobot/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parentStrategy() models.Strategy {
	return models.Strategy{
		ID:   "parent-1",
		Type: models.StrategyMomentum,
		Parameters: map[string]float64{
			"quantity":        0.5,
			"stop_loss_pct":   2.0,
			"take_profit_pct": 4.0,
			"rsi_period":      14,
		},
		Generation: 2,
	}
}

func testTable(t *testing.T) *params.Table {
	t.Helper()
	table, err := params.NewTable("")
	require.NoError(t, err)
	return table
}

// TestMutateParameters_WithinBounds: every mutated value either stays inside
// its configured range or falls back to the default — never outside.
func TestMutateParameters_WithinBounds(t *testing.T) {
	table := testTable(t)
	parent := parentStrategy()

	for seed := int64(0); seed < 200; seed++ {
		rng := rand.New(rand.NewSource(seed))
		out, mutated, _ := MutateParameters(rng, parent, table, 3, 0.20)

		assert.NotEmpty(t, mutated)
		assert.LessOrEqual(t, len(mutated), 3)
		for name, v := range out {
			r, known := table.Lookup(name)
			if !known {
				continue
			}
			assert.GreaterOrEqual(t, v, r.Min, "seed=%d %s", seed, name)
			assert.LessOrEqual(t, v, r.Max, "seed=%d %s", seed, name)
		}
	}
}

// TestMutateParameters_ParentUntouched: mutation works on a copy.
func TestMutateParameters_ParentUntouched(t *testing.T) {
	table := testTable(t)
	parent := parentStrategy()
	before := parent.CloneParameters()

	rng := rand.New(rand.NewSource(7))
	out, _, _ := MutateParameters(rng, parent, table, 3, 0.20)

	assert.Equal(t, before, parent.Parameters)
	assert.Len(t, out, len(before))
}

// TestMutateParameters_OnlyPresentNames: only parameters the strategy already
// carries get perturbed.
func TestMutateParameters_OnlyPresentNames(t *testing.T) {
	table := testTable(t)
	parent := parentStrategy()

	rng := rand.New(rand.NewSource(11))
	out, mutated, _ := MutateParameters(rng, parent, table, 3, 0.20)

	for _, name := range mutated {
		_, present := parent.Parameters[name]
		assert.True(t, present, name)
	}
	assert.Len(t, out, len(parent.Parameters))
}

// TestMutateParameters_BoundedFactor: with clamping out of the picture the
// perturbation stays within ±20% of the parent value.
func TestMutateParameters_BoundedFactor(t *testing.T) {
	table := testTable(t)
	parent := models.Strategy{
		Type:       models.StrategyGrid,
		Parameters: map[string]float64{"grid_spacing": 1.0}, // range 0.05..10, no clamp possible at ±20%
	}

	for seed := int64(0); seed < 100; seed++ {
		rng := rand.New(rand.NewSource(seed))
		out, _, clamped := MutateParameters(rng, parent, table, 1, 0.20)
		assert.Empty(t, clamped)
		assert.GreaterOrEqual(t, out["grid_spacing"], 0.8)
		assert.LessOrEqual(t, out["grid_spacing"], 1.2)
	}
}

func TestMutateParameters_EmptyParent(t *testing.T) {
	table := testTable(t)
	parent := models.Strategy{Type: models.StrategyGrid, Parameters: map[string]float64{}}

	rng := rand.New(rand.NewSource(1))
	out, mutated, clamped := MutateParameters(rng, parent, table, 3, 0.20)
	assert.Empty(t, out)
	assert.Empty(t, mutated)
	assert.Empty(t, clamped)
}

// TestMutationBudget: лучшие полосы мутируют аккуратнее.
func TestMutationBudget(t *testing.T) {
	assert.Equal(t, 3, mutationBudget(scoring.BandEvolving))
	assert.Equal(t, 2, mutationBudget(scoring.BandOptimizing))
	assert.Equal(t, 1, mutationBudget(scoring.BandFineTuning))
	assert.Equal(t, 0, mutationBudget(scoring.BandExcellent))
}

// TestMutationCandidates_PopulationAtCap: a population of freshly spawned
// strategies fills the cap and produces zero further children — the
// population never grows past the ceiling, elimination has to free a slot
// first.
func TestMutationCandidates_PopulationAtCap(t *testing.T) {
	newborns := make([]models.Strategy, 50)
	for i := range newborns {
		newborns[i] = models.Strategy{ID: "n", FinalScore: scoring.UnprovenScore, Enabled: true}
	}

	assert.Empty(t, mutationCandidates(newborns, 0))
	assert.Empty(t, mutationCandidates(newborns, -3))
	// один свободный слот — ровно один потомок за цикл
	assert.Len(t, mutationCandidates(newborns, 1), 1)
}

// TestMutationCandidates_WorstFirst: free slots go to the lowest scores.
func TestMutationCandidates_WorstFirst(t *testing.T) {
	pop := []models.Strategy{
		{ID: "fine", FinalScore: 70},
		{ID: "bad", FinalScore: 30},
		{ID: "mid", FinalScore: 50},
	}

	got := mutationCandidates(pop, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "bad", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
}

// TestMutationCandidates_ProtectedAndExcellentSkipped: protected strategies
// stay as-is, excellent-band strategies have nothing to fix.
func TestMutationCandidates_ProtectedAndExcellentSkipped(t *testing.T) {
	pop := []models.Strategy{
		{ID: "immune", FinalScore: 30, Protected: true},
		{ID: "top", FinalScore: 90},
		{ID: "bad", FinalScore: 40},
	}

	got := mutationCandidates(pop, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "bad", got[0].ID)
}
