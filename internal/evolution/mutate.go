package evolution

import (
	"math/rand"
	"sort"

	"evobot/internal/models"
	"evobot/internal/params"
	"evobot/internal/scoring"
)

// mutationBudget: сколько параметров трогаем за одну мутацию в зависимости
// от полосы скоринга. Чем лучше стратегия, тем аккуратнее шаг.
func mutationBudget(b scoring.Band) int {
	switch b {
	case scoring.BandEvolving:
		return 3
	case scoring.BandOptimizing:
		return 2
	case scoring.BandFineTuning:
		return 1
	default:
		return 0
	}
}

// MutateParameters copies the parent's parameters and perturbs 1..maxParams
// of them by a bounded multiplicative factor in [1-pct, 1+pct]. Every changed
// value passes through the range table; out-of-range results fall back to the
// configured default. Returns the new map, the mutated names and the names
// replaced with defaults.
func MutateParameters(rng *rand.Rand, parent models.Strategy, table *params.Table, maxParams int, pct float64) (map[string]float64, []string, []string) {
	out := parent.CloneParameters()
	if len(out) == 0 || maxParams <= 0 {
		return out, nil, nil
	}

	names := make([]string, 0, len(out))
	for name := range out {
		names = append(names, name)
	}
	sort.Strings(names) // map order is random; keep the pick reproducible per seed
	rng.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })

	n := 1 + rng.Intn(maxParams)
	if n > len(names) {
		n = len(names)
	}

	var mutated, clamped []string
	for _, name := range names[:n] {
		factor := 1 - pct + 2*pct*rng.Float64()
		value := out[name] * factor
		v, ok := table.ClampOrDefault(name, value)
		if !ok {
			clamped = append(clamped, name)
		}
		out[name] = v
		mutated = append(mutated, name)
	}
	return out, mutated, clamped
}
