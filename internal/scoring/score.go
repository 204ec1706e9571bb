package scoring

import (
	"math"

	"evobot/internal/outcome"
)

// Score floor for a strategy with no executed trades: low enough to never
// qualify, distinct from zero so "unproven" reads differently than "bad".
const UnprovenScore = 30.0

// Score maps realized trade statistics to a fitness score in [0,100].
//
// Скоринг строго от фактических сделок. Верхние баллы закрыты для стратегий
// с маленькой выборкой — короткая удачная серия не даёт «отличный» скор.
func Score(o outcome.Outcome) float64 {
	var score float64

	switch {
	case o.TradeCount == 0:
		score = UnprovenScore

	case o.TradeCount < 5:
		score = 40 + 3*float64(o.TradeCount) + 0.2*o.WinRate + math.Min(10, 2*o.TotalReturn)
		score = math.Min(score, 60)

	case o.TradeCount < 10:
		score = 50 + 0.3*o.WinRate + math.Min(15, 1.5*o.TotalReturn)
		if o.WinRate >= 60 {
			score += 5
		}
		score = math.Min(score, 75)

	default:
		score = 60 + 0.4*o.WinRate + math.Min(25, o.TotalReturn)
		switch {
		case o.WinRate >= 70:
			score += 10
		case o.WinRate >= 60:
			score += 5
		}
		score += math.Min(5, 0.5*float64(o.TradeCount-10))
		score = math.Min(score, 95)
	}

	if o.TotalReturn < -5 {
		score -= 20 // loss penalty
	}

	return Clamp(score)
}

// Clamp bounds any score snapshot to [0,100].
func Clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Band partitions the population for the evolution engine.
type Band string

const (
	BandEvolving   Band = "evolving"    // < 45
	BandOptimizing Band = "optimizing"  // 45..65
	BandFineTuning Band = "fine_tuning" // 65..85
	BandExcellent  Band = "excellent"   // >= 85
)

func BandFor(score float64) Band {
	switch {
	case score < 45:
		return BandEvolving
	case score < 65:
		return BandOptimizing
	case score < 85:
		return BandFineTuning
	default:
		return BandExcellent
	}
}
