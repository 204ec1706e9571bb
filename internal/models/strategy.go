package models

import "time"

type StrategyType string

const (
	StrategyMomentum       StrategyType = "momentum"
	StrategyMeanReversion  StrategyType = "mean_reversion"
	StrategyBreakout       StrategyType = "breakout"
	StrategyGrid           StrategyType = "grid"
	StrategyTrendFollowing StrategyType = "trend_following"
)

// AllStrategyTypes is the catalogue used for root-strategy seeding.
var AllStrategyTypes = []StrategyType{
	StrategyMomentum,
	StrategyMeanReversion,
	StrategyBreakout,
	StrategyGrid,
	StrategyTrendFollowing,
}

func (t StrategyType) Valid() bool {
	for _, known := range AllStrategyTypes {
		if t == known {
			return true
		}
	}
	return false
}

type StrategyState string

const (
	StateUnqualified StrategyState = "unqualified"
	StateValidating  StrategyState = "validating"
	StateQualified   StrategyState = "qualified"
	StateRealTrading StrategyState = "real_trading"
	StateEliminated  StrategyState = "eliminated"
)

type Strategy struct {
	ID         string
	Name       string
	Symbol     string
	Type       StrategyType
	Parameters map[string]float64

	Generation int
	Cycle      int
	ParentID   string // empty for root strategies

	Enabled             bool
	Protected           bool
	QualifiedForTrading bool
	State               StrategyState

	FinalScore  float64 // always within [0,100]
	WinRate     float64 // percent, 0..100
	TotalTrades int
	TotalReturn float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Root reports whether the strategy was seeded rather than mutated from a parent.
func (s *Strategy) Root() bool { return s.ParentID == "" }

// CloneParameters returns an independent copy of the parameter map.
func (s *Strategy) CloneParameters() map[string]float64 {
	out := make(map[string]float64, len(s.Parameters))
	for k, v := range s.Parameters {
		out[k] = v
	}
	return out
}
