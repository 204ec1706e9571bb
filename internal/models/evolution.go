package models

import "time"

type EvolutionType string

const (
	EvolutionMutation    EvolutionType = "mutation"
	EvolutionPromotion   EvolutionType = "promotion"
	EvolutionProtection  EvolutionType = "protection"
	EvolutionElimination EvolutionType = "elimination"
	EvolutionCreation    EvolutionType = "creation"
)

// EvolutionRecord — append-only audit row, never updated after insert.
type EvolutionRecord struct {
	ID            string
	StrategyID    string
	Generation    int
	Cycle         int
	EvolutionType EvolutionType
	OldParameters map[string]float64
	NewParameters map[string]float64
	ScoreBefore   float64
	ScoreAfter    float64
	CreatedAt     time.Time
}
