package models

import "time"

// Side сигнала: "BUY"/"SELL".
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type TradeType string

const (
	TradeScoreVerification        TradeType = "score_verification"
	TradeOptimizationValidation   TradeType = "optimization_validation"
	TradeInitializationValidation TradeType = "initialization_validation"
	TradePeriodicValidation       TradeType = "periodic_validation"
	TradeRealTrading              TradeType = "real_trading"
)

// Validation reports whether the type belongs to the simulated class.
// Every trade type except real_trading is a validation kind.
func (t TradeType) Validation() bool { return t != TradeRealTrading }

func (t TradeType) Known() bool {
	switch t {
	case TradeScoreVerification, TradeOptimizationValidation,
		TradeInitializationValidation, TradePeriodicValidation, TradeRealTrading:
		return true
	}
	return false
}

// SignalOrigin tells the classifier why the upstream generated the signal.
type SignalOrigin string

const (
	OriginScoreCheck     SignalOrigin = "score_check"
	OriginPostMutation   SignalOrigin = "post_mutation"
	OriginInitialization SignalOrigin = "initialization"
	OriginPeriodic       SignalOrigin = "periodic"
)

// ProposedSignal is what the execution layer hands over before classification.
// TradeTypeHint is advisory only; the classifier is the sole authority.
type ProposedSignal struct {
	StrategyID    string       `json:"strategy_id"`
	Symbol        string       `json:"symbol"`
	Side          Side         `json:"side"`
	Price         float64      `json:"price"`
	Quantity      float64      `json:"quantity"`
	Confidence    float64      `json:"confidence"`
	Timestamp     time.Time    `json:"timestamp"`
	CycleID       string       `json:"cycle_id"`
	Origin        SignalOrigin `json:"origin"`
	TradeTypeHint TradeType    `json:"trade_type_hint,omitempty"`
	IsValidation  *bool        `json:"is_validation,omitempty"`
}

type TradeSignal struct {
	ID         string
	StrategyID string
	Symbol     string
	Side       Side
	Price      float64
	Quantity   float64
	Confidence float64 // 0..1
	Timestamp  time.Time

	TradeType    TradeType
	IsValidation bool

	Executed       bool
	RealizedReturn float64
	CycleID        string
	StrategyScore  float64 // snapshot at classification time, clamped to [0,100]
}
