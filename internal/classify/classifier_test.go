package classify

import (
	"os"
	"testing"
	"time"

	"evobot/internal/models"
	"evobot/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func unqualifiedStrategy() models.Strategy {
	return models.Strategy{
		ID:         "s-1",
		Name:       "momentum-root",
		Symbol:     "BTC-USDT",
		State:      models.StateValidating,
		Enabled:    true,
		FinalScore: 55,
	}
}

func realTradingStrategy() models.Strategy {
	s := unqualifiedStrategy()
	s.State = models.StateRealTrading
	s.QualifiedForTrading = true
	return s
}

// TestDecide_UnqualifiedAlwaysValidation: a strategy without the
// qualified_for_trading flag gets a validation signal regardless of any
// caller-supplied hint.
func TestDecide_UnqualifiedAlwaysValidation(t *testing.T) {
	s := unqualifiedStrategy()
	p := models.ProposedSignal{
		StrategyID:    s.ID,
		Symbol:        s.Symbol,
		Side:          models.SideBuy,
		TradeTypeHint: models.TradeRealTrading, // hint must be ignored
	}

	sig := Decide(s, p)
	assert.True(t, sig.IsValidation)
	assert.NotEqual(t, models.TradeRealTrading, sig.TradeType)
}

// TestDecide_FlagAloneIsNotEnough: both the flag and the real_trading state
// are required before a signal trades real capital.
func TestDecide_FlagAloneIsNotEnough(t *testing.T) {
	s := unqualifiedStrategy()
	s.QualifiedForTrading = true // state still validating

	sig := Decide(s, models.ProposedSignal{StrategyID: s.ID})
	assert.True(t, sig.IsValidation)
}

func TestDecide_RealTrading(t *testing.T) {
	s := realTradingStrategy()

	sig := Decide(s, models.ProposedSignal{StrategyID: s.ID, Side: models.SideSell})
	assert.Equal(t, models.TradeRealTrading, sig.TradeType)
	assert.False(t, sig.IsValidation)
}

// TestDecide_OriginPicksValidationKind maps the signal origin onto the
// validation sub-kind.
func TestDecide_OriginPicksValidationKind(t *testing.T) {
	s := unqualifiedStrategy()
	cases := map[models.SignalOrigin]models.TradeType{
		models.OriginScoreCheck:     models.TradeScoreVerification,
		models.OriginPostMutation:   models.TradeOptimizationValidation,
		models.OriginInitialization: models.TradeInitializationValidation,
		models.OriginPeriodic:       models.TradePeriodicValidation,
		"":                          models.TradePeriodicValidation,
	}
	for origin, want := range cases {
		sig := Decide(s, models.ProposedSignal{StrategyID: s.ID, Origin: origin})
		assert.Equal(t, want, sig.TradeType, string(origin))
		assert.True(t, sig.IsValidation)
	}
}

// TestDecide_InvariantHolds: every decided signal satisfies
// is_validation == (trade_type != real_trading).
func TestDecide_InvariantHolds(t *testing.T) {
	for _, s := range []models.Strategy{unqualifiedStrategy(), realTradingStrategy()} {
		for _, origin := range []models.SignalOrigin{
			models.OriginScoreCheck, models.OriginPostMutation,
			models.OriginInitialization, models.OriginPeriodic,
		} {
			sig := Decide(s, models.ProposedSignal{StrategyID: s.ID, Origin: origin})
			assert.Equal(t, sig.TradeType.Validation(), sig.IsValidation)
		}
	}
}

// TestDecide_ScoreSnapshotClamped: the strategy score snapshot lands in
// [0,100] even when the stored score is corrupt.
func TestDecide_ScoreSnapshotClamped(t *testing.T) {
	s := unqualifiedStrategy()
	s.FinalScore = 240

	sig := Decide(s, models.ProposedSignal{StrategyID: s.ID})
	assert.Equal(t, 100.0, sig.StrategyScore)
}

// TestDecide_RedeliveryKeepsNaturalKey: classifying the same feed frame twice
// (websocket reconnect redelivery) must map onto the same (strategy, ts, side)
// dedupe key, so the signal insert conflicts instead of duplicating the row.
// Surrogate ids differ per call and play no part in deduplication.
func TestDecide_RedeliveryKeepsNaturalKey(t *testing.T) {
	s := unqualifiedStrategy()
	p := models.ProposedSignal{
		StrategyID: s.ID,
		Symbol:     s.Symbol,
		Side:       models.SideBuy,
		Price:      64250.5,
		Quantity:   0.01,
		Timestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	first := Decide(s, p)
	second := Decide(s, p)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.StrategyID, second.StrategyID)
	assert.Equal(t, first.Timestamp, second.Timestamp)
	assert.Equal(t, first.Side, second.Side)
	assert.Equal(t, first.TradeType, second.TradeType)
}

func TestDecide_FillsTimestamp(t *testing.T) {
	s := unqualifiedStrategy()
	sig := Decide(s, models.ProposedSignal{StrategyID: s.ID})
	assert.False(t, sig.Timestamp.IsZero())

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sig = Decide(s, models.ProposedSignal{StrategyID: s.ID, Timestamp: at})
	assert.Equal(t, at, sig.Timestamp)
}

// TestRepair_RealTradingWins: (real_trading, is_validation=true) is repaired
// to (real_trading, false) — real-money execution is the ground truth, the
// trade type is never rewritten.
func TestRepair_RealTradingWins(t *testing.T) {
	sig := models.TradeSignal{TradeType: models.TradeRealTrading, IsValidation: true}

	fixed, repaired := Repair(sig)
	assert.True(t, repaired)
	assert.Equal(t, models.TradeRealTrading, fixed.TradeType)
	assert.False(t, fixed.IsValidation)
}

func TestRepair_ValidationKindFlagged(t *testing.T) {
	sig := models.TradeSignal{TradeType: models.TradePeriodicValidation, IsValidation: false}

	fixed, repaired := Repair(sig)
	assert.True(t, repaired)
	assert.True(t, fixed.IsValidation)
}

// TestRepair_ConsistentRecordUntouched: repairing a valid record is a no-op.
func TestRepair_ConsistentRecordUntouched(t *testing.T) {
	for _, sig := range []models.TradeSignal{
		{TradeType: models.TradeRealTrading, IsValidation: false},
		{TradeType: models.TradeScoreVerification, IsValidation: true},
	} {
		fixed, repaired := Repair(sig)
		assert.False(t, repaired)
		assert.Equal(t, sig, fixed)
	}
}

func TestLogTypeFor(t *testing.T) {
	assert.Equal(t, models.LogRealTrading, LogTypeFor(models.TradeRealTrading))
	assert.Equal(t, models.LogValidation, LogTypeFor(models.TradePeriodicValidation))
	assert.Equal(t, models.LogValidation, LogTypeFor(models.TradeScoreVerification))
}
