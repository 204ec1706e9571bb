package scoring

import (
	"testing"

	"evobot/internal/outcome"

	"github.com/stretchr/testify/assert"
)

// TestScore_NoTrades: a strategy without executed trades scores the unproven
// floor, never anything qualifying.
func TestScore_NoTrades(t *testing.T) {
	got := Score(outcome.Outcome{})
	assert.Equal(t, 30.0, got)
}

// TestScore_NoTradesNeverHigh guards the fake-high-score failure mode.
func TestScore_NoTradesNeverHigh(t *testing.T) {
	for _, o := range []outcome.Outcome{
		{},
		{WinRate: 100},
		{TotalReturn: 50, WinRate: 100},
	} {
		o.TradeCount = 0
		assert.Less(t, Score(o), 60.0)
	}
}

// TestScore_FewTradesCapped: under five trades the score caps at 60 no matter
// how lucky the run was.
func TestScore_FewTradesCapped(t *testing.T) {
	o := outcome.Outcome{TradeCount: 4, WinCount: 4, WinRate: 100, TotalReturn: 40}
	assert.Equal(t, 60.0, Score(o))
}

// TestScore_MidTierCapped: five to nine trades cap at 75.
func TestScore_MidTierCapped(t *testing.T) {
	o := outcome.Outcome{TradeCount: 9, WinCount: 9, WinRate: 100, TotalReturn: 100}
	assert.Equal(t, 75.0, Score(o))
}

// TestScore_ProvenStrategy reproduces the documented example:
// 12 trades, 70% wins, +8 return → 60 + 28 + 8 + 10 + 1 = 107 → capped at 95.
func TestScore_ProvenStrategy(t *testing.T) {
	o := outcome.Outcome{TradeCount: 12, WinCount: 8, WinRate: 70, TotalReturn: 8}
	assert.Equal(t, 95.0, Score(o))
}

// TestScore_MidTierExact checks the mid tier formula without caps in play.
func TestScore_MidTierExact(t *testing.T) {
	// 50 + 0.3*50 + min(15, 1.5*4) = 50 + 15 + 6 = 71, no 60% bonus
	o := outcome.Outcome{TradeCount: 6, WinCount: 3, WinRate: 50, TotalReturn: 4}
	assert.InDelta(t, 71.0, Score(o), 1e-9)
}

// TestScore_LossPenalty: a deep drawdown knocks 20 points off after tiering.
func TestScore_LossPenalty(t *testing.T) {
	withLoss := Score(outcome.Outcome{TradeCount: 12, WinCount: 4, WinRate: 33.3, TotalReturn: -10})
	noLoss := Score(outcome.Outcome{TradeCount: 12, WinCount: 4, WinRate: 33.3, TotalReturn: -1})
	assert.Less(t, withLoss, noLoss)
	assert.GreaterOrEqual(t, withLoss, 0.0)
}

// TestScore_AlwaysBounded: every score lands in [0,100].
func TestScore_AlwaysBounded(t *testing.T) {
	cases := []outcome.Outcome{
		{},
		{TradeCount: 1, WinRate: 100, TotalReturn: 1000},
		{TradeCount: 3, TotalReturn: -1000},
		{TradeCount: 7, WinRate: 100, TotalReturn: 1000},
		{TradeCount: 50, WinRate: 100, TotalReturn: 1000},
		{TradeCount: 50, TotalReturn: -1000},
	}
	for _, o := range cases {
		got := Score(o)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 100.0)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-3))
	assert.Equal(t, 100.0, Clamp(106))
	assert.Equal(t, 42.0, Clamp(42))
}

func TestBandFor(t *testing.T) {
	assert.Equal(t, BandEvolving, BandFor(30))
	assert.Equal(t, BandOptimizing, BandFor(45))
	assert.Equal(t, BandOptimizing, BandFor(64.9))
	assert.Equal(t, BandFineTuning, BandFor(65))
	assert.Equal(t, BandExcellent, BandFor(85))
	assert.Equal(t, BandExcellent, BandFor(95))
}
