package qualify

import (
	"context"
	"os"
	"testing"

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

var testFloors = Floors{TradeFloor: 10, ScoreFloor: 60, WinRateFloor: 50}

// TestNextState_NewStrategyEntersValidation: unqualified is only a birth
// state, the first evaluation moves it to validating.
func TestNextState_NewStrategyEntersValidation(t *testing.T) {
	s := models.Strategy{State: models.StateUnqualified}
	next, changed := NextState(s, testFloors)
	assert.True(t, changed)
	assert.Equal(t, models.StateValidating, next)
}

// TestNextState_UnprovenStaysValidating: trade_count=0 scores the floor and
// the strategy stays where it is.
func TestNextState_UnprovenStaysValidating(t *testing.T) {
	s := models.Strategy{State: models.StateValidating, FinalScore: 30}
	next, changed := NextState(s, testFloors)
	assert.False(t, changed)
	assert.Equal(t, models.StateValidating, next)
}

func TestNextState_QualifiesAtFloors(t *testing.T) {
	s := models.Strategy{
		State:       models.StateValidating,
		TotalTrades: 10,
		FinalScore:  60,
		WinRate:     50,
	}
	next, changed := NextState(s, testFloors)
	assert.True(t, changed)
	assert.Equal(t, models.StateQualified, next)
}

func TestNextState_EachFloorBlocksAlone(t *testing.T) {
	base := models.Strategy{
		State:       models.StateValidating,
		TotalTrades: 10,
		FinalScore:  60,
		WinRate:     50,
	}

	short := base
	short.TotalTrades = 9
	_, changed := NextState(short, testFloors)
	assert.False(t, changed)

	low := base
	low.FinalScore = 59.9
	_, changed = NextState(low, testFloors)
	assert.False(t, changed)

	losing := base
	losing.WinRate = 49
	_, changed = NextState(losing, testFloors)
	assert.False(t, changed)
}

// TestNextState_NeverPromotesToRealTrading: real_trading is reachable only
// through the explicit Promote transition, never automatically.
func TestNextState_NeverPromotesToRealTrading(t *testing.T) {
	for _, state := range []models.StrategyState{
		models.StateUnqualified, models.StateValidating,
		models.StateQualified, models.StateRealTrading, models.StateEliminated,
	} {
		s := models.Strategy{
			State:       state,
			TotalTrades: 1000,
			FinalScore:  95,
			WinRate:     90,
		}
		next, _ := NextState(s, testFloors)
		if state != models.StateRealTrading {
			assert.NotEqual(t, models.StateRealTrading, next, "from %s", state)
		}
	}
}

// TestNextState_Idempotent: re-running a transition whose target state is
// already reached is a no-op.
func TestNextState_Idempotent(t *testing.T) {
	for _, state := range []models.StrategyState{
		models.StateQualified, models.StateRealTrading, models.StateEliminated,
	} {
		s := models.Strategy{State: state, TotalTrades: 50, FinalScore: 90, WinRate: 80}
		next, changed := NextState(s, testFloors)
		assert.False(t, changed, "from %s", state)
		assert.Equal(t, state, next)
	}
}

// TestEliminateTx_ProtectedBlocked: a protected strategy is never eliminated;
// the attempt is a no-op, not an error, and touches no storage.
func TestEliminateTx_ProtectedBlocked(t *testing.T) {
	m := &Machine{floors: testFloors}
	s := models.Strategy{
		ID:         "prot-1",
		State:      models.StateValidating,
		Enabled:    true,
		Protected:  true,
		FinalScore: 5,
	}

	eliminated, err := m.EliminateTx(context.Background(), nil, &s)
	assert.NoError(t, err)
	assert.False(t, eliminated)
	assert.True(t, s.Enabled)
	assert.Equal(t, models.StateValidating, s.State)
}

// TestEliminateTx_AlreadyEliminated is an idempotent no-op.
func TestEliminateTx_AlreadyEliminated(t *testing.T) {
	m := &Machine{floors: testFloors}
	s := models.Strategy{ID: "dead-1", State: models.StateEliminated}

	eliminated, err := m.EliminateTx(context.Background(), nil, &s)
	assert.NoError(t, err)
	assert.False(t, eliminated)
}
