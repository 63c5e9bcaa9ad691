package advisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumtrader/quantumtrader/internal/core"
	"github.com/quantumtrader/quantumtrader/internal/portfolio"
)

func stateWithRSI(rsi map[string]float64) core.MarketState {
	entries := make(map[string]core.Entry, len(rsi))
	for sym, v := range rsi {
		entries[sym] = core.Entry{
			Quote:      core.Quote{Symbol: sym, Price: 100.0, Time: time.Now()},
			Indicators: core.IndicatorSet{Symbol: sym, RSI: v},
		}
	}
	return core.MarketState{Time: time.Now(), Entries: entries}
}

func flatView(cash float64) portfolio.View {
	return portfolio.View{Cash: cash, Value: cash, Positions: map[string]portfolio.Position{}}
}

func TestThresholds(t *testing.T) {
	tests := []struct {
		mode      core.StrategyMode
		buyBelow  float64
		sellAbove float64
	}{
		{core.ModeConservative, 25, 75},
		{core.ModeBalanced, 30, 70},
		{core.ModeAggressive, 35, 65},
		{"", 30, 70},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			buy, sell := thresholds(tt.mode)
			assert.Equal(t, tt.buyBelow, buy)
			assert.Equal(t, tt.sellAbove, sell)
		})
	}
}

func TestRuleBased_BuysMostOversold(t *testing.T) {
	rb := NewRuleBased()
	state := stateWithRSI(map[string]float64{
		"AAPL": 28.0,
		"MSFT": 22.0,
		"TSLA": 55.0,
	})

	d, err := rb.Advise(context.Background(), state, flatView(100000), core.ModeBalanced)
	require.NoError(t, err)

	assert.Equal(t, core.ActionBuy, d.Action)
	assert.Equal(t, "MSFT", d.Symbol)
	// 10% of $100k cash at $100 a share.
	assert.Equal(t, int64(100), d.Quantity)
	assert.GreaterOrEqual(t, d.Confidence, 0.6)
	assert.Equal(t, RuleBasedName, d.Provider)
}

func TestRuleBased_SellsOverboughtHolding(t *testing.T) {
	rb := NewRuleBased()
	state := stateWithRSI(map[string]float64{
		"AAPL": 78.0,
		"MSFT": 50.0,
	})
	view := portfolio.View{
		Cash:  50000,
		Value: 60000,
		Positions: map[string]portfolio.Position{
			"AAPL": {Symbol: "AAPL", Quantity: 25, AvgCost: 90.0},
		},
	}

	d, err := rb.Advise(context.Background(), state, view, core.ModeBalanced)
	require.NoError(t, err)

	assert.Equal(t, core.ActionSell, d.Action)
	assert.Equal(t, "AAPL", d.Symbol)
	assert.Equal(t, int64(25), d.Quantity)
}

func TestRuleBased_OverboughtWithoutPositionIsNotSold(t *testing.T) {
	rb := NewRuleBased()
	state := stateWithRSI(map[string]float64{"AAPL": 85.0})

	d, err := rb.Advise(context.Background(), state, flatView(100000), core.ModeBalanced)
	require.NoError(t, err)

	assert.Equal(t, core.ActionHold, d.Action)
}

func TestRuleBased_NeutralMarketHolds(t *testing.T) {
	rb := NewRuleBased()
	state := stateWithRSI(map[string]float64{
		"AAPL": 45.0,
		"MSFT": 55.0,
	})

	d, err := rb.Advise(context.Background(), state, flatView(100000), core.ModeBalanced)
	require.NoError(t, err)

	assert.Equal(t, core.ActionHold, d.Action)
	assert.Zero(t, d.Quantity)
}

func TestRuleBased_ModeShiftsThresholds(t *testing.T) {
	rb := NewRuleBased()
	// RSI 33 is oversold only for the aggressive 35 threshold.
	state := stateWithRSI(map[string]float64{"AAPL": 33.0})

	d, err := rb.Advise(context.Background(), state, flatView(100000), core.ModeBalanced)
	require.NoError(t, err)
	assert.Equal(t, core.ActionHold, d.Action)

	d, err = rb.Advise(context.Background(), state, flatView(100000), core.ModeAggressive)
	require.NoError(t, err)
	assert.Equal(t, core.ActionBuy, d.Action)
}

func TestRuleBased_InsufficientCashHolds(t *testing.T) {
	rb := NewRuleBased()
	state := stateWithRSI(map[string]float64{"AAPL": 20.0})

	// 10% of $500 does not cover one $100 share.
	d, err := rb.Advise(context.Background(), state, flatView(500), core.ModeBalanced)
	require.NoError(t, err)

	assert.Equal(t, core.ActionHold, d.Action)
}

func TestRuleBased_Deterministic(t *testing.T) {
	rb := NewRuleBased()
	state := stateWithRSI(map[string]float64{
		"AAPL": 28.0,
		"MSFT": 28.0,
		"TSLA": 28.0,
	})

	first, err := rb.Advise(context.Background(), state, flatView(100000), core.ModeBalanced)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		d, err := rb.Advise(context.Background(), state, flatView(100000), core.ModeBalanced)
		require.NoError(t, err)
		assert.Equal(t, first.Symbol, d.Symbol)
		assert.Equal(t, first.Action, d.Action)
		assert.Equal(t, first.Quantity, d.Quantity)
	}
}
