package advisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumtrader/quantumtrader/internal/core"
	"github.com/quantumtrader/quantumtrader/internal/llm"
)

// stubProvider returns a canned response or error, or blocks until the
// context is cancelled when block is set.
type stubProvider struct {
	name    string
	content string
	err     error
	block   bool
}

func (s *stubProvider) Name() string {
	if s.name == "" {
		return "stub"
	}
	return s.name
}

func (s *stubProvider) Complete(ctx context.Context, _ llm.Request) (*llm.Response, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.content}, nil
}

func TestLLMAdvisor_ParsesJSON(t *testing.T) {
	a := NewLLMAdvisor(&stubProvider{
		content: `{"action":"BUY","symbol":"AAPL","quantity":10,"confidence":0.82,"reasoning":"oversold bounce"}`,
	})
	state := stateWithRSI(map[string]float64{"AAPL": 28.0})

	d, err := a.Advise(context.Background(), state, flatView(100000), core.ModeBalanced)
	require.NoError(t, err)

	assert.Equal(t, core.ActionBuy, d.Action)
	assert.Equal(t, "AAPL", d.Symbol)
	assert.Equal(t, int64(10), d.Quantity)
	assert.Equal(t, 0.82, d.Confidence)
	assert.Equal(t, "oversold bounce", d.Reasoning)
	assert.Equal(t, "stub", d.Provider)
}

func TestLLMAdvisor_NormalizesActionAndSymbol(t *testing.T) {
	a := NewLLMAdvisor(&stubProvider{
		content: `{"action":"buy","symbol":"aapl","quantity":5,"confidence":0.7,"reasoning":"r"}`,
	})
	state := stateWithRSI(map[string]float64{"AAPL": 28.0})

	d, err := a.Advise(context.Background(), state, flatView(100000), core.ModeBalanced)
	require.NoError(t, err)

	assert.Equal(t, core.ActionBuy, d.Action)
	assert.Equal(t, "AAPL", d.Symbol)
}

func TestLLMAdvisor_ProseHoldIsRecovered(t *testing.T) {
	a := NewLLMAdvisor(&stubProvider{
		content: "No clear signal in this snapshot, I would stay put for now.",
	})
	state := stateWithRSI(map[string]float64{"AAPL": 50.0})

	d, err := a.Advise(context.Background(), state, flatView(100000), core.ModeBalanced)
	require.NoError(t, err)

	assert.Equal(t, core.ActionHold, d.Action)
	assert.Equal(t, "stub", d.Provider)
}

func TestLLMAdvisor_ProseTradeIsUnavailable(t *testing.T) {
	a := NewLLMAdvisor(&stubProvider{
		content: "I would BUY some AAPL here, the market looks oversold.",
	})
	state := stateWithRSI(map[string]float64{"AAPL": 28.0})

	_, err := a.Advise(context.Background(), state, flatView(100000), core.ModeBalanced)
	assert.ErrorIs(t, err, core.ErrProviderUnavailable)
}

func TestLLMAdvisor_EmptyResponse(t *testing.T) {
	a := NewLLMAdvisor(&stubProvider{content: "  "})
	state := stateWithRSI(map[string]float64{"AAPL": 50.0})

	_, err := a.Advise(context.Background(), state, flatView(100000), core.ModeBalanced)
	assert.ErrorIs(t, err, core.ErrProviderUnavailable)
}

func TestLLMAdvisor_UnknownAction(t *testing.T) {
	a := NewLLMAdvisor(&stubProvider{
		content: `{"action":"SHORT","symbol":"AAPL","quantity":10,"confidence":0.9}`,
	})
	state := stateWithRSI(map[string]float64{"AAPL": 50.0})

	_, err := a.Advise(context.Background(), state, flatView(100000), core.ModeBalanced)
	assert.ErrorIs(t, err, core.ErrProviderUnavailable)
}

func TestLLMAdvisor_ProviderError(t *testing.T) {
	a := NewLLMAdvisor(&stubProvider{err: errors.New("connection refused")})
	state := stateWithRSI(map[string]float64{"AAPL": 50.0})

	_, err := a.Advise(context.Background(), state, flatView(100000), core.ModeBalanced)
	assert.ErrorIs(t, err, core.ErrProviderUnavailable)
}

func TestLLMAdvisor_Timeout(t *testing.T) {
	a := NewLLMAdvisor(&stubProvider{block: true})
	state := stateWithRSI(map[string]float64{"AAPL": 50.0})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := a.Advise(ctx, state, flatView(100000), core.ModeBalanced)
	assert.ErrorIs(t, err, core.ErrProviderTimeout)
}

func TestLLMAdvisor_UntrackedSymbolHolds(t *testing.T) {
	a := NewLLMAdvisor(&stubProvider{
		content: `{"action":"BUY","symbol":"GME","quantity":10,"confidence":0.9,"reasoning":"to the moon"}`,
	})
	state := stateWithRSI(map[string]float64{"AAPL": 50.0})

	d, err := a.Advise(context.Background(), state, flatView(100000), core.ModeBalanced)
	require.NoError(t, err)

	assert.Equal(t, core.ActionHold, d.Action)
	assert.Contains(t, d.Reasoning, "GME")
}

func TestBuildPrompt(t *testing.T) {
	state := stateWithRSI(map[string]float64{"AAPL": 28.0, "MSFT": 72.0})

	prompt := buildPrompt(state, flatView(100000), core.ModeAggressive)

	assert.Contains(t, prompt, "aggressive")
	assert.Contains(t, prompt, "AAPL")
	assert.Contains(t, prompt, "MSFT")
	assert.Contains(t, prompt, "RSI 28.0")
	assert.Contains(t, prompt, "No open positions")
	assert.Contains(t, prompt, "JSON")
}
