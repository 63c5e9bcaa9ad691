package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/quantumtrader/quantumtrader/internal/core"
	"github.com/quantumtrader/quantumtrader/internal/llm"
	"github.com/quantumtrader/quantumtrader/internal/portfolio"
)

// LLMAdvisor asks a language model for one trade decision per tick.
type LLMAdvisor struct {
	provider llm.Provider
	now      func() time.Time
}

// NewLLMAdvisor wraps an llm.Provider as an Advisor.
func NewLLMAdvisor(provider llm.Provider) *LLMAdvisor {
	return &LLMAdvisor{provider: provider, now: time.Now}
}

// Name implements Advisor.
func (a *LLMAdvisor) Name() string {
	return a.provider.Name()
}

// decisionPayload is the JSON shape the model is asked to return.
type decisionPayload struct {
	Action     string  `json:"action"`
	Symbol     string  `json:"symbol"`
	Quantity   int64   `json:"quantity"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Advise builds a market and portfolio prompt, requests JSON and
// parses the model's answer. Responses that cannot be interpreted at
// all yield ErrProviderUnavailable so the selector falls through.
func (a *LLMAdvisor) Advise(ctx context.Context, state core.MarketState, view portfolio.View, mode core.StrategyMode) (*core.Decision, error) {
	resp, err := a.provider.Complete(ctx, llm.Request{
		System:      decisionSystemPrompt,
		Prompt:      buildPrompt(state, view, mode),
		MaxTokens:   1024,
		Temperature: 0.3,
		JSONMode:    true,
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, core.WrapError(core.ErrProviderTimeout, err)
		}
		return nil, core.WrapError(core.ErrProviderUnavailable, err)
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return nil, core.WrapError(core.ErrProviderUnavailable, fmt.Errorf("empty response from %s", a.provider.Name()))
	}

	var payload decisionPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		// Some models wrap the JSON in prose; fall back to keyword
		// extraction before giving up.
		return a.parseTextResponse(content, mode)
	}

	action := core.Action(strings.ToUpper(strings.TrimSpace(payload.Action)))
	switch action {
	case core.ActionBuy, core.ActionSell, core.ActionHold:
	default:
		return nil, core.WrapError(core.ErrProviderUnavailable,
			fmt.Errorf("unrecognized action %q from %s", payload.Action, a.provider.Name()))
	}

	d := &core.Decision{
		Action:      action,
		Symbol:      strings.ToUpper(strings.TrimSpace(payload.Symbol)),
		Quantity:    payload.Quantity,
		Confidence:  payload.Confidence,
		Mode:        mode,
		Reasoning:   payload.Reasoning,
		Provider:    a.provider.Name(),
		GeneratedAt: a.now(),
	}

	// An actionable decision for a symbol outside the snapshot cannot
	// be priced; hold instead of guessing.
	if d.IsActionable() {
		if _, ok := state.Entries[d.Symbol]; !ok {
			d.Action = core.ActionHold
			d.Quantity = 0
			d.Reasoning = fmt.Sprintf("model chose untracked symbol %s; holding", d.Symbol)
		}
	}

	return d, nil
}

// parseTextResponse recovers a decision from a non-JSON reply. Prose
// that reads as HOLD is usable as-is. Prose urging a trade carries no
// parseable symbol or quantity, so it cannot be executed; the error
// hands the tick to the next advisor in the chain.
func (a *LLMAdvisor) parseTextResponse(text string, mode core.StrategyMode) (*core.Decision, error) {
	upper := strings.ToUpper(text)
	wantsBuy := strings.Contains(upper, "BUY")
	wantsSell := strings.Contains(upper, "SELL")
	if wantsBuy != wantsSell {
		action := core.ActionBuy
		if wantsSell {
			action = core.ActionSell
		}
		return nil, core.WrapError(core.ErrProviderUnavailable,
			fmt.Errorf("unstructured %s response suggests %s without a tradable payload", a.provider.Name(), action))
	}

	reasoning := text
	if len(reasoning) > 500 {
		reasoning = reasoning[:500]
	}
	return &core.Decision{
		Action:      core.ActionHold,
		Confidence:  0.5,
		Mode:        mode,
		Reasoning:   reasoning,
		Provider:    a.provider.Name(),
		GeneratedAt: a.now(),
	}, nil
}

func buildPrompt(state core.MarketState, view portfolio.View, mode core.StrategyMode) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## Strategy Mode: %s\n\n", mode))

	sb.WriteString("## Market Snapshot:\n")
	symbols := state.Symbols()
	sort.Strings(symbols)
	for _, sym := range symbols {
		entry := state.Entries[sym]
		q := entry.Quote
		line := fmt.Sprintf("- **%s**: $%.2f (%+.2f%%), RSI %.1f, volume %d",
			sym, q.Price, q.ChangePct, entry.Indicators.RSI, q.Volume)
		if entry.Indicators.SMA20 > 0 {
			line += fmt.Sprintf(", SMA20 $%.2f", entry.Indicators.SMA20)
		}
		if q.Stale {
			line += " [stale]"
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Portfolio:\n")
	sb.WriteString(fmt.Sprintf("- Cash: $%.2f\n", view.Cash))
	sb.WriteString(fmt.Sprintf("- Total value: $%.2f (P&L %+.2f)\n", view.Value, view.PnL))
	if len(view.Positions) == 0 {
		sb.WriteString("- No open positions\n")
	}
	held := make([]string, 0, len(view.Positions))
	for sym := range view.Positions {
		held = append(held, sym)
	}
	sort.Strings(held)
	for _, sym := range held {
		pos := view.Positions[sym]
		sb.WriteString(fmt.Sprintf("- %s: %d shares @ $%.2f avg cost\n", sym, pos.Quantity, pos.AvgCost))
	}
	sb.WriteString("\n")

	sb.WriteString("## Task:\n")
	sb.WriteString("Recommend at most one trade for this tick, or HOLD.\n")
	sb.WriteString("Only recommend SELL for symbols currently held, and size BUY orders within available cash.\n")
	sb.WriteString("Respond with JSON containing: action (BUY/SELL/HOLD), symbol, quantity, confidence (0-1), reasoning.\n")

	return sb.String()
}

const decisionSystemPrompt = `You are a trading decision engine managing a simulated stock portfolio. Each tick you receive a market snapshot with technical indicators and the current portfolio state, and you respond with at most one trade.

Consider:
1. RSI extremes - below 30 suggests oversold, above 70 suggests overbought
2. Momentum - intraday change and volume shifts
3. Portfolio balance - avoid concentrating in a single symbol
4. Strategy mode - conservative trades less and smaller, aggressive trades more

Always respond with valid JSON in this format:
{
  "action": "BUY" | "SELL" | "HOLD",
  "symbol": "TICKER",
  "quantity": 10,
  "confidence": 0.0-1.0,
  "reasoning": "explanation of your decision"
}

HOLD is appropriate when no symbol shows a clear signal. Never invent symbols outside the snapshot.`
