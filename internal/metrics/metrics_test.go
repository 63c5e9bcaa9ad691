package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r)

	// All domain metrics should gather without duplicate registration.
	families, err := r.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRegistry_Recorders(t *testing.T) {
	r := NewRegistry()

	r.RecordTick(0.5)
	r.RecordTickSkipped()
	r.RecordCacheHit()
	r.RecordCacheMiss()
	r.RecordStaleQuote()
	r.RecordDemoQuote()
	r.RecordProviderCall("openai", "ok")
	r.RecordProviderCall("claude", "timeout")
	r.RecordFallback()
	r.RecordTrade("human", "BUY")
	r.RecordTradeRejected("human", "INSUFFICIENT_FUNDS")
	r.SetPortfolioValue("ai", 105000)
	r.SetPortfolioPnL("ai", 5000)

	families, err := r.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}

	for _, want := range []string{
		"quantumtrader_ticks_total",
		"quantumtrader_ticks_skipped_total",
		"quantumtrader_quote_cache_hits_total",
		"quantumtrader_provider_calls_total",
		"quantumtrader_provider_fallbacks_total",
		"quantumtrader_trades_executed_total",
		"quantumtrader_portfolio_value",
	} {
		assert.True(t, names[want], "missing metric family %s", want)
	}
}
