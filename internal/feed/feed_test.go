package feed

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quantumtrader/quantumtrader/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource is a controllable in-memory quote source.
type stubSource struct {
	prices     map[string]float64
	closes     map[string][]float64
	err        error
	quoteCalls int32
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) FetchQuote(ctx context.Context, symbol string) (*core.Quote, error) {
	atomic.AddInt32(&s.quoteCalls, 1)
	if s.err != nil {
		return nil, s.err
	}
	price, ok := s.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("no data for symbol: %s", symbol)
	}
	return &core.Quote{
		Symbol: symbol,
		Price:  price,
		Volume: 1_000_000,
		Time:   time.Now(),
		Source: "stub",
	}, nil
}

func (s *stubSource) FetchCloses(ctx context.Context, symbol string, n int) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.closes[symbol], nil
}

func newTestFeed(t *testing.T, live Source) (*Feed, *time.Time) {
	t.Helper()
	f := New(live, Config{TTL: 30 * time.Second, Concurrency: 2}, nil, nil)
	now := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC) // Monday, market open
	cur := now
	f.now = func() time.Time { return cur }
	f.openFn = func(time.Time) bool { return true }
	return f, &cur
}

func TestMarketOpen(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday mid-session", time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC), true},
		{"monday at open", time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC), true},
		{"monday before open", time.Date(2025, 6, 2, 14, 29, 0, 0, time.UTC), false},
		{"monday at close", time.Date(2025, 6, 2, 21, 0, 0, 0, time.UTC), false},
		{"saturday", time.Date(2025, 6, 7, 16, 0, 0, 0, time.UTC), false},
		{"sunday", time.Date(2025, 6, 8, 16, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MarketOpen(tt.at))
		})
	}
}

func TestDemoSource_Deterministic(t *testing.T) {
	d := NewDemoSource()
	ctx := context.Background()

	a, err := d.FetchQuote(ctx, "AAPL")
	require.NoError(t, err)
	b, err := d.FetchQuote(ctx, "AAPL")
	require.NoError(t, err)

	assert.Equal(t, a.Price, b.Price)
	assert.Equal(t, a.Volume, b.Volume)
	assert.Equal(t, a.ChangePct, b.ChangePct)

	// Price stays near the reference table entry.
	assert.InDelta(t, 227.52, a.Price, 5.01)

	other, err := d.FetchQuote(ctx, "NVDA")
	require.NoError(t, err)
	assert.NotEqual(t, a.Price, other.Price)
}

func TestDemoSource_UnknownSymbol(t *testing.T) {
	d := NewDemoSource()

	q, err := d.FetchQuote(context.Background(), "ZZZZ")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, q.Price, 5.01)
}

func TestDemoSource_Closes(t *testing.T) {
	d := NewDemoSource()
	ctx := context.Background()

	a, err := d.FetchCloses(ctx, "MSFT", 15)
	require.NoError(t, err)
	require.Len(t, a, 15)

	b, err := d.FetchCloses(ctx, "MSFT", 15)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// The walk ends at the base price.
	assert.InDelta(t, 424.17, a[14], 0.01)
}

func TestSnapshot_CacheHitWithinTTL(t *testing.T) {
	src := &stubSource{prices: map[string]float64{"AAPL": 210, "MSFT": 420}}
	f, _ := newTestFeed(t, src)
	symbols := []string{"AAPL", "MSFT"}

	first, err := f.Snapshot(context.Background(), symbols)
	require.NoError(t, err)
	callsAfterFirst := atomic.LoadInt32(&src.quoteCalls)

	second, err := f.Snapshot(context.Background(), symbols)
	require.NoError(t, err)

	assert.Equal(t, first, second, "snapshot within TTL must be identical")
	assert.Equal(t, callsAfterFirst, atomic.LoadInt32(&src.quoteCalls),
		"cache hit must not trigger external calls")
}

func TestSnapshot_RefetchAfterTTL(t *testing.T) {
	src := &stubSource{prices: map[string]float64{"AAPL": 210}}
	f, cur := newTestFeed(t, src)

	_, err := f.Snapshot(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	before := atomic.LoadInt32(&src.quoteCalls)

	*cur = cur.Add(31 * time.Second)
	src.prices["AAPL"] = 215

	state, err := f.Snapshot(context.Background(), []string{"AAPL"})
	require.NoError(t, err)

	assert.Greater(t, atomic.LoadInt32(&src.quoteCalls), before)
	assert.Equal(t, 215.0, state.Entries["AAPL"].Quote.Price)
	assert.False(t, state.Entries["AAPL"].Quote.Stale)
}

func TestSnapshot_StaleQuoteOnFetchError(t *testing.T) {
	src := &stubSource{prices: map[string]float64{"AAPL": 210}}
	f, cur := newTestFeed(t, src)

	_, err := f.Snapshot(context.Background(), []string{"AAPL"})
	require.NoError(t, err)

	*cur = cur.Add(31 * time.Second)
	src.err = fmt.Errorf("connection refused")

	state, err := f.Snapshot(context.Background(), []string{"AAPL"})
	require.NoError(t, err, "feed failures must not surface as hard errors")

	q := state.Entries["AAPL"].Quote
	assert.True(t, q.Stale)
	assert.Equal(t, 210.0, q.Price, "stale quote keeps the last known price")
}

func TestSnapshot_DegradedTickKeepsIndicatorHistory(t *testing.T) {
	closes := []float64{44, 44.25, 44.5, 43.75, 44.65, 45.12, 45.34, 45.25, 45.85, 46.5, 46.25, 47.25, 46.5, 46.25, 47.75}
	src := &stubSource{
		prices: map[string]float64{"AAPL": 46},
		closes: map[string][]float64{"AAPL": closes},
	}
	f, cur := newTestFeed(t, src)

	fresh, err := f.Snapshot(context.Background(), []string{"AAPL"})
	require.NoError(t, err)

	*cur = cur.Add(31 * time.Second)
	src.err = fmt.Errorf("connection refused")

	degraded, err := f.Snapshot(context.Background(), []string{"AAPL"})
	require.NoError(t, err)

	require.True(t, degraded.Entries["AAPL"].Quote.Stale)
	assert.Equal(t, fresh.Entries["AAPL"].Indicators.RSI, degraded.Entries["AAPL"].Indicators.RSI,
		"a stale price is not a new observation and must not enter the close history")
	assert.Equal(t, fresh.Entries["AAPL"].Indicators.SMA20, degraded.Entries["AAPL"].Indicators.SMA20)
}

func TestSnapshot_DemoWhenMarketClosedAndNoCache(t *testing.T) {
	src := &stubSource{prices: map[string]float64{"AAPL": 210}}
	f, cur := newTestFeed(t, src)
	f.openFn = func(time.Time) bool { return false }

	state, err := f.Snapshot(context.Background(), []string{"AAPL"})
	require.NoError(t, err)

	q := state.Entries["AAPL"].Quote
	assert.True(t, q.Stale)
	assert.Equal(t, "demo", q.Source)
	assert.Zero(t, atomic.LoadInt32(&src.quoteCalls), "closed market must not hit the live source")

	// Repeated calls produce the same synthetic quote.
	*cur = cur.Add(31 * time.Second)
	again, err := f.Snapshot(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	assert.Equal(t, q.Price, again.Entries["AAPL"].Quote.Price)
	assert.Equal(t, q.Volume, again.Entries["AAPL"].Quote.Volume)
}

func TestSnapshot_IndicatorsFromHistory(t *testing.T) {
	closes := make([]float64, 15)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	src := &stubSource{
		prices: map[string]float64{"AAPL": 120},
		closes: map[string][]float64{"AAPL": closes},
	}
	f, _ := newTestFeed(t, src)

	state, err := f.Snapshot(context.Background(), []string{"AAPL"})
	require.NoError(t, err)

	ind := state.Entries["AAPL"].Indicators
	assert.Greater(t, ind.RSI, 99.0, "monotonic rise plus higher quote should saturate RSI")
	assert.Greater(t, ind.ChangePct, 0.0)

	q := state.Entries["AAPL"].Quote
	assert.InDelta(t, 120.0-114.0, q.Change, 1e-9, "change is versus the prior close")
}

func TestSnapshot_MixedSymbols(t *testing.T) {
	src := &stubSource{prices: map[string]float64{"AAPL": 210}} // MSFT missing
	f, _ := newTestFeed(t, src)

	state, err := f.Snapshot(context.Background(), []string{"AAPL", "MSFT"})
	require.NoError(t, err)

	assert.False(t, state.Entries["AAPL"].Quote.Stale)
	assert.True(t, state.Entries["MSFT"].Quote.Stale, "unresolvable symbol degrades to demo")
	assert.Equal(t, "demo", state.Entries["MSFT"].Quote.Source)
}

func TestSnapshot_ContextCancelled(t *testing.T) {
	src := &stubSource{prices: map[string]float64{"AAPL": 210}}
	f, _ := newTestFeed(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Snapshot(ctx, []string{"AAPL"})
	assert.Error(t, err)
}
