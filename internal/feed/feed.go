package feed

import (
	"context"
	"sync"
	"time"

	"github.com/quantumtrader/quantumtrader/internal/core"
	"github.com/quantumtrader/quantumtrader/internal/indicator"
	"github.com/quantumtrader/quantumtrader/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Config holds feed tuning parameters.
type Config struct {
	// TTL is how long a snapshot stays valid; equals the update interval.
	TTL time.Duration
	// FetchTimeout bounds each external quote call.
	FetchTimeout time.Duration
	// Concurrency bounds parallel fetches within a snapshot.
	Concurrency int
	// RatePerSecond throttles calls to the live source. Zero means no limit.
	RatePerSecond float64
	// HistoryWindow is how many closes are kept per symbol.
	HistoryWindow int
	// OpenFn overrides the market hours gate. Nil uses MarketOpen.
	OpenFn func(time.Time) bool
}

// DefaultConfig returns feed defaults sized for RSI-14.
func DefaultConfig() Config {
	return Config{
		TTL:           30 * time.Second,
		FetchTimeout:  10 * time.Second,
		Concurrency:   4,
		RatePerSecond: 5,
		HistoryWindow: 64,
	}
}

// history tracks per-symbol close and volume observations.
type history struct {
	closes     []float64
	prevVolume int64
	lastVolume int64
	seeded     bool
}

// Feed fetches and caches quotes for the symbol universe. Failures never
// surface as hard errors; the feed degrades to stale cached quotes or
// deterministic demo data.
type Feed struct {
	live    Source
	demo    Source
	cfg     Config
	limiter *rate.Limiter
	log     *zap.Logger
	metrics *metrics.Registry

	now    func() time.Time
	openFn func(time.Time) bool

	mu        sync.Mutex
	cache     map[string]core.Quote
	hist      map[string]*history
	lastState core.MarketState
	lastAt    time.Time
}

// New creates a feed over the given live source. A nil live source leaves
// only demo data, which is valid for offline operation.
func New(live Source, cfg Config, log *zap.Logger, m *metrics.Registry) *Feed {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultConfig().FetchTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultConfig().HistoryWindow
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	openFn := MarketOpen
	if cfg.OpenFn != nil {
		openFn = cfg.OpenFn
	}

	return &Feed{
		live:    live,
		demo:    NewDemoSource(),
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, cfg.Concurrency),
		log:     log,
		metrics: m,
		now:     time.Now,
		openFn:  openFn,
		cache:   make(map[string]core.Quote),
		hist:    make(map[string]*history),
	}
}

// MarketOpen reports whether the market hours gate is currently open.
func (f *Feed) MarketOpen() bool {
	return f.openFn(f.now())
}

type fetchResult struct {
	symbol string
	quote  *core.Quote
	seed   []float64
	err    error
}

// Snapshot returns the market state for the given symbols. A snapshot
// younger than the TTL is returned as-is without external calls. The
// returned error is only ever the caller's context error.
func (f *Feed) Snapshot(ctx context.Context, symbols []string) (core.MarketState, error) {
	now := f.now()

	f.mu.Lock()
	if !f.lastAt.IsZero() && now.Sub(f.lastAt) < f.cfg.TTL && f.covers(symbols) {
		state := f.lastState.Clone()
		f.mu.Unlock()
		if f.metrics != nil {
			f.metrics.RecordCacheHit()
		}
		return state, nil
	}
	needSeed := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		h, ok := f.hist[sym]
		needSeed[sym] = !ok || !h.seeded
	}
	f.mu.Unlock()

	if f.metrics != nil {
		f.metrics.RecordCacheMiss()
	}

	open := f.openFn(now)
	results := make([]fetchResult, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)
	for i, sym := range symbols {
		g.Go(func() error {
			results[i] = f.fetchOne(gctx, sym, open, needSeed[sym])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return core.MarketState{}, err
	}
	if err := ctx.Err(); err != nil {
		return core.MarketState{}, err
	}

	return f.assemble(ctx, now, results), nil
}

// fetchOne retrieves one symbol's quote and, when needed, its close
// history seed. It never fails; degraded results carry err for logging.
func (f *Feed) fetchOne(ctx context.Context, symbol string, open, needSeed bool) fetchResult {
	res := fetchResult{symbol: symbol}

	if f.live == nil || !open {
		res.err = core.ErrDataUnavailable
	} else {
		callCtx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
		defer cancel()

		if err := f.limiter.Wait(callCtx); err != nil {
			res.err = core.WrapError(core.ErrDataUnavailable, err)
		} else if q, err := f.live.FetchQuote(callCtx, symbol); err != nil {
			res.err = core.WrapError(core.ErrDataUnavailable, err)
		} else {
			res.quote = q
		}
	}

	if needSeed {
		res.seed = f.seedCloses(ctx, symbol, open)
	}
	return res
}

// seedCloses fetches initial close history, preferring the live source.
// The window covers the longest indicator lookback.
func (f *Feed) seedCloses(ctx context.Context, symbol string, open bool) []float64 {
	n := indicator.SMAPeriod + 1

	if f.live != nil && open {
		callCtx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
		defer cancel()
		if closes, err := f.live.FetchCloses(callCtx, symbol, n); err == nil && len(closes) > 0 {
			return closes
		}
		f.log.Debug("close history seed fell back to demo", zap.String("symbol", symbol))
	}

	closes, err := f.demo.FetchCloses(ctx, symbol, n)
	if err != nil {
		return nil
	}
	return closes
}

// assemble joins fetch results into a snapshot under the feed lock.
func (f *Feed) assemble(ctx context.Context, now time.Time, results []fetchResult) core.MarketState {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := make(map[string]core.Entry, len(results))
	for _, res := range results {
		h := f.hist[res.symbol]
		if h == nil {
			h = &history{}
			f.hist[res.symbol] = h
		}
		if !h.seeded && len(res.seed) > 0 {
			h.closes = res.seed
			h.seeded = true
		}

		quote, fresh := f.resolveQuote(ctx, res)

		// Change versus the prior close, matching quote conventions.
		if n := len(h.closes); n > 0 && h.closes[n-1] != 0 && fresh {
			prev := h.closes[n-1]
			quote.Change = quote.Price - prev
			quote.ChangePct = (quote.Price - prev) / prev * 100
		}

		// A stale or demo price is not a new observation; indicators on
		// degraded ticks come from recorded history alone.
		closes := append([]float64(nil), h.closes...)
		if fresh {
			closes = append(closes, quote.Price)
		}
		set := indicator.Compute(res.symbol, closes, h.lastVolume, quote.Volume)

		if fresh {
			f.cache[res.symbol] = quote
			h.closes = closes
			if len(h.closes) > f.cfg.HistoryWindow {
				h.closes = h.closes[len(h.closes)-f.cfg.HistoryWindow:]
			}
			h.prevVolume = h.lastVolume
			h.lastVolume = quote.Volume
		}

		entries[res.symbol] = core.Entry{Quote: quote, Indicators: set}
	}

	f.lastState = core.MarketState{Time: now, Entries: entries}
	f.lastAt = now
	return f.lastState.Clone()
}

// resolveQuote picks the best available quote: live, cached-stale, demo.
func (f *Feed) resolveQuote(ctx context.Context, res fetchResult) (core.Quote, bool) {
	if res.err == nil && res.quote != nil && res.quote.IsValid() {
		return *res.quote, true
	}

	if cached, ok := f.cache[res.symbol]; ok {
		cached.Stale = true
		if f.metrics != nil {
			f.metrics.RecordStaleQuote()
		}
		f.log.Debug("serving stale quote",
			zap.String("symbol", res.symbol),
			zap.Error(res.err),
		)
		return cached, false
	}

	demo, err := f.demo.FetchQuote(ctx, res.symbol)
	if err != nil {
		// Context gone; return a zero quote rather than blocking shutdown.
		return core.Quote{Symbol: res.symbol, Time: f.now(), Stale: true, Source: "demo"}, false
	}
	demo.Stale = true
	if f.metrics != nil {
		f.metrics.RecordDemoQuote()
	}
	return *demo, false
}

// covers reports whether the last snapshot contains every symbol.
func (f *Feed) covers(symbols []string) bool {
	for _, sym := range symbols {
		if _, ok := f.lastState.Entries[sym]; !ok {
			return false
		}
	}
	return true
}
