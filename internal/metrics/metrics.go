package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// Scheduler metrics
	ticksTotal   prometheus.Counter
	ticksSkipped prometheus.Counter
	tickDuration prometheus.Histogram

	// Feed metrics
	quoteCacheHits   prometheus.Counter
	quoteCacheMisses prometheus.Counter
	staleQuotes      prometheus.Counter
	demoQuotes       prometheus.Counter

	// Advisor metrics
	providerCalls     *prometheus.CounterVec
	providerFallbacks prometheus.Counter

	// Trading metrics
	tradesExecuted *prometheus.CounterVec
	tradesRejected *prometheus.CounterVec
	portfolioValue *prometheus.GaugeVec
	portfolioPnL   *prometheus.GaugeVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		ticksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quantumtrader_ticks_total",
				Help: "Total number of scheduler ticks completed",
			},
		),
		ticksSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quantumtrader_ticks_skipped_total",
				Help: "Ticks skipped because the previous tick was still running",
			},
		),
		tickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quantumtrader_tick_duration_seconds",
				Help:    "Tick duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		quoteCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quantumtrader_quote_cache_hits_total",
				Help: "Quote cache hits within TTL",
			},
		),
		quoteCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quantumtrader_quote_cache_misses_total",
				Help: "Quote cache misses requiring an external fetch",
			},
		),
		staleQuotes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quantumtrader_stale_quotes_total",
				Help: "Quotes served stale due to feed degradation",
			},
		),
		demoQuotes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quantumtrader_demo_quotes_total",
				Help: "Synthetic demo quotes served",
			},
		),

		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantumtrader_provider_calls_total",
				Help: "Decision provider calls",
			},
			[]string{"provider", "status"},
		),
		providerFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quantumtrader_provider_fallbacks_total",
				Help: "Falls back to the rule-based provider",
			},
		),

		tradesExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantumtrader_trades_executed_total",
				Help: "Trades applied to a portfolio",
			},
			[]string{"originator", "side"},
		),
		tradesRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantumtrader_trades_rejected_total",
				Help: "Trade requests rejected by validation",
			},
			[]string{"originator", "reason"},
		),
		portfolioValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quantumtrader_portfolio_value",
				Help: "Current total portfolio value",
			},
			[]string{"portfolio"},
		),
		portfolioPnL: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quantumtrader_portfolio_pnl",
				Help: "Current portfolio profit and loss",
			},
			[]string{"portfolio"},
		),
	}

	reg.MustRegister(r.ticksTotal)
	reg.MustRegister(r.ticksSkipped)
	reg.MustRegister(r.tickDuration)
	reg.MustRegister(r.quoteCacheHits)
	reg.MustRegister(r.quoteCacheMisses)
	reg.MustRegister(r.staleQuotes)
	reg.MustRegister(r.demoQuotes)
	reg.MustRegister(r.providerCalls)
	reg.MustRegister(r.providerFallbacks)
	reg.MustRegister(r.tradesExecuted)
	reg.MustRegister(r.tradesRejected)
	reg.MustRegister(r.portfolioValue)
	reg.MustRegister(r.portfolioPnL)

	return r
}

// RecordTick records a completed tick and its duration.
func (r *Registry) RecordTick(duration float64) {
	r.ticksTotal.Inc()
	r.tickDuration.Observe(duration)
}

// RecordTickSkipped records a tick skipped due to overlap.
func (r *Registry) RecordTickSkipped() {
	r.ticksSkipped.Inc()
}

// RecordCacheHit records a quote cache hit.
func (r *Registry) RecordCacheHit() {
	r.quoteCacheHits.Inc()
}

// RecordCacheMiss records a quote cache miss.
func (r *Registry) RecordCacheMiss() {
	r.quoteCacheMisses.Inc()
}

// RecordStaleQuote records a quote served past its freshness window.
func (r *Registry) RecordStaleQuote() {
	r.staleQuotes.Inc()
}

// RecordDemoQuote records a synthetic quote serve.
func (r *Registry) RecordDemoQuote() {
	r.demoQuotes.Inc()
}

// RecordProviderCall records a decision provider call outcome.
func (r *Registry) RecordProviderCall(provider, status string) {
	r.providerCalls.WithLabelValues(provider, status).Inc()
}

// RecordFallback records a fall back to the rule-based provider.
func (r *Registry) RecordFallback() {
	r.providerFallbacks.Inc()
}

// RecordTrade records an executed trade.
func (r *Registry) RecordTrade(originator, side string) {
	r.tradesExecuted.WithLabelValues(originator, side).Inc()
}

// RecordTradeRejected records a rejected trade request.
func (r *Registry) RecordTradeRejected(originator, reason string) {
	r.tradesRejected.WithLabelValues(originator, reason).Inc()
}

// SetPortfolioValue sets the value gauge for a portfolio.
func (r *Registry) SetPortfolioValue(portfolio string, value float64) {
	r.portfolioValue.WithLabelValues(portfolio).Set(value)
}

// SetPortfolioPnL sets the P&L gauge for a portfolio.
func (r *Registry) SetPortfolioPnL(portfolio string, pnl float64) {
	r.portfolioPnL.WithLabelValues(portfolio).Set(pnl)
}
