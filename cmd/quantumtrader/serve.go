package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantumtrader/quantumtrader/internal/advisor"
	"github.com/quantumtrader/quantumtrader/internal/config"
	"github.com/quantumtrader/quantumtrader/internal/engine"
	"github.com/quantumtrader/quantumtrader/internal/feed"
	"github.com/quantumtrader/quantumtrader/internal/llm/factory"
	"github.com/quantumtrader/quantumtrader/internal/logger"
	"github.com/quantumtrader/quantumtrader/internal/metrics"
	"github.com/quantumtrader/quantumtrader/internal/portfolio"
	"github.com/quantumtrader/quantumtrader/internal/risk"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the trading simulation loop",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	eng, err := buildEngine(cfg, log, reg)
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}

	log.Info("starting QuantumTrader",
		zap.Strings("symbols", cfg.Market.Symbols),
		zap.Duration("interval", cfg.Market.UpdateInterval),
		zap.Strings("providers", cfg.AI.Providers),
	)

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg, reg, log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- eng.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutting down QuantumTrader")
	case err := <-errCh:
		return err
	}

	eng.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	select {
	case <-errCh:
	case <-shutdownCtx.Done():
		log.Warn("shutdown timed out")
	}
	return nil
}

func loadConfig(log *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Warn("no config file specified, using defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// buildEngine wires the full component graph from configuration.
func buildEngine(cfg *config.Config, log *zap.Logger, reg *metrics.Registry) (*engine.Engine, error) {
	f := feed.New(feed.NewYahooSource(), feed.Config{
		TTL:           cfg.Market.UpdateInterval,
		FetchTimeout:  cfg.Market.FetchTimeout,
		Concurrency:   cfg.Market.FetchConcurrency,
		RatePerSecond: cfg.Market.RatePerSecond,
	}, log.Named("feed"), reg)

	providers, err := factory.Providers(cfg.AI)
	if err != nil {
		return nil, err
	}
	advisors := make([]advisor.Advisor, 0, len(providers))
	for _, p := range providers {
		advisors = append(advisors, advisor.NewLLMAdvisor(p))
		log.Info("decision provider enabled", zap.String("provider", p.Name()))
	}
	sel := advisor.NewSelector(advisors, cfg.AI.Timeout, cfg.AI.MinConfidence, log.Named("advisor"), reg)

	rm := risk.NewManager(cfg.Risk, log.Named("risk"))
	ledger := portfolio.NewLedger(cfg.Portfolio.InitialCapital)
	exec := portfolio.NewExecutor(ledger, log.Named("executor"), reg)

	return engine.New(cfg, f, sel, rm, ledger, exec, log.Named("engine"), reg), nil
}

func serveMetrics(cfg *config.Config, reg *metrics.Registry, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg.Registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("metrics listener starting", zap.String("addr", addr), zap.String("path", cfg.Metrics.Path))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics listener failed", zap.Error(err))
	}
}
