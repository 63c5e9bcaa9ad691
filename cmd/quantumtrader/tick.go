package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/quantumtrader/quantumtrader/internal/core"
	"github.com/quantumtrader/quantumtrader/internal/logger"
	"github.com/quantumtrader/quantumtrader/internal/metrics"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run a single simulation tick and print the result",
	RunE:  runTick,
}

func init() {
	rootCmd.AddCommand(tickCmd)
}

func runTick(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	eng, err := buildEngine(cfg, log, metrics.NewRegistry())
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Market.FetchTimeout+cfg.AI.Timeout)
	defer cancel()

	eng.RunOnce(ctx)

	state, err := eng.GetMarketData(ctx)
	if err != nil {
		return err
	}

	symbols := state.Symbols()
	sort.Strings(symbols)
	fmt.Printf("Snapshot %s (%d symbols)\n", state.Time.Format("15:04:05"), len(symbols))
	for _, sym := range symbols {
		entry := state.Entries[sym]
		q := entry.Quote
		marker := ""
		if q.Stale {
			marker = " *"
		}
		fmt.Printf("  %-6s $%9.2f  %+6.2f%%  RSI %5.1f  vol %d%s\n",
			sym, q.Price, q.ChangePct, entry.Indicators.RSI, q.Volume, marker)
	}

	for _, id := range []core.Originator{core.OriginatorAI, core.OriginatorHuman} {
		view, history, err := eng.GetPortfolio(id)
		if err != nil {
			return err
		}
		fmt.Printf("\n%s portfolio: cash $%.2f, value $%.2f, P&L %+.2f, trades %d\n",
			id, view.Cash, view.Value, view.PnL, len(history))
		if len(history) > 0 {
			last := history[len(history)-1]
			fmt.Printf("  last trade: %s %d %s @ $%.2f (%s)\n",
				last.Side, last.Quantity, last.Symbol, last.Price, last.Reasoning)
		}
	}

	status := eng.GetStatus()
	fmt.Printf("\nmarket open: %v, data source: %s, provider: %s\n",
		status.MarketOpen, status.DataSource, status.ActiveProvider)
	return nil
}
