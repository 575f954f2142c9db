package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/backtest"
	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/feed"
	"github.com/rustyeddy/papertrader/market"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay historical candles through the trading pipeline",
	Long: `Backtest replays candle datasets through the exact same cycle the paper
loop uses: signal, size, risk-check, execute, record. Bars are merged
across symbols by timestamp, so multi-asset datasets interleave the way
they would have in real time.

Example:
  papertrader backtest -f config.yaml -d BTC-USD=data/btcusd.csv.xz --close-end`,
	RunE: runBacktest,
}

var (
	btConfigPath string
	btDatasets   []string
	btCloseEnd   bool
	btMinWindow  int
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btConfigPath, "config", "f", "", "path to config file (YAML, JSON or TOML) (required)")
	backtestCmd.Flags().StringArrayVarP(&btDatasets, "data", "d", nil, "dataset as SYMBOL=path.csv[.xz], repeatable (required)")
	backtestCmd.Flags().BoolVar(&btCloseEnd, "close-end", true, "close all open positions at end of replay")
	backtestCmd.Flags().IntVar(&btMinWindow, "min-window", 1, "bars required before strategies start signaling")

	backtestCmd.MarkFlagRequired("config")
	backtestCmd.MarkFlagRequired("data")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(btConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	candles, err := parseDatasets(btDatasets)
	if err != nil {
		return err
	}

	j, err := buildJournal(cfg)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	b := buildBroker(cfg, j)
	eng, err := buildEngine(cfg, b, nil, logger)
	if err != nil {
		return err
	}

	runner := &backtest.Runner{
		Engine:  eng,
		Broker:  b,
		Candles: candles,
		Options: backtest.RunnerOptions{
			CloseEnd:  btCloseEnd,
			MinWindow: btMinWindow,
		},
	}

	res, err := runner.Run(context.Background())
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	fmt.Printf("Backtest complete: %d bars, %d cycles (%s .. %s)\n",
		res.Bars, res.Cycles,
		res.Start.Format("2006-01-02 15:04"), res.End.Format("2006-01-02 15:04"))
	fmt.Printf("  Final Cash:     $%.2f\n", res.FinalCash)
	fmt.Printf("  Final Equity:   $%.2f\n", res.FinalEquity)
	fmt.Printf("  Total PnL:      $%.2f\n", res.Metrics.TotalPnL)
	fmt.Printf("  Fee Drag:       $%.2f\n", res.Metrics.FeeDrag)
	fmt.Printf("  Slippage Drag:  $%.2f\n", res.Metrics.SlippageDrag)
	fmt.Printf("  Max Drawdown:   %.2f%%\n", 100*res.Metrics.MaxDrawdown)
	fmt.Printf("  Win Rate:       %.1f%%\n", 100*res.Metrics.WinRate)
	fmt.Printf("  Sharpe (ann.):  %.2f\n", res.Metrics.SharpeLike)
	fmt.Printf("  Fills:          %d\n", res.Metrics.Fills)
	fmt.Printf("  Rejections:     %d\n", res.Metrics.Rejections)

	if len(res.Positions) > 0 {
		fmt.Println("\nOpen positions:")
		for sym, pos := range res.Positions {
			fmt.Printf("  %-10s %+.4f @ %.4f\n", sym, pos.Quantity, pos.AvgEntry)
		}
	}
	return nil
}

// parseDatasets turns repeated SYMBOL=path flags into candle series,
// loading each CSV (transparently decompressing .xz).
func parseDatasets(specs []string) (map[string][]market.Candle, error) {
	out := make(map[string][]market.Candle, len(specs))
	for _, spec := range specs {
		sym, path, ok := strings.Cut(spec, "=")
		if !ok || sym == "" || path == "" {
			return nil, fmt.Errorf("dataset %q must be SYMBOL=path", spec)
		}
		if _, dup := out[sym]; dup {
			return nil, fmt.Errorf("duplicate dataset for %s", sym)
		}
		candles, err := feed.LoadCSV(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		out[sym] = candles
	}
	return out, nil
}
