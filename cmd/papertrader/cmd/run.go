package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/feed"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the paper trading loop from a config file",
	Long: `Run the trading loop using settings from a configuration file.

Candles are replayed from per-symbol CSV datasets (plain or xz-compressed)
one bar per iteration, which is also how the loop behaves against a slow
live feed. Ctrl-C stops cleanly before the next fetch.

Example:
  papertrader run -f config.yaml -d BTC-USD=data/btcusd.csv.xz`,
	RunE: runRun,
}

var (
	runConfigPath string
	runDatasets   []string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML, JSON or TOML) (required)")
	runCmd.Flags().StringArrayVarP(&runDatasets, "data", "d", nil, "dataset as SYMBOL=path.csv[.xz], repeatable (required)")
	runCmd.MarkFlagRequired("config")
	runCmd.MarkFlagRequired("data")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	candles, err := parseDatasets(runDatasets)
	if err != nil {
		return err
	}

	j, err := buildJournal(cfg)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	b := buildBroker(cfg, j)

	replay := feed.NewReplayFeed(candles)
	eng, err := buildEngine(cfg, b, replay, logger)
	if err != nil {
		return err
	}

	fmt.Printf("Running %s with config: %s\n", cfg.Engine.Mode, runConfigPath)
	fmt.Printf("  Account: %s ($%.2f %s)\n", cfg.Account.ID, cfg.Account.Cash, cfg.Account.Currency)
	fmt.Printf("  Strategy: %s across %d asset(s)\n", cfg.Strategy.Name, len(cfg.Assets))
	fmt.Printf("  Iterations: %d, sleep %s\n\n", cfg.Engine.Iterations, cfg.Engine.Sleep)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run: %w", err)
	}

	printRecap(eng.Recap())
	return nil
}
