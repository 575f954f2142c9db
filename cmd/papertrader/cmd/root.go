package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/papertrader/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "papertrader",
	Short: "A simulated trading pipeline for strategy research",
	Long: `Papertrader runs trading strategies against a simulated broker with
realistic fees, slippage and latency.

It provides tools for:
  - Paper trading on replayed or streamed candle data
  - Backtesting strategies over historical datasets
  - Risk-limited position sizing and exposure control
  - Journaling fills and rejections to CSV or SQLite
  - Performance recaps: PnL, drawdown, fee and slippage drag

Complete documentation is available at https://github.com/rustyeddy/papertrader`,
}

var (
	verbose bool
	logFile string
)

// newLogger builds the process logger, teeing to --log-file when set.
func newLogger() (*zap.Logger, error) {
	if logFile != "" {
		return logging.NewWithFile(logFile, verbose)
	}
	return logging.New(verbose)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
}
