package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/metrics"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Query a SQLite journal database",
	Long: `Query and display journal records from a SQLite database.

Subcommands:
  summary    - Recompute performance metrics from the ledger
  ledger     - List every ledger entry
  day        - List fills on a specific day
  rejections - Count rejections by reason

Examples:
  papertrader report summary -d trades.db --cash 10000
  papertrader report day 2024-03-01 -d trades.db`,
}

var reportSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Recompute performance metrics from the ledger",
	Args:  cobra.NoArgs,
	RunE:  runReportSummary,
}

var reportLedgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "List every ledger entry",
	Args:  cobra.NoArgs,
	RunE:  runReportLedger,
}

var reportDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List fills on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportDay,
}

var reportRejectionsCmd = &cobra.Command{
	Use:   "rejections",
	Short: "Count rejections by reason",
	Args:  cobra.NoArgs,
	RunE:  runReportRejections,
}

var (
	reportDBPath string
	reportCash   float64
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportSummaryCmd)
	reportCmd.AddCommand(reportLedgerCmd)
	reportCmd.AddCommand(reportDayCmd)
	reportCmd.AddCommand(reportRejectionsCmd)

	reportCmd.PersistentFlags().StringVarP(&reportDBPath, "db", "d", "./trades.db", "path to SQLite journal DB")
	reportSummaryCmd.Flags().Float64Var(&reportCash, "cash", 10000, "starting cash the run opened with")
}

func runReportSummary(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(reportDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	entries, err := j.ListEntries()
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}

	m := metrics.Summarize(entries, reportCash)
	fmt.Printf("Summary of %s (%d entries):\n", reportDBPath, len(entries))
	fmt.Printf("  Total PnL:      $%.2f\n", m.TotalPnL)
	fmt.Printf("  Fee Drag:       $%.2f\n", m.FeeDrag)
	fmt.Printf("  Slippage Drag:  $%.2f\n", m.SlippageDrag)
	fmt.Printf("  Max Drawdown:   %.2f%%\n", 100*m.MaxDrawdown)
	fmt.Printf("  Win Rate:       %.1f%%\n", 100*m.WinRate)
	fmt.Printf("  Sharpe (ann.):  %.2f\n", m.SharpeLike)
	fmt.Printf("  Fills:          %d\n", m.Fills)
	fmt.Printf("  Rejections:     %d\n", m.Rejections)
	return nil
}

func runReportLedger(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(reportDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	entries, err := j.ListEntries()
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}

	printEntries(entries)
	return nil
}

func runReportDay(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(reportDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	day, err := time.Parse("2006-01-02", args[0])
	if err != nil {
		return fmt.Errorf("date %q: %w", args[0], err)
	}

	entries, err := j.ListFillsBetween(day, day.AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("query fills: %w", err)
	}

	printEntries(entries)
	return nil
}

func runReportRejections(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(reportDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	counts, err := j.RejectionCounts()
	if err != nil {
		return fmt.Errorf("query rejections: %w", err)
	}
	if len(counts) == 0 {
		fmt.Println("No rejections recorded.")
		return nil
	}

	for reason, n := range counts {
		fmt.Printf("  %-20s %d\n", reason, n)
	}
	return nil
}

func printEntries(entries []journal.Entry) {
	if len(entries) == 0 {
		fmt.Println("No entries.")
		return
	}
	for _, e := range entries {
		switch e.Kind {
		case journal.KindFill:
			fmt.Printf("%4d  %s  %-10s %-4s %10.4f @ %.4f  fee %.4f  pl %+.2f\n",
				e.Seq, e.Time.Format(time.RFC3339), e.Symbol, e.Side, e.Quantity, e.Price, e.Fee, e.RealizedPL)
		default:
			fmt.Printf("%4d  %s  %-10s REJECTED %s: %s\n",
				e.Seq, e.Time.Format(time.RFC3339), e.Symbol, e.Reason, e.Detail)
		}
	}
}
