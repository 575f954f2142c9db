package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/feed"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Manage candle datasets",
	Long: `Inspect and unpack candle datasets.

Subcommands:
  extract - Unpack a zip archive of datasets into a directory
  preview - Print the first candles of a CSV dataset

Examples:
  papertrader data extract datasets.zip -o ./data
  papertrader data preview data/btcusd.csv.xz -n 5`,
}

var dataExtractCmd = &cobra.Command{
	Use:   "extract <archive.zip>",
	Short: "Unpack a zip archive of datasets into a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runDataExtract,
}

var dataPreviewCmd = &cobra.Command{
	Use:   "preview <dataset.csv[.xz]>",
	Short: "Print the first candles of a CSV dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runDataPreview,
}

var (
	dataExtractDir  string
	dataPreviewRows int
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataExtractCmd)
	dataCmd.AddCommand(dataPreviewCmd)

	dataExtractCmd.Flags().StringVarP(&dataExtractDir, "output", "o", "./data", "directory to extract into")
	dataPreviewCmd.Flags().IntVarP(&dataPreviewRows, "rows", "n", 10, "number of candles to print")
}

func runDataExtract(cmd *cobra.Command, args []string) error {
	if err := feed.ExtractDataset(args[0], dataExtractDir); err != nil {
		return fmt.Errorf("extract %s: %w", args[0], err)
	}
	fmt.Printf("Extracted %s into %s\n", args[0], dataExtractDir)
	return nil
}

func runDataPreview(cmd *cobra.Command, args []string) error {
	candles, err := feed.LoadCSV(args[0])
	if err != nil {
		return fmt.Errorf("load %s: %w", args[0], err)
	}

	n := dataPreviewRows
	if n > len(candles) {
		n = len(candles)
	}
	fmt.Printf("%s: %d candles\n", args[0], len(candles))
	for _, c := range candles[:n] {
		fmt.Printf("  %s  O %.4f  H %.4f  L %.4f  C %.4f  V %.2f\n",
			c.Time.Format("2006-01-02 15:04:05"), c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	return nil
}
