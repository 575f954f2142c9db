package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("papertrader version %s\n", version)
		fmt.Println("A simulated trading pipeline for strategy research")
		fmt.Println("https://github.com/rustyeddy/papertrader")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
