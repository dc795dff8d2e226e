// File path: cmd/funnelsim/main.go
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nicodishanthj/funnelsim/internal/common"
)

var version = "0.1.0-dev"

func main() {
	logger := common.Logger()

	if err := godotenv.Load(); err != nil {
		logger.Warn("funnelsim: .env file not loaded", "error", err)
	} else {
		logger.Info("funnelsim: environment loaded from .env")
	}

	rootCmd := &cobra.Command{
		Use:   "funnelsim",
		Short: "Synthetic-user funnel simulator",
		Long: `funnelsim runs LLM-generated personas through a product flow step by
step and reports where they hesitate and drop off.

Flows are plain text, one step per line ("Title - Description"). Results
come back as per-step funnel stats, per-persona journeys, and a conversion
rate, served over an HTTP API with a small web UI or rendered straight to
the terminal.`,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newRunCmd(),
		newReportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "funnelsim version %s\n", version)
		},
	}
}
