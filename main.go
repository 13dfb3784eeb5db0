package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/medphys/bulkcbct/cmd"
)

var (
	version = "v0.1.0" // Overwritten at build time
)

func main() {
	// Optional .env for BULKCBCT_* defaults; missing files are fine.
	_ = godotenv.Load()

	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bulkcbct",
		Short: "Bulk CBCT study discovery and Catphan analysis",
		Long: `bulkcbct discovers CBCT study folders on disk, runs Catphan phantom
analysis against each one, and accumulates successful results into a
cumulative, de-duplicated XML document.`,
		SilenceUsage: true,
	}

	// Disable automatic 'completion' command added by cobra
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Add subcommands
	rootCmd.AddCommand(
		cmd.NewScanCmd(),
		cmd.NewAnalyzeCmd(),
		cmd.NewServeCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("bulkcbct version %s\n", version)
		},
	}
}
