package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/medphys/bulkcbct/pkg/formatter"
	"github.com/medphys/bulkcbct/pkg/inventory"
	"github.com/medphys/bulkcbct/pkg/logging"
)

var (
	scanOutput         string
	scanExtensions     []string
	scanFollowSymlinks bool
	scanOutputFormat   string
	scanLogLevel       string
)

func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan ROOT",
		Short: "Discover CBCT study directories",
		Long: `Scan a directory tree for CBCT study folders.

A directory counts as a study when it contains at least one file with a
recognized image-slice extension. Once a study is found its subdirectories
are skipped, since nested folders usually hold copies of the same data.

Examples:
  # Scan a directory and print the inventory
  bulkcbct scan /data/cbct

  # Write the inventory JSON to a file
  bulkcbct scan /data/cbct --output inventory.json

  # Scan for additional extensions and follow symlinks
  bulkcbct scan /data/cbct --extensions .dcm,.ima,.img --follow-symlinks`,
		Args: cobra.ExactArgs(1),
		RunE: runScan,
	}

	cmd.Flags().StringVar(&scanOutput, "output", "", "Path to write the JSON inventory to (prints to stdout rendering otherwise)")
	cmd.Flags().StringSliceVar(&scanExtensions, "extensions", inventory.DefaultExtensions, "File extensions that count as image slices")
	cmd.Flags().BoolVar(&scanFollowSymlinks, "follow-symlinks", false, "Follow symlinks while scanning")
	cmd.Flags().StringVarP(&scanOutputFormat, "output-format", "o", "human", "Output format (human, json, yaml)")
	cmd.Flags().StringVar(&scanLogLevel, "log-level", envOr("BULKCBCT_LOG_LEVEL", "info"), "Logging verbosity (debug, info, warn, error)")

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	root := args[0]
	logger := logging.Setup(logging.Config{Level: scanLogLevel})

	printScanHeader(root)

	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	s.Suffix = " Scanning for CBCT studies..."
	s.Start()

	inv, err := inventory.Scan(root, inventory.Options{
		Extensions:     inventory.NormalizeExtensions(scanExtensions),
		FollowSymlinks: scanFollowSymlinks,
		Logger:         logger,
	})
	if err != nil {
		s.Stop()
		return fmt.Errorf("scan failed: %w", err)
	}
	s.Stop()
	printSuccess(fmt.Sprintf("Discovered %d studies", inv.StudyCount()))

	if scanOutput != "" {
		invJSON, err := inv.ToJSON()
		if err != nil {
			return fmt.Errorf("serialize inventory: %w", err)
		}
		if err := os.WriteFile(scanOutput, []byte(invJSON+"\n"), 0o644); err != nil {
			return fmt.Errorf("write inventory: %w", err)
		}
		printSuccess(fmt.Sprintf("Inventory written to %s", scanOutput))
		return nil
	}

	return formatter.DisplayInventory(inv, scanOutputFormat)
}

func printScanHeader(root string) {
	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Println()
	cyan.Println("🔍 CBCT Study Scanner")
	fmt.Printf("📁 Root: %s\n", root)
	fmt.Printf("🧩 Extensions: %s\n", strings.Join(inventory.NormalizeExtensions(scanExtensions), ", "))
	fmt.Println()
}

func printSuccess(msg string) {
	green := color.New(color.FgGreen)
	green.Printf("✓ %s\n", msg)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
