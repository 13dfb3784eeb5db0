package cmd

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/medphys/bulkcbct/pkg/analysis"
	"github.com/medphys/bulkcbct/pkg/export"
	"github.com/medphys/bulkcbct/pkg/formatter"
	"github.com/medphys/bulkcbct/pkg/inventory"
	"github.com/medphys/bulkcbct/pkg/logging"
)

var (
	analyzePhantom        string
	analyzeResults        string
	analyzeExtensions     []string
	analyzeFollowSymlinks bool
	analyzeOutputFormat   string
	analyzeLogLevel       string
)

func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze ROOT",
		Short: "Run Catphan analysis across every discovered study",
		Long: `Scan a directory tree for CBCT studies, run the configured Catphan analyzer
against each one, and optionally merge the successful results into a
cumulative results document.

A single failing study never aborts the batch; its error is captured on the
per-study result instead.

Examples:
  # Analyze every study under a root with the Catphan 504 model
  bulkcbct analyze /data/cbct --phantom CatPhan504

  # Also merge successful results into a cumulative XML document
  bulkcbct analyze /data/cbct --phantom CatPhan504 --results qa/results.xml`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().StringVar(&analyzePhantom, "phantom", "CatPhan504", "Catphan phantom model to analyze with")
	cmd.Flags().StringVar(&analyzeResults, "results", "", "Path of the cumulative results XML to merge successes into")
	cmd.Flags().StringSliceVar(&analyzeExtensions, "extensions", inventory.DefaultExtensions, "File extensions that count as image slices")
	cmd.Flags().BoolVar(&analyzeFollowSymlinks, "follow-symlinks", false, "Follow symlinks while scanning")
	cmd.Flags().StringVarP(&analyzeOutputFormat, "output-format", "o", "human", "Output format (human, json, yaml)")
	cmd.Flags().StringVar(&analyzeLogLevel, "log-level", envOr("BULKCBCT_LOG_LEVEL", "info"), "Logging verbosity (debug, info, warn, error)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	root := args[0]
	logger := logging.Setup(logging.Config{Level: analyzeLogLevel})

	printAnalyzeHeader(root)

	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	s.Suffix = " Scanning for CBCT studies..."
	s.Start()

	inv, err := inventory.Scan(root, inventory.Options{
		Extensions:     inventory.NormalizeExtensions(analyzeExtensions),
		FollowSymlinks: analyzeFollowSymlinks,
		Logger:         logger,
	})
	if err != nil {
		s.Stop()
		return fmt.Errorf("scan failed: %w", err)
	}
	s.Stop()
	printSuccess(fmt.Sprintf("Discovered %d studies", inv.StudyCount()))

	s.Suffix = " Running Catphan analysis..."
	s.Start()

	batch, err := analysis.New(nil).WithLogger(logger).Run(inv, analyzePhantom)
	if err != nil {
		s.Stop()
		return fmt.Errorf("analysis failed: %w", err)
	}
	s.Stop()
	printSuccess(fmt.Sprintf("Analysis complete: %d succeeded, %d failed",
		batch.SuccessCount(), batch.FailureCount()))

	if err := formatter.DisplayBatch(batch, analyzeOutputFormat); err != nil {
		return err
	}

	if analyzeResults == "" {
		return nil
	}

	s.Suffix = " Merging results into the export document..."
	s.Start()

	exported, skipped, err := export.New(nil).WithLogger(logger).ExportSuccesses(batch, analyzeResults)
	if err != nil {
		s.Stop()
		return fmt.Errorf("export failed: %w", err)
	}
	s.Stop()
	printSuccess(fmt.Sprintf("Exported %d results (%d already present) to %s",
		exported, skipped, analyzeResults))

	return nil
}

func printAnalyzeHeader(root string) {
	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Println()
	cyan.Println("🩻 Bulk Catphan Analyzer")
	fmt.Printf("📁 Root: %s\n", root)
	fmt.Printf("👻 Phantom: %s\n", analyzePhantom)
	if analyzeResults != "" {
		fmt.Printf("📄 Results: %s\n", analyzeResults)
	}
	fmt.Println()
}
