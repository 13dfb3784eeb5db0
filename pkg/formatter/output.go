// Package formatter renders inventories and batch results for the terminal.
package formatter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/medphys/bulkcbct/pkg/analysis"
	"github.com/medphys/bulkcbct/pkg/inventory"
)

// DisplayInventory formats and displays a scan inventory.
func DisplayInventory(inv *inventory.StudyInventory, format string) error {
	switch format {
	case "json":
		return displayJSON(inv)
	case "yaml":
		return displayYAML(inv)
	case "human":
		fallthrough
	default:
		displayInventoryHuman(inv)
	}
	return nil
}

// DisplayBatch formats and displays the outcome of an analysis run.
func DisplayBatch(batch *analysis.BatchAnalysis, format string) error {
	switch format {
	case "json":
		return displayJSON(batch)
	case "yaml":
		return displayYAML(batch)
	case "human":
		fallthrough
	default:
		displayBatchHuman(batch)
	}
	return nil
}

func displayJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}

// displayYAML goes through the JSON form first so derived fields such as
// study_count keep the same names in both machine formats.
func displayYAML(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return err
	}
	output, err := yaml.Marshal(tree)
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}

func displayInventoryHuman(inv *inventory.StudyInventory) {
	cyan := color.New(color.FgCyan, color.Bold)

	fmt.Println()
	cyan.Println("📂 CBCT Study Inventory")
	fmt.Printf("   Root: %s\n", inv.Root)
	fmt.Printf("   Generated: %s\n", inv.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("   Studies: %d\n\n", inv.StudyCount())

	if len(inv.Studies) == 0 {
		fmt.Println("   No studies were discovered. Try adjusting the extensions or verifying the directory.")
		return
	}

	for i, study := range inv.Studies {
		fmt.Printf("   %d. %s\n", i+1, study.RelativePath)
		fmt.Printf("      %d files (%s)\n", study.FileCount, strings.Join(study.Extensions, ", "))
	}
}

func displayBatchHuman(batch *analysis.BatchAnalysis) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	fmt.Println()
	cyan.Printf("🩻 Catphan Analysis (%s)\n", batch.Phantom)
	fmt.Printf("   Generated: %s\n\n", batch.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	for i, result := range batch.Results {
		if result.Success {
			green.Printf("   %d. ✓ %s\n", i+1, result.Study.RelativePath)
		} else {
			red.Printf("   %d. ✗ %s\n", i+1, result.Study.RelativePath)
			fmt.Printf("      %s\n", result.Error)
		}
	}

	fmt.Println()
	fmt.Printf("   %s succeeded, %s failed\n",
		color.GreenString("%d", batch.SuccessCount()),
		color.RedString("%d", batch.FailureCount()))
}
