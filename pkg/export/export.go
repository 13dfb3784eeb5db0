// Package export merges successful analysis results into a persistent,
// append-only XML results document.
package export

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"

	"github.com/medphys/bulkcbct/pkg/analysis"
	"github.com/medphys/bulkcbct/pkg/inventory"
	"github.com/medphys/bulkcbct/pkg/metrics"
	"github.com/medphys/bulkcbct/pkg/phantom"
	"github.com/medphys/bulkcbct/pkg/summary"
)

const rootTag = "CatphanResults"

// ErrMalformedDocument is returned when the destination file exists but is
// not a results document.
var ErrMalformedDocument = errors.New("existing file is not a results document")

// Exporter appends successful batch results to a results document on disk.
//
// The read-merge-write cycle is not safe for concurrent writers, so all
// exports through one Exporter are serialized behind an internal mutex.
// Concurrent processes targeting the same destination are not supported.
type Exporter struct {
	mu       sync.Mutex
	registry *phantom.Registry
	logger   *slog.Logger
}

// New returns an exporter that resolves analyzers from registry when
// rendering PDF reports. A nil registry uses the process default.
func New(registry *phantom.Registry) *Exporter {
	if registry == nil {
		registry = phantom.Default()
	}
	return &Exporter{registry: registry, logger: slog.Default()}
}

// WithLogger replaces the exporter's logger.
func (e *Exporter) WithLogger(logger *slog.Logger) *Exporter {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// ExportSuccesses merges the successful results of batch into the document at
// destination, creating it on first use. Entries are keyed by (study relative
// path, phantom name); keys already present are skipped and never rewritten,
// so re-exporting the same batch is a no-op beyond the skip count.
//
// A batch without successes returns (0, 0) without touching the filesystem.
func (e *Exporter) ExportSuccesses(batch *analysis.BatchAnalysis, destination string) (exported, skipped int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if batch.SuccessCount() == 0 {
		return 0, 0, nil
	}

	dest, err := filepath.Abs(destination)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve destination: %w", err)
	}

	doc, root, err := loadDocument(dest)
	if err != nil {
		return 0, 0, err
	}

	existing := make(map[[2]string]struct{})
	for _, study := range root.SelectElements("Study") {
		key := [2]string{study.SelectAttrValue("id", ""), study.SelectAttrValue("analyzerName", "")}
		existing[key] = struct{}{}
	}

	// Report rendering is best-effort: a missing integration just means no
	// reports are attached.
	var construct func(string) (phantom.Analyzer, error)
	if factory, ferr := e.registry.Resolve(batch.Phantom); ferr == nil {
		construct = phantom.Constructor(factory)
	} else {
		e.logger.Debug("report rendering unavailable", "phantom", batch.Phantom, "error", ferr)
	}
	reportDir := reportDirFor(dest)

	for _, result := range batch.Results {
		if !result.Success {
			continue
		}

		id := result.Study.RelativePath
		key := [2]string{id, batch.Phantom}
		if _, ok := existing[key]; ok {
			skipped++
			continue
		}

		study := root.CreateElement("Study")
		study.CreateAttr("id", id)
		study.CreateAttr("analyzerName", batch.Phantom)
		study.CreateAttr("exportedAt", time.Now().UTC().Format(time.RFC3339))
		study.CreateElement("AbsolutePath").SetText(result.Study.Path)

		if construct != nil {
			if reportPath, ok := e.renderReport(construct, result.Study, reportDir, id, batch.Phantom); ok {
				study.CreateElement("Report").SetText(reportPath)
			}
		}

		if entries := summary.Parse(result.Summary); len(entries) > 0 {
			appendSummary(study, entries)
		}
		if flat := metrics.Flatten(result.Metrics); result.Metrics != nil && len(flat) > 0 {
			appendMetrics(study, flat)
		}

		existing[key] = struct{}{}
		exported++
	}

	if exported == 0 {
		return exported, skipped, nil
	}

	if err := writeDocument(doc, dest); err != nil {
		return 0, 0, err
	}
	e.logger.Info("results exported", "destination", dest, "exported", exported, "skipped", skipped)
	return exported, skipped, nil
}

func loadDocument(dest string) (*etree.Document, *etree.Element, error) {
	doc := etree.NewDocument()

	if _, err := os.Stat(dest); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("stat destination: %w", err)
		}
		doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
		return doc, doc.CreateElement(rootTag), nil
	}

	if err := doc.ReadFromFile(dest); err != nil {
		return nil, nil, fmt.Errorf("parse results document: %w", err)
	}
	root := doc.SelectElement(rootTag)
	if root == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrMalformedDocument, dest)
	}
	return doc, root, nil
}

func writeDocument(doc *etree.Document, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}
	doc.Indent(2)

	// Write-then-rename so an interrupted export cannot truncate the
	// accumulated document.
	tmp := dest + ".tmp"
	if err := doc.WriteToFile(tmp); err != nil {
		return fmt.Errorf("write results document: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("replace results document: %w", err)
	}
	return nil
}

// renderReport runs a second analyzer invocation purely to produce the PDF
// artifact. Every failure path downgrades to "no report attached".
func (e *Exporter) renderReport(construct func(string) (phantom.Analyzer, error), study *inventory.StudyRecord, reportDir, id, phantomName string) (string, bool) {
	fail := func(stage string, err error) (string, bool) {
		e.logger.Debug("report rendering skipped", "study", id, "stage", stage, "error", err)
		return "", false
	}

	analyzer, err := construct(study.Path)
	if err != nil {
		return fail("construct", err)
	}
	if err := analyzer.Analyze(); err != nil {
		return fail("analyze", err)
	}
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return fail("mkdir", err)
	}

	reportPath := filepath.Join(reportDir, SanitizeName(id+"_"+phantomName)+".pdf")
	if err := analyzer.PublishReport(reportPath); err != nil {
		return fail("publish", err)
	}
	return reportPath, true
}

func reportDirFor(dest string) string {
	stem := strings.TrimSuffix(filepath.Base(dest), filepath.Ext(dest))
	return filepath.Join(filepath.Dir(dest), stem+"_reports")
}

func appendSummary(study *etree.Element, entries []summary.Entry) {
	el := study.CreateElement("Summary")
	for _, entry := range entries {
		switch entry.Kind {
		case summary.KindSection:
			el.CreateElement("Section").SetText(entry.Text)
		case summary.KindItem:
			item := el.CreateElement("Item")
			item.CreateAttr("name", entry.Name)
			if entry.Value != "" {
				item.SetText(entry.Value)
			}
		case summary.KindNote:
			el.CreateElement("Note").SetText(entry.Text)
		}
	}
}

func appendMetrics(study *etree.Element, flat []metrics.Metric) {
	el := study.CreateElement("Metrics")
	for _, metric := range flat {
		m := el.CreateElement("Metric")
		m.CreateAttr("name", metric.Path)
		m.SetText(metric.Value)
	}
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeName maps name onto the filename-safe class [A-Za-z0-9_.-],
// replacing everything else with underscores. The result is never empty.
func SanitizeName(name string) string {
	cleaned := unsafeNameChars.ReplaceAllString(name, "_")
	if cleaned == "" {
		return "study"
	}
	return cleaned
}
