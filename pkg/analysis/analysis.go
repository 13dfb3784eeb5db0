// Package analysis orchestrates Catphan analysis across a study inventory.
package analysis

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/medphys/bulkcbct/pkg/inventory"
	"github.com/medphys/bulkcbct/pkg/phantom"
)

// StudyAnalysisResult is the outcome of analyzing a single study. Exactly one
// of (Summary, Metrics) or Error is meaningful, gated by Success.
type StudyAnalysisResult struct {
	Study   *inventory.StudyRecord `json:"study"`
	Success bool                   `json:"success"`
	Summary string                 `json:"summary,omitempty"`
	Metrics any                    `json:"metrics,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// BatchAnalysis aggregates the per-study outcomes of one orchestration run.
type BatchAnalysis struct {
	Phantom     string
	GeneratedAt time.Time
	Results     []StudyAnalysisResult
}

// SuccessCount returns the number of successful results. Counts are derived
// rather than stored so they can never diverge from Results.
func (b *BatchAnalysis) SuccessCount() int {
	n := 0
	for _, r := range b.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// FailureCount returns the number of failed results.
func (b *BatchAnalysis) FailureCount() int {
	return len(b.Results) - b.SuccessCount()
}

type batchJSON struct {
	Phantom      string                `json:"phantom"`
	GeneratedAt  time.Time             `json:"generated_at"`
	SuccessCount int                   `json:"success_count"`
	FailureCount int                   `json:"failure_count"`
	Results      []StudyAnalysisResult `json:"results"`
}

// MarshalJSON emits the batch with its derived counts. GeneratedAt keeps full
// nanosecond precision through the RFC 3339 encoding.
func (b BatchAnalysis) MarshalJSON() ([]byte, error) {
	return json.Marshal(batchJSON{
		Phantom:      b.Phantom,
		GeneratedAt:  b.GeneratedAt,
		SuccessCount: b.SuccessCount(),
		FailureCount: b.FailureCount(),
		Results:      b.Results,
	})
}

// UnmarshalJSON accepts the serialized form, ignoring the derived counts.
func (b *BatchAnalysis) UnmarshalJSON(data []byte) error {
	var raw batchJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.Phantom = raw.Phantom
	b.GeneratedAt = raw.GeneratedAt
	b.Results = raw.Results
	return nil
}

// Orchestrator runs one analyzer per study and collects the outcomes.
type Orchestrator struct {
	registry *phantom.Registry
	logger   *slog.Logger
}

// New returns an orchestrator backed by registry. A nil registry uses the
// process default.
func New(registry *phantom.Registry) *Orchestrator {
	if registry == nil {
		registry = phantom.Default()
	}
	return &Orchestrator{registry: registry, logger: slog.Default()}
}

// WithLogger replaces the orchestrator's logger.
func (o *Orchestrator) WithLogger(logger *slog.Logger) *Orchestrator {
	if logger != nil {
		o.logger = logger
	}
	return o
}

// Run analyzes every study in inv with the named phantom model.
//
// Failing to resolve the phantom model aborts the whole batch; any other
// failure is isolated to its study and captured on the individual result, so
// a successful return always covers the full inventory.
func (o *Orchestrator) Run(inv *inventory.StudyInventory, phantomName string) (*BatchAnalysis, error) {
	factory, err := o.registry.Resolve(phantomName)
	if err != nil {
		return nil, fmt.Errorf("resolve phantom %q: %w", phantomName, err)
	}
	construct := phantom.Constructor(factory)

	results := make([]StudyAnalysisResult, 0, len(inv.Studies))
	for i := range inv.Studies {
		study := &inv.Studies[i]
		result := o.analyzeStudy(construct, study)
		if result.Success {
			o.logger.Debug("study analyzed", "study", study.RelativePath)
		} else {
			o.logger.Warn("study analysis failed", "study", study.RelativePath, "error", result.Error)
		}
		results = append(results, result)
	}

	return &BatchAnalysis{
		Phantom:     phantomName,
		GeneratedAt: time.Now().UTC(),
		Results:     results,
	}, nil
}

func (o *Orchestrator) analyzeStudy(construct func(string) (phantom.Analyzer, error), study *inventory.StudyRecord) StudyAnalysisResult {
	failure := func(err error) StudyAnalysisResult {
		return StudyAnalysisResult{Study: study, Error: err.Error()}
	}

	analyzer, err := construct(study.Path)
	if err != nil {
		return failure(err)
	}
	if err := analyzer.Analyze(); err != nil {
		return failure(err)
	}
	summary, err := analyzer.ResultsSummary()
	if err != nil {
		return failure(err)
	}
	metrics, err := analyzer.ResultsMetrics()
	if err != nil {
		return failure(err)
	}

	return StudyAnalysisResult{
		Study:   study,
		Success: true,
		Summary: summary,
		Metrics: Normalize(metrics),
	}
}
