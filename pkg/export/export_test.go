package export

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medphys/bulkcbct/pkg/analysis"
	"github.com/medphys/bulkcbct/pkg/inventory"
	"github.com/medphys/bulkcbct/pkg/phantom"
)

type stubAnalyzer struct {
	publishErr error
	published  *string
}

func (s *stubAnalyzer) Analyze() error                  { return nil }
func (s *stubAnalyzer) ResultsSummary() (string, error) { return "", nil }
func (s *stubAnalyzer) ResultsMetrics() (any, error)    { return nil, nil }

func (s *stubAnalyzer) PublishReport(path string) error {
	if s.publishErr != nil {
		return s.publishErr
	}
	if s.published != nil {
		*s.published = path
	}
	return os.WriteFile(path, []byte("%PDF"), 0o644)
}

type stubFactory struct {
	analyzer phantom.Analyzer
	err      error
}

func (f stubFactory) New(path string) (phantom.Analyzer, error) { return f.analyzer, f.err }

func successResult(rel string) analysis.StudyAnalysisResult {
	return analysis.StudyAnalysisResult{
		Study: &inventory.StudyRecord{
			Path:         "/data/cbct/" + rel,
			RelativePath: rel,
			FileCount:    3,
			Extensions:   []string{".dcm"},
		},
		Success: true,
		Summary: "HU Linearity: PASS",
		Metrics: map[string]any{"roll": -0.25},
	}
}

func failedResult(rel string) analysis.StudyAnalysisResult {
	r := successResult(rel)
	r.Success = false
	r.Summary = ""
	r.Metrics = nil
	r.Error = "boom"
	return r
}

func makeBatch(phantomName string, results ...analysis.StudyAnalysisResult) *analysis.BatchAnalysis {
	return &analysis.BatchAnalysis{Phantom: phantomName, Results: results}
}

func readStudies(t *testing.T, dest string) []*etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromFile(dest))
	root := doc.SelectElement("CatphanResults")
	require.NotNil(t, root)
	return root.SelectElements("Study")
}

func TestExportIsIdempotent(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "results.xml")
	exporter := New(phantom.NewRegistry())
	batch := makeBatch("CatPhan504", successResult("patient_a/study1"))

	exported, skipped, err := exporter.ExportSuccesses(batch, dest)
	require.NoError(t, err)
	assert.Equal(t, 1, exported)
	assert.Equal(t, 0, skipped)

	exported, skipped, err = exporter.ExportSuccesses(batch, dest)
	require.NoError(t, err)
	assert.Equal(t, 0, exported)
	assert.Equal(t, 1, skipped)

	studies := readStudies(t, dest)
	require.Len(t, studies, 1)
	assert.Equal(t, "patient_a/study1", studies[0].SelectAttrValue("id", ""))
	assert.Equal(t, "CatPhan504", studies[0].SelectAttrValue("analyzerName", ""))
	assert.NotEmpty(t, studies[0].SelectAttrValue("exportedAt", ""))
}

func TestExportEmptyBatchTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "results.xml")
	exporter := New(phantom.NewRegistry())

	exported, skipped, err := exporter.ExportSuccesses(makeBatch("CatPhan504"), dest)
	require.NoError(t, err)
	assert.Zero(t, exported)
	assert.Zero(t, skipped)

	exported, skipped, err = exporter.ExportSuccesses(
		makeBatch("CatPhan504", failedResult("a")), dest)
	require.NoError(t, err)
	assert.Zero(t, exported)
	assert.Zero(t, skipped)

	_, err = os.Stat(dest)
	assert.True(t, errors.Is(err, os.ErrNotExist), "destination must not be created")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no report directory either")
}

func TestExportDedupKeyIncludesAnalyzerName(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "results.xml")
	exporter := New(phantom.NewRegistry())

	exported, skipped, err := exporter.ExportSuccesses(
		makeBatch("analyzerA", successResult("study")), dest)
	require.NoError(t, err)
	assert.Equal(t, 1, exported)
	assert.Zero(t, skipped)

	exported, skipped, err = exporter.ExportSuccesses(
		makeBatch("analyzerB", successResult("study")), dest)
	require.NoError(t, err)
	assert.Equal(t, 1, exported)
	assert.Zero(t, skipped)

	studies := readStudies(t, dest)
	assert.Len(t, studies, 2)
}

func TestExportSkipsFailedResults(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "results.xml")
	exporter := New(phantom.NewRegistry())
	batch := makeBatch("CatPhan504", successResult("good"), failedResult("bad"))

	exported, skipped, err := exporter.ExportSuccesses(batch, dest)
	require.NoError(t, err)
	assert.Equal(t, 1, exported)
	assert.Zero(t, skipped)

	studies := readStudies(t, dest)
	require.Len(t, studies, 1)
	assert.Equal(t, "good", studies[0].SelectAttrValue("id", ""))
}

func TestExportWritesSummaryAndMetrics(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "results.xml")
	exporter := New(phantom.NewRegistry())

	result := successResult("study")
	result.Summary = "--- QA ---\nHU Linearity: PASS\nnote only"
	result.Metrics = map[string]any{"ctp404": map[string]any{"roll": -0.25}}

	_, _, err := exporter.ExportSuccesses(makeBatch("CatPhan504", result), dest)
	require.NoError(t, err)

	studies := readStudies(t, dest)
	require.Len(t, studies, 1)
	study := studies[0]

	assert.Equal(t, "/data/cbct/study", study.SelectElement("AbsolutePath").Text())

	summaryEl := study.SelectElement("Summary")
	require.NotNil(t, summaryEl)
	assert.Equal(t, "QA", summaryEl.SelectElement("Section").Text())
	item := summaryEl.SelectElement("Item")
	require.NotNil(t, item)
	assert.Equal(t, "HU Linearity", item.SelectAttrValue("name", ""))
	assert.Equal(t, "PASS", item.Text())
	assert.Equal(t, "note only", summaryEl.SelectElement("Note").Text())

	metricsEl := study.SelectElement("Metrics")
	require.NotNil(t, metricsEl)
	metric := metricsEl.SelectElement("Metric")
	require.NotNil(t, metric)
	assert.Equal(t, "ctp404.roll", metric.SelectAttrValue("name", ""))
	assert.Equal(t, "-0.25", metric.Text())
}

func TestExportRendersReportWhenIntegrationAvailable(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "results.xml")

	var published string
	registry := phantom.NewRegistry()
	registry.Register("CatPhan504", stubFactory{analyzer: &stubAnalyzer{published: &published}})
	exporter := New(registry)

	_, _, err := exporter.ExportSuccesses(
		makeBatch("CatPhan504", successResult("patient a/study#1")), dest)
	require.NoError(t, err)

	wantReport := filepath.Join(dir, "results_reports", "patient_a_study_1_CatPhan504.pdf")
	assert.Equal(t, wantReport, published)
	assert.FileExists(t, wantReport)

	studies := readStudies(t, dest)
	require.Len(t, studies, 1)
	report := studies[0].SelectElement("Report")
	require.NotNil(t, report)
	assert.Equal(t, wantReport, report.Text())
}

func TestExportOmitsReportOnRenderFailure(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "results.xml")

	registry := phantom.NewRegistry()
	registry.Register("CatPhan504", stubFactory{analyzer: &stubAnalyzer{publishErr: errors.New("no renderer")}})
	exporter := New(registry)

	exported, _, err := exporter.ExportSuccesses(
		makeBatch("CatPhan504", successResult("study")), dest)
	require.NoError(t, err, "report failures must never fail the export")
	assert.Equal(t, 1, exported)

	studies := readStudies(t, dest)
	require.Len(t, studies, 1)
	assert.Nil(t, studies[0].SelectElement("Report"))
}

func TestExportFailsOnMalformedDocument(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "results.xml")
	require.NoError(t, os.WriteFile(dest, []byte("<SomethingElse/>"), 0o644))

	_, _, err := New(phantom.NewRegistry()).ExportSuccesses(
		makeBatch("CatPhan504", successResult("study")), dest)
	assert.ErrorIs(t, err, ErrMalformedDocument)
}

func TestExportCreatesDestinationDirectory(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "qa", "2026", "results.xml")

	exported, _, err := New(phantom.NewRegistry()).ExportSuccesses(
		makeBatch("CatPhan504", successResult("study")), dest)
	require.NoError(t, err)
	assert.Equal(t, 1, exported)
	assert.FileExists(t, dest)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"patient_a/study1_CatPhan504", "patient_a_study1_CatPhan504"},
		{"weird name!@#", "weird_name___"},
		{"safe-name_1.0", "safe-name_1.0"},
		{"", "study"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in))
	}
}
