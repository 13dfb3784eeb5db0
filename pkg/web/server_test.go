package web

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medphys/bulkcbct/pkg/phantom"
)

type noopFactory struct{}

func (noopFactory) New(path string) (phantom.Analyzer, error) { return nil, nil }

func newTestRouter() http.Handler {
	return NewRouter(phantom.NewRegistry(), nil)
}

func TestIndexRendersForm(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "CBCT Inventory Scanner")
	assert.Contains(t, body, ".dcm .ima")
	// Without a registered integration the canonical models are offered.
	assert.Contains(t, body, "Catphan 503")
	assert.Contains(t, body, "Catphan 700")
}

func TestIndexUsesRegisteredModels(t *testing.T) {
	registry := phantom.NewRegistry()
	registry.Register("CatPhan604", noopFactory{})

	rec := httptest.NewRecorder()
	NewRouter(registry, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	assert.Contains(t, body, "Catphan 604")
	assert.NotContains(t, body, "Catphan 503")
}

func postForm(t *testing.T, handler http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestScanViaForm(t *testing.T) {
	root := t.TempDir()
	study := filepath.Join(root, "study1")
	require.NoError(t, os.MkdirAll(study, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(study, "slice.dcm"), []byte("DICM"), 0o644))

	handler := newTestRouter()
	rec := postForm(t, handler, url.Values{
		"root":       {root},
		"extensions": {".dcm .ima"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Scan completed successfully with 1 studies.")
	assert.Contains(t, body, "study1")

	// The inventory is now downloadable.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"study_count": 1`)
}

func TestScanFormErrors(t *testing.T) {
	handler := newTestRouter()

	rec := postForm(t, handler, url.Values{"root": {""}})
	assert.Contains(t, rec.Body.String(), "Please provide a root directory to scan.")

	rec = postForm(t, handler, url.Values{"root": {filepath.Join(t.TempDir(), "missing")}})
	assert.Contains(t, rec.Body.String(), "The provided root directory does not exist.")
}

func TestDownloadBeforeScanRedirects(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download.json", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
