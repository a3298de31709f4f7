package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranksOps/modfinder/internal/output"
	"github.com/FranksOps/modfinder/internal/results"
	"github.com/FranksOps/modfinder/internal/serp"
)

type modServer struct {
	URL  string
	hits atomic.Int32
}

// startModServer serves a search page linking to a trusted page that links
// to one zip named after "pose pack". Empty search results are returned for
// any other query.
func startModServer(t *testing.T) *modServer {
	t.Helper()
	ms := &modServer{}
	ts := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ms.hits.Add(1)
		switch r.URL.Path {
		case "/search":
			if r.URL.Query().Get("q") != "pose pack" {
				fmt.Fprint(w, `<html><a href="https://example.com/">nothing</a></html>`)
				return
			}
			fmt.Fprintf(w, `<html><a href="%s/nexusmods.com/mods/1">mod</a></html>`, ms.URL)
		case "/nexusmods.com/mods/1":
			fmt.Fprintf(w, `<html><a href="%s/nexusmods.com/dl/pose%%20pack.zip">download</a></html>`, ms.URL)
		case "/nexusmods.com/dl/pose pack.zip":
			w.Header().Set("Content-Type", "application/zip")
		default:
			http.NotFound(w, r)
		}
	}))
	ms.URL = "http://" + ts.Listener.Addr().String()
	ts.Start()
	t.Cleanup(ts.Close)

	prev := searchEngines
	searchEngines = func() []serp.Engine {
		return []serp.Engine{{Name: "Mock", URLTemplate: ms.URL + "/search?q=" + serp.Placeholder}}
	}
	t.Cleanup(func() { searchEngines = prev })
	return ms
}

func setupCLI(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func run(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errw bytes.Buffer
	code = Run(context.Background(), args, &out, &errw)
	return code, out.String(), errw.String()
}

func TestRun_NoMarker(t *testing.T) {
	dir := setupCLI(t)
	ms := startModServer(t)
	path := filepath.Join(dir, "results.json")

	code, _, stderr := run(t, "--output", path, "somethingelse")

	assert.Equal(t, output.ExitUsageError, code)
	assert.Contains(t, stderr, "No keywords provided.")
	assert.Zero(t, ms.hits.Load(), "no request is made")
	assert.NoFileExists(t, path)
}

func TestRun_NoKeywordsAfterMarker(t *testing.T) {
	dir := setupCLI(t)
	ms := startModServer(t)
	path := filepath.Join(dir, "results.json")

	for _, args := range [][]string{
		{"--output", path, "--keywords"},
		{"--output", path, "--keywords", "  ", ""},
	} {
		code, _, stderr := run(t, args...)
		assert.Equal(t, output.ExitUsageError, code)
		assert.Contains(t, stderr, "No keywords found after --keywords.")
	}
	assert.Zero(t, ms.hits.Load())
	assert.NoFileExists(t, path)
}

func TestRun_WritesResults(t *testing.T) {
	dir := setupCLI(t)
	ms := startModServer(t)
	path := filepath.Join(dir, "results.json")

	code, stdout, stderr := run(t, "--output", path, "--keywords", " pose pack ", "")
	require.Equal(t, output.ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "Results written to "+path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var got []results.Match
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, []results.Match{{
		Keyword: "pose pack",
		URL:     ms.URL + "/nexusmods.com/dl/pose pack.zip",
		Source:  "Mock > " + ms.URL + "/nexusmods.com/mods/1",
	}}, got)
}

func TestRun_NoResultsRemovesPreviousFile(t *testing.T) {
	dir := setupCLI(t)
	startModServer(t)
	path := filepath.Join(dir, "results.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"keyword":"old"}]`), 0o644))

	code, _, stderr := run(t, "--output", path, "--keywords", "hair")

	assert.Equal(t, output.ExitSuccess, code)
	assert.Contains(t, stderr, "No results to save. Skipping write.")
	assert.Contains(t, stderr, "no results found")
	assert.NoFileExists(t, path)
}

func TestRun_SetupFailureStillRemovesPreviousFile(t *testing.T) {
	dir := setupCLI(t)
	ms := startModServer(t)
	path := filepath.Join(dir, "results.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"keyword":"old"}]`), 0o644))

	t.Setenv("MODFINDER_AUDIT_BACKEND", "sqlite")
	t.Setenv("MODFINDER_AUDIT_DSN", filepath.Join(dir, "missing", "audit.db"))

	code, _, stderr := run(t, "--output", path, "--keywords", "pose pack")

	assert.Equal(t, output.ExitGeneral, code)
	assert.Contains(t, stderr, "failed to open audit backend")
	assert.NoFileExists(t, path)
	assert.Zero(t, ms.hits.Load())
}

func TestRun_ConfigError(t *testing.T) {
	setupCLI(t)
	code, _, stderr := run(t, "--config", "missing.yaml", "--keywords", "hair")
	assert.Equal(t, output.ExitConfigError, code)
	assert.Contains(t, stderr, "failed to load config")
}

func TestRun_UnknownFlag(t *testing.T) {
	setupCLI(t)
	code, _, stderr := run(t, "--bogus", "--keywords", "hair")
	assert.Equal(t, output.ExitUsageError, code)
	assert.Contains(t, stderr, "invalid arguments")
}

func TestRun_AuditAndReport(t *testing.T) {
	dir := setupCLI(t)
	startModServer(t)

	auditPath := filepath.Join(dir, "audit.jsonl")
	cfgPath := filepath.Join(dir, "modfinder.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(
		"audit:\n  backend: jsonl\n  dsn: %s\noutput:\n  path: %s\n", auditPath, filepath.Join(dir, "out.json"),
	)), 0o644))

	code, _, stderr := run(t, "--config", cfgPath, "--verbose", "--keywords", "pose pack")
	require.Equal(t, output.ExitSuccess, code, stderr)
	assert.Contains(t, stderr, "Modfinder Run Summary")
	assert.FileExists(t, auditPath)

	code, stdout, stderr := run(t, "report", "--config", cfgPath, "--format", "json")
	require.Equal(t, output.ExitSuccess, code, stderr)

	var summary struct {
		TotalRequests int            `json:"total_requests"`
		ByStage       map[string]int `json:"by_stage"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, 3, summary.TotalRequests)
	assert.Equal(t, 1, summary.ByStage["search"])
	assert.Equal(t, 1, summary.ByStage["page"])
	assert.Equal(t, 1, summary.ByStage["probe"], "the result page itself does not mention the keyword")
}

func TestRun_ReportWithoutBackend(t *testing.T) {
	setupCLI(t)
	code, _, stderr := run(t, "report")
	assert.Equal(t, output.ExitConfigError, code)
	assert.Contains(t, stderr, "no audit backend configured")
}

func TestRun_ReportBadFormat(t *testing.T) {
	setupCLI(t)
	code, _, _ := run(t, "report", "--format", "pdf")
	assert.Equal(t, output.ExitUsageError, code)
}

func TestSplitArgs(t *testing.T) {
	head, tail, found := splitArgs([]string{"-v", "--keywords", "a", "--keywords", "b"})
	assert.True(t, found)
	assert.Equal(t, []string{"-v"}, head)
	assert.Equal(t, []string{"a", "--keywords", "b"}, tail)

	head, tail, found = splitArgs([]string{"report"})
	assert.False(t, found)
	assert.Equal(t, []string{"report"}, head)
	assert.Nil(t, tail)
}

func TestCleanKeywords(t *testing.T) {
	assert.Equal(t, []string{"pose pack", "hair"}, cleanKeywords([]string{" pose pack ", "", "\t", "hair"}))
	assert.Empty(t, cleanKeywords(nil))
}
