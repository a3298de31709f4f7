package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/FranksOps/modfinder/internal/results"
)

func TestResolveColors(t *testing.T) {
	t.Setenv("TERM", "xterm")
	if !ResolveColors(true) {
		t.Error("ResolveColors(true) should return true without NO_COLOR")
	}
	if ResolveColors(false) {
		t.Error("ResolveColors(false) should return false")
	}

	t.Setenv("NO_COLOR", "1")
	if ResolveColors(true) {
		t.Error("NO_COLOR should disable colors")
	}
}

func TestResolveColors_DumbTerm(t *testing.T) {
	t.Setenv("TERM", "dumb")
	if ResolveColors(true) {
		t.Error("TERM=dumb should disable colors")
	}
}

func TestCLIError_Error(t *testing.T) {
	err := &CLIError{Summary: "something failed", Detail: "because", ExitCode: ExitGeneral}
	if err.Error() != "something failed" {
		t.Errorf("Error() = %q, want %q", err.Error(), "something failed")
	}
}

func TestFormatError(t *testing.T) {
	var stderr bytes.Buffer
	p := NewPrinter(&bytes.Buffer{}, &stderr, false)

	p.FormatError(&CLIError{
		Summary:  "failed to write results",
		Detail:   "permission denied",
		ExitCode: ExitGeneral,
	})

	out := stderr.String()
	if !strings.Contains(out, "[ERROR] failed to write results") {
		t.Errorf("missing summary in %q", out)
	}
	if !strings.Contains(out, "Cause: permission denied") {
		t.Errorf("missing cause in %q", out)
	}
}

func TestDiagnosticAndSuccess(t *testing.T) {
	var stdout, stderr bytes.Buffer
	p := NewPrinter(&stdout, &stderr, false)

	p.Diagnostic("No keywords provided.")
	p.Success("Results written to %s", "/tmp/x.json")

	if stderr.String() != "No keywords provided.\n" {
		t.Errorf("unexpected diagnostic %q", stderr.String())
	}
	if stdout.String() != "[OK] Results written to /tmp/x.json\n" {
		t.Errorf("unexpected success line %q", stdout.String())
	}
}

func TestMatches(t *testing.T) {
	var stdout bytes.Buffer
	p := NewPrinter(&stdout, &bytes.Buffer{}, false)

	err := p.Matches([]results.Match{
		{Keyword: "hair", URL: "https://tumblr.com/hair.zip", Source: "Google"},
		{Keyword: "hair", URL: "https://patreon.com/h2.rar", Source: "DuckDuckGo > https://tumblr.com/p"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := stdout.String()
	for _, want := range []string{"https://tumblr.com/hair.zip", "https://patreon.com/h2.rar", "DuckDuckGo > https://tumblr.com/p"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestMatches_Empty(t *testing.T) {
	var stdout bytes.Buffer
	p := NewPrinter(&stdout, &bytes.Buffer{}, false)
	if err := p.Matches(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("expected no output, got %q", stdout.String())
	}
}
