// File path: cmd/funnelsim/cmd_run_test.go
package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunRequiresScenario(t *testing.T) {
	_, err := execCommand(t, newRunCmd(), "run")
	if err == nil {
		t.Fatalf("expected error without --scenario")
	}
	if !strings.Contains(err.Error(), "--scenario is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunRejectsMissingScenarioFile(t *testing.T) {
	_, err := execCommand(t, newRunCmd(), "run", "--scenario", filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing scenario file")
	}
	if !strings.Contains(err.Error(), "read scenario") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunRejectsInvalidScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("name: broken\npersonas: 99\nflow: |\n  Landing - Hero\n  Checkout - Pay\n"), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	_, err := execCommand(t, newRunCmd(), "run", "--scenario", path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "persona") {
		t.Fatalf("expected persona bound error, got %v", err)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execCommand(t, newVersionCmd(), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "funnelsim version") {
		t.Fatalf("expected version output, got %q", out)
	}
}
