// File path: internal/scenario/scenario_test.go
package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nicodishanthj/funnelsim/internal/funnel"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

func TestLoadFlowScenario(t *testing.T) {
	path := writeScenario(t, `
name: onboarding-baseline
flow: |
  Landing Page - Hero and signup CTA
  Sign Up Form - Email and password
personas: 5
model: gpt-4o
workers: 4
`)
	scenario, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if scenario.Name != "onboarding-baseline" {
		t.Fatalf("unexpected name %q", scenario.Name)
	}
	if scenario.Personas != 5 || scenario.Workers != 4 {
		t.Fatalf("unexpected counts: %d personas, %d workers", scenario.Personas, scenario.Workers)
	}

	req := scenario.Request()
	if req.FlowText == "" {
		t.Fatalf("expected flow text in request")
	}
	if len(req.Steps) != 0 {
		t.Fatalf("expected no typed steps, got %d", len(req.Steps))
	}
	if req.Model != "gpt-4o" {
		t.Fatalf("unexpected model %q", req.Model)
	}
}

func TestLoadTypedStepsScenario(t *testing.T) {
	path := writeScenario(t, `
flow: "ignored when steps are present"
steps:
  - title: Landing Page
    description: Hero and CTA
    kind: info
  - title: Checkout
    description: Enter card details
`)
	scenario, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	req := scenario.Request()
	if req.FlowText != "" {
		t.Fatalf("typed steps must clear flow text, got %q", req.FlowText)
	}
	if len(req.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(req.Steps))
	}
	if req.Steps[0].Kind != funnel.StepInfo {
		t.Fatalf("expected info kind, got %q", req.Steps[0].Kind)
	}
	if req.Steps[1].Kind != "" {
		t.Fatalf("expected blank kind passed through, got %q", req.Steps[1].Kind)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := writeScenario(t, "flow: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidateRejectsBadScenarios(t *testing.T) {
	cases := []struct {
		name     string
		scenario Scenario
	}{
		{name: "empty", scenario: Scenario{}},
		{name: "blank flow", scenario: Scenario{Flow: "   "}},
		{name: "untitled step", scenario: Scenario{Steps: []Step{{Title: "  "}}}},
		{name: "unknown kind", scenario: Scenario{Steps: []Step{{Title: "One", Kind: "mystery"}}}},
		{name: "personas too low", scenario: Scenario{Flow: "a\nb", Personas: 2}},
		{name: "personas too high", scenario: Scenario{Flow: "a\nb", Personas: 16}},
		{name: "negative workers", scenario: Scenario{Flow: "a\nb", Workers: -1}},
	}
	for _, tc := range cases {
		if err := tc.scenario.Validate(); !errors.Is(err, funnel.ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	scenario := Scenario{Flow: "One - a\nTwo - b"}
	if err := scenario.Validate(); err != nil {
		t.Fatalf("expected valid scenario, got %v", err)
	}
}
