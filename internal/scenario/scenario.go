// File path: internal/scenario/scenario.go
// Package scenario loads simulation scenarios from YAML files so flows can be
// versioned alongside the product they describe and replayed from the CLI.
package scenario

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nicodishanthj/funnelsim/internal/funnel"
	"github.com/nicodishanthj/funnelsim/internal/run"
)

// Scenario describes one simulation run loaded from a file.
//
//	name: onboarding-baseline
//	flow: |
//	  Landing Page - Hero and signup CTA
//	  Sign Up Form - Email and password
//	personas: 5
//	model: gpt-4o-mini
//	workers: 4
//
// Steps may be given in typed form instead of free text; when both are
// present the typed steps win.
type Scenario struct {
	// Name labels the scenario in logs and reports.
	Name string `yaml:"name,omitempty"`

	// Flow is the free-text flow description, one step per line.
	Flow string `yaml:"flow,omitempty"`

	// Steps is the typed alternative to Flow.
	Steps []Step `yaml:"steps,omitempty"`

	// Personas is the synthetic user count. Zero means the service default.
	Personas int `yaml:"personas,omitempty"`

	// Model overrides the configured model for this run.
	Model string `yaml:"model,omitempty"`

	// Workers bounds concurrent journey simulation. Zero means the service
	// default.
	Workers int `yaml:"workers,omitempty"`
}

// Step is one typed flow stage.
type Step struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	Kind        string `yaml:"kind,omitempty"`
}

// Load reads and validates a scenario file.
func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	if err := scenario.Validate(); err != nil {
		return Scenario{}, err
	}
	return scenario, nil
}

// Validate checks the scenario before it is turned into a run request. Bounds
// that depend on service configuration (step budget, default persona count)
// are enforced later by the run manager.
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.Flow) == "" && len(s.Steps) == 0 {
		return fmt.Errorf("%w: scenario needs a flow or steps", funnel.ErrValidation)
	}
	for i, step := range s.Steps {
		if strings.TrimSpace(step.Title) == "" {
			return fmt.Errorf("%w: step %d has no title", funnel.ErrValidation, i+1)
		}
		if step.Kind != "" && !funnel.ValidKind(funnel.StepKind(step.Kind)) {
			return fmt.Errorf("%w: step %d has unknown kind %q", funnel.ErrValidation, i+1, step.Kind)
		}
	}
	if s.Personas != 0 {
		if err := funnel.ValidatePersonaCount(s.Personas); err != nil {
			return err
		}
	}
	if s.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", funnel.ErrValidation, s.Workers)
	}
	return nil
}

// Request maps the scenario onto a run request. Typed steps take precedence
// over the free-text flow.
func (s Scenario) Request() run.Request {
	req := run.Request{
		FlowText: s.Flow,
		Personas: s.Personas,
		Model:    strings.TrimSpace(s.Model),
		Workers:  s.Workers,
	}
	if len(s.Steps) > 0 {
		req.FlowText = ""
		req.Steps = make([]funnel.Step, len(s.Steps))
		for i, step := range s.Steps {
			req.Steps[i] = funnel.Step{
				Title:       strings.TrimSpace(step.Title),
				Description: strings.TrimSpace(step.Description),
				Kind:        funnel.StepKind(step.Kind),
			}
		}
	}
	return req
}
