// File path: internal/funnel/flow.go
package funnel

import (
	"fmt"
	"strings"
)

// stepSeparator splits a flow line into title and description.
const stepSeparator = " - "

// ParseFlow turns free-text flow input into ordered steps. Each non-empty
// line becomes one step; a line containing " - " splits into title and
// description at the first occurrence, otherwise the whole line is the title.
// Leading enumeration prefixes ("1. ", "2) ") are stripped from titles.
// maxSteps <= 0 falls back to DefaultMaxSteps. Flows with fewer than
// MinFlowSteps or more than maxSteps parsed steps fail with ErrValidation.
func ParseFlow(text string, maxSteps int) ([]Step, error) {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	lines := strings.Split(text, "\n")
	steps := make([]Step, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		index := len(steps) + 1
		title := trimmed
		description := ""
		if at := strings.Index(trimmed, stepSeparator); at >= 0 {
			title = strings.TrimSpace(trimmed[:at])
			description = strings.TrimSpace(trimmed[at+len(stepSeparator):])
		}
		title = strings.TrimSpace(stripEnumPrefix(title))
		if title == "" {
			title = fmt.Sprintf("Step %d", index)
		}
		steps = append(steps, Step{
			Index:       index,
			Title:       title,
			Description: description,
			Kind:        StepDecision,
		})
	}
	if len(steps) < MinFlowSteps {
		return nil, fmt.Errorf("%w: flow needs at least %d steps, got %d", ErrValidation, MinFlowSteps, len(steps))
	}
	if len(steps) > maxSteps {
		return nil, fmt.Errorf("%w: flow allows at most %d steps, got %d", ErrValidation, maxSteps, len(steps))
	}
	return steps, nil
}

// stripEnumPrefix removes a leading "12. ", "3) " or "4 " enumeration. Digits
// followed directly by letters ("2FA Setup") are left alone.
func stripEnumPrefix(title string) string {
	i := 0
	for i < len(title) && title[i] >= '0' && title[i] <= '9' {
		i++
	}
	if i == 0 || i == len(title) {
		return title
	}
	switch title[i] {
	case '.', ')':
		return strings.TrimLeft(title[i+1:], " ")
	case ' ':
		return strings.TrimLeft(title[i:], " ")
	}
	return title
}

// ValidatePersonaCount enforces the [MinPersonas, MaxPersonas] bounds locally
// so out-of-range requests never reach the provider.
func ValidatePersonaCount(count int) error {
	if count < MinPersonas || count > MaxPersonas {
		return fmt.Errorf("%w: persona count must be between %d and %d, got %d", ErrValidation, MinPersonas, MaxPersonas, count)
	}
	return nil
}

// FlowContext renders the parsed steps as the "Title: Description" block the
// persona generator grounds on.
func FlowContext(steps []Step) string {
	var b strings.Builder
	for i, step := range steps {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(step.Title)
		b.WriteString(": ")
		b.WriteString(step.Description)
	}
	return b.String()
}
