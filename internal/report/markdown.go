// File path: internal/report/markdown.go
package report

import (
	"fmt"
	"strings"

	"github.com/nicodishanthj/funnelsim/internal/funnel"
)

// Markdown renders a finished run as a self-contained markdown document,
// suitable for export endpoints and file output.
func Markdown(result funnel.RunResult) string {
	var b strings.Builder
	b.WriteString("# Funnel Simulation Report\n\n")

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- Personas: %d\n", len(result.Personas))
	fmt.Fprintf(&b, "- Steps: %d\n", len(result.Steps))
	fmt.Fprintf(&b, "- Conversion rate: %s\n", formatPercent(result.ConversionRate))
	fmt.Fprintf(&b, "- Completed journeys: %d of %d\n", result.Completed, len(result.Journeys))
	if result.Fallbacks > 0 {
		fmt.Fprintf(&b, "- Fallback decisions: %d (synthesized after repeated failures, not model output)\n", result.Fallbacks)
	}
	b.WriteString("\n")

	b.WriteString("## Step Funnel\n\n")
	b.WriteString("| # | Step | Views | Drops | Hesitations | Drop rate | Avg friction |\n")
	b.WriteString("|---:|---|---:|---:|---:|---:|---:|\n")
	for _, st := range result.Stats {
		fmt.Fprintf(&b, "| %d | %s | %d | %d | %d | %s | %s |\n",
			st.Index,
			escapeCell(st.Title),
			st.Views,
			st.Drops,
			st.Hesitations,
			formatPercent(st.DropRate),
			formatFriction(st.AvgFriction),
		)
	}
	b.WriteString("\n")

	b.WriteString("## Personas\n\n")
	b.WriteString("| Persona | Outcome |\n")
	b.WriteString("|---|---|\n")
	fallbacks := fallbackPersonas(result.Journeys)
	for _, summary := range result.PersonaSummaries {
		outcome := "Converted"
		if !summary.Converted {
			outcome = fmt.Sprintf("Dropped at %s", escapeCell(summary.DropStep))
		}
		if fallbacks[summary.PersonaID] {
			outcome += " (fallback)"
		}
		fmt.Fprintf(&b, "| %s | %s |\n", escapeCell(summary.Name), outcome)
	}

	if len(result.Journeys) > 0 {
		b.WriteString("\n## Journeys\n\n")
		for _, journey := range result.Journeys {
			name := personaName(result.Personas, journey.PersonaID)
			fmt.Fprintf(&b, "### %s\n\n", escapeCell(name))
			for _, outcome := range journey.Outcomes {
				title := stepTitle(result.Steps, outcome.StepIndex)
				note := ""
				if outcome.Fallback {
					note = ", fallback"
				}
				reasoning := strings.TrimSpace(outcome.Reasoning)
				if reasoning != "" {
					fmt.Fprintf(&b, "- %s: %s (friction %d%s): %s\n", escapeCell(title), outcome.Action, outcome.Friction, note, escapeCell(reasoning))
				} else {
					fmt.Fprintf(&b, "- %s: %s (friction %d%s)\n", escapeCell(title), outcome.Action, outcome.Friction, note)
				}
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func personaName(personas []funnel.Persona, id int) string {
	for _, persona := range personas {
		if persona.ID == id {
			return persona.Name
		}
	}
	return fmt.Sprintf("Persona %d", id)
}

func stepTitle(steps []funnel.Step, index int) string {
	for _, step := range steps {
		if step.Index == index {
			return step.Title
		}
	}
	return fmt.Sprintf("Step %d", index)
}

func escapeCell(value string) string {
	value = strings.ReplaceAll(value, "|", "\\|")
	return strings.ReplaceAll(value, "\n", " ")
}
