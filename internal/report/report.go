// File path: internal/report/report.go
// Package report renders simulation results for terminals and markdown export.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nicodishanthj/funnelsim/internal/funnel"
)

const defaultWidth = 100

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardStyle  = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	convertedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950"))
	droppedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	fallbackStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	barStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#5A9BD5"))
)

// Render produces a styled terminal report for a finished run.
func Render(result funnel.RunResult, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	sections := []string{
		titleStyle.Render("Funnel Simulation"),
		mutedStyle.Render(fmt.Sprintf("%d steps, %d personas", len(result.Steps), len(result.Personas))),
		"",
		renderSummaryCards(result, width),
		"",
		titleStyle.Render("Step Funnel"),
		renderFunnel(result, width),
		"",
		titleStyle.Render("Personas"),
		renderPersonas(result),
	}
	return strings.TrimRight(strings.Join(sections, "\n"), "\n")
}

func renderSummaryCards(result funnel.RunResult, width int) string {
	cards := []string{
		metricCard("Personas", fmt.Sprintf("%d", len(result.Personas))),
		metricCard("Conversion", formatPercent(result.ConversionRate)),
		metricCard("Completed", fmt.Sprintf("%d of %d", result.Completed, len(result.Journeys))),
	}
	if result.Fallbacks > 0 {
		cards = append(cards, metricCard("Fallbacks", fallbackStyle.Render(fmt.Sprintf("%d", result.Fallbacks))))
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func renderFunnel(result funnel.RunResult, width int) string {
	if len(result.Stats) == 0 {
		return mutedStyle.Render("No step data.")
	}
	headers := []string{"#", "Step", "Views", "Drops", "Hesit.", "Drop rate", "Avg friction"}
	rightAlign := map[int]bool{0: true, 2: true, 3: true, 4: true, 5: true, 6: true}
	rows := make([][]string, 0, len(result.Stats))
	maxViews := 0
	for _, st := range result.Stats {
		if st.Views > maxViews {
			maxViews = st.Views
		}
	}
	for _, st := range result.Stats {
		rows = append(rows, []string{
			fmt.Sprintf("%d", st.Index),
			st.Title,
			fmt.Sprintf("%d", st.Views),
			fmt.Sprintf("%d", st.Drops),
			fmt.Sprintf("%d", st.Hesitations),
			formatPercent(st.DropRate),
			formatFriction(st.AvgFriction),
		})
	}
	lines := formatTable(headers, rows, rightAlign)
	barWidth := width - displayWidth(lines[0]) - 4
	if barWidth > 24 {
		barWidth = 24
	}
	if barWidth >= 4 {
		for i, st := range result.Stats {
			lines[i+1] = lines[i+1] + "  " + barStyle.Render(funnelBar(st.Views, maxViews, barWidth))
		}
	}
	return strings.Join(lines, "\n")
}

// funnelBar scales views against the widest step so the report shows where
// the funnel narrows.
func funnelBar(views, maxViews, width int) string {
	if maxViews <= 0 || views <= 0 || width <= 0 {
		return ""
	}
	length := views * width / maxViews
	if length < 1 {
		length = 1
	}
	return strings.Repeat("█", length)
}

func renderPersonas(result funnel.RunResult) string {
	if len(result.PersonaSummaries) == 0 {
		return mutedStyle.Render("No persona data.")
	}
	fallbacks := fallbackPersonas(result.Journeys)
	lines := make([]string, 0, len(result.PersonaSummaries))
	for _, summary := range result.PersonaSummaries {
		var line string
		if summary.Converted {
			line = fmt.Sprintf("%s %s converted", convertedStyle.Render("✓"), summary.Name)
		} else {
			line = fmt.Sprintf("%s %s dropped at %s", droppedStyle.Render("✗"), summary.Name, summary.DropStep)
		}
		if fallbacks[summary.PersonaID] {
			line += " " + fallbackStyle.Render("(fallback)")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// fallbackPersonas marks personas whose journey contains a synthesized
// outcome, so reports can flag results that did not come from the model.
func fallbackPersonas(journeys []funnel.Journey) map[int]bool {
	out := make(map[int]bool)
	for _, journey := range journeys {
		for _, outcome := range journey.Outcomes {
			if outcome.Fallback {
				out[journey.PersonaID] = true
				break
			}
		}
	}
	return out
}

func formatPercent(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

func formatFriction(avg *float64) string {
	if avg == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *avg)
}
