// File path: internal/report/report_test.go
package report

import (
	"strings"
	"testing"

	"github.com/nicodishanthj/funnelsim/internal/funnel"
)

func sampleResult() funnel.RunResult {
	avg1 := 3.5
	avg2 := 7.25
	return funnel.RunResult{
		Steps: []funnel.Step{
			{Index: 1, Title: "Landing Page", Description: "Hero", Kind: funnel.StepInfo},
			{Index: 2, Title: "Checkout", Description: "Card details", Kind: funnel.StepDecision},
		},
		Personas: []funnel.Persona{
			{ID: 1, Name: "Ana", Bio: "Founder", Traits: []string{"curious"}, Tendencies: []string{"skims"}},
			{ID: 2, Name: "Bo", Bio: "Price hunter", Traits: []string{"frugal"}, Tendencies: []string{"compares"}},
			{ID: 3, Name: "Cam", Bio: "Student", Traits: []string{"careful"}, Tendencies: []string{"reads all"}},
		},
		Journeys: []funnel.Journey{
			{PersonaID: 1, Completed: true, Outcomes: []funnel.StepOutcome{
				{PersonaID: 1, StepIndex: 1, Action: funnel.ActionContinue, Friction: 2, Reasoning: "clear offer"},
				{PersonaID: 1, StepIndex: 2, Action: funnel.ActionContinue, Friction: 5},
			}},
			{PersonaID: 2, DropStep: 2, Outcomes: []funnel.StepOutcome{
				{PersonaID: 2, StepIndex: 1, Action: funnel.ActionHesitate, Friction: 5},
				{PersonaID: 2, StepIndex: 2, Action: funnel.ActionDrop, Friction: 9, Reasoning: "card upfront"},
			}},
			{PersonaID: 3, DropStep: 2, Outcomes: []funnel.StepOutcome{
				{PersonaID: 3, StepIndex: 1, Action: funnel.ActionContinue, Friction: 4},
				{PersonaID: 3, StepIndex: 2, Action: funnel.ActionDrop, Friction: 10, Reasoning: "simulation failure", Fallback: true},
			}},
		},
		Stats: []funnel.StepStats{
			{Index: 1, Title: "Landing Page", Views: 3, Hesitations: 1, AvgFriction: &avg1},
			{Index: 2, Title: "Checkout", Views: 3, Drops: 2, DropRate: 2.0 / 3.0, AvgFriction: &avg2},
		},
		PersonaSummaries: []funnel.PersonaSummary{
			{PersonaID: 1, Name: "Ana", Converted: true},
			{PersonaID: 2, Name: "Bo", DropStep: "Checkout"},
			{PersonaID: 3, Name: "Cam", DropStep: "Checkout"},
		},
		ConversionRate: 1.0 / 3.0,
		Completed:      1,
		Fallbacks:      1,
	}
}

func TestRenderIncludesSummaryAndFunnel(t *testing.T) {
	out := Render(sampleResult(), 100)

	for _, want := range []string{
		"Funnel Simulation",
		"2 steps, 3 personas",
		"Conversion",
		"33.3%",
		"1 of 3",
		"Landing Page",
		"Checkout",
		"66.7%",
		"7.25",
		"Ana converted",
		"Bo dropped at Checkout",
		"Cam dropped at Checkout",
		"(fallback)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected report to contain %q", want)
		}
	}
}

func TestRenderNarrowWidthStacksCards(t *testing.T) {
	out := Render(sampleResult(), 40)
	if !strings.Contains(out, "Conversion") {
		t.Fatalf("expected conversion card in narrow layout")
	}
}

func TestRenderHandlesEmptyResult(t *testing.T) {
	out := Render(funnel.RunResult{}, 80)
	if !strings.Contains(out, "No step data.") {
		t.Fatalf("expected empty funnel notice, got:\n%s", out)
	}
	if !strings.Contains(out, "No persona data.") {
		t.Fatalf("expected empty persona notice, got:\n%s", out)
	}
}

func TestMarkdownTables(t *testing.T) {
	out := Markdown(sampleResult())

	for _, want := range []string{
		"# Funnel Simulation Report",
		"- Conversion rate: 33.3%",
		"- Completed journeys: 1 of 3",
		"- Fallback decisions: 1",
		"| # | Step | Views | Drops | Hesitations | Drop rate | Avg friction |",
		"| 1 | Landing Page | 3 | 0 | 1 | 0.0% | 3.50 |",
		"| 2 | Checkout | 3 | 2 | 0 | 66.7% | 7.25 |",
		"| Ana | Converted |",
		"| Bo | Dropped at Checkout |",
		"| Cam | Dropped at Checkout (fallback) |",
		"### Bo",
		"- Checkout: drop (friction 9): card upfront",
		"- Checkout: drop (friction 10, fallback): simulation failure",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected markdown to contain %q", want)
		}
	}
}

func TestMarkdownNilFrictionRendersDash(t *testing.T) {
	result := sampleResult()
	result.Stats[1].AvgFriction = nil
	out := Markdown(result)
	if !strings.Contains(out, "| 2 | Checkout | 3 | 2 | 0 | 66.7% | - |") {
		t.Fatalf("expected dash for missing friction, got:\n%s", out)
	}
}

func TestMarkdownEscapesPipes(t *testing.T) {
	result := sampleResult()
	result.Stats[0].Title = "Plans | Pricing"
	out := Markdown(result)
	if !strings.Contains(out, `Plans \| Pricing`) {
		t.Fatalf("expected escaped pipe in step title")
	}
}

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Step", "Views", "Drop rate"}
	rows := [][]string{
		{"Landing Page", "12", "0.0%"},
		{"Checkout", "7", "41.7%"},
	}
	rightAlign := map[int]bool{1: true, 2: true}

	lines := formatTable(headers, rows, rightAlign)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Step          Views  Drop rate" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "Landing Page     12       0.0%" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "Checkout          7      41.7%" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestFunnelBarScales(t *testing.T) {
	if got := funnelBar(10, 10, 20); got != strings.Repeat("█", 20) {
		t.Fatalf("full bar wrong: %q", got)
	}
	if got := funnelBar(5, 10, 20); got != strings.Repeat("█", 10) {
		t.Fatalf("half bar wrong: %q", got)
	}
	if got := funnelBar(1, 100, 20); got != "█" {
		t.Fatalf("expected minimum bar, got %q", got)
	}
	if got := funnelBar(0, 10, 20); got != "" {
		t.Fatalf("expected empty bar for zero views, got %q", got)
	}
}
