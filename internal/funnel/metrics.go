// File path: internal/funnel/metrics.go
package funnel

import "math"

// Aggregate recomputes run statistics from the full journey set. It is purely
// functional and order-independent over the journeys: views at step i count
// journeys whose outcome sequence reached position i, drops and hesitations
// count the action recorded there, and conversion is the share of personas
// whose journey completed every step. Average friction is nil for steps no
// journey reached.
func Aggregate(steps []Step, personas []Persona, journeys []Journey) RunResult {
	result := RunResult{
		Steps:            steps,
		Personas:         personas,
		Journeys:         journeys,
		Stats:            make([]StepStats, len(steps)),
		PersonaSummaries: make([]PersonaSummary, 0, len(journeys)),
	}
	sums := make([]int, len(steps))
	for i, step := range steps {
		result.Stats[i] = StepStats{Index: step.Index, Title: step.Title}
	}
	for _, journey := range journeys {
		if journey.Completed {
			result.Completed++
		}
		for pos, outcome := range journey.Outcomes {
			if pos >= len(steps) {
				break
			}
			stat := &result.Stats[pos]
			stat.Views++
			sums[pos] += outcome.Friction
			switch outcome.Action {
			case ActionDrop:
				stat.Drops++
			case ActionHesitate:
				stat.Hesitations++
			}
			if outcome.Fallback {
				result.Fallbacks++
			}
		}
	}
	for i := range result.Stats {
		stat := &result.Stats[i]
		if stat.Views == 0 {
			continue
		}
		stat.DropRate = float64(stat.Drops) / float64(stat.Views)
		avg := round2(float64(sums[i]) / float64(stat.Views))
		stat.AvgFriction = &avg
	}
	if len(personas) > 0 {
		result.ConversionRate = float64(result.Completed) / float64(len(personas))
	}
	result.PersonaSummaries = summarizePersonas(steps, personas, journeys)
	return result
}

func summarizePersonas(steps []Step, personas []Persona, journeys []Journey) []PersonaSummary {
	names := make(map[int]string, len(personas))
	for _, persona := range personas {
		names[persona.ID] = persona.Name
	}
	titles := make(map[int]string, len(steps))
	for _, step := range steps {
		titles[step.Index] = step.Title
	}
	summaries := make([]PersonaSummary, 0, len(journeys))
	for _, journey := range journeys {
		summary := PersonaSummary{
			PersonaID: journey.PersonaID,
			Name:      names[journey.PersonaID],
			Converted: journey.Completed,
		}
		if !journey.Completed && journey.DropStep > 0 {
			summary.DropStep = titles[journey.DropStep]
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
