// File path: internal/sim/prompts.go
package sim

import (
	"fmt"
	"strings"

	"github.com/nicodishanthj/funnelsim/internal/funnel"
)

const personaSystemPrompt = "You are helping design synthetic user personas for UX testing. " +
	"You create realistic but fictional users with varied motivations, " +
	"attention spans, risk tolerance, tech savviness, and constraints."

const stepSystemPrompt = "You are simulating how a specific user behaves in a product flow. " +
	"You must decide if they CONTINUE, HESITATE, or DROP at each step."

func personaPrompt(count int, flowContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create %d distinct user personas for the following product flow.\n\n", count)
	b.WriteString("Flow description:\n")
	b.WriteString(flowContext)
	b.WriteString("\n\nReturn STRICT JSON in this format:\n\n")
	b.WriteString(`{
  "personas": [
    {
      "name": "string",
      "bio": "short paragraph",
      "traits": ["trait1", "trait2"],
      "tendencies": ["behavior1", "behavior2"]
    },
    ...
  ]
}`)
	return b.String()
}

func stepPrompt(persona funnel.Persona, step funnel.Step, steps []funnel.Step, history []funnel.StepOutcome) string {
	var b strings.Builder
	b.WriteString("Persona:\n")
	fmt.Fprintf(&b, "Name: %s\n", persona.Name)
	fmt.Fprintf(&b, "Bio: %s\n", persona.Bio)
	fmt.Fprintf(&b, "Traits: %s\n", strings.Join(persona.Traits, ", "))
	fmt.Fprintf(&b, "Tendencies: %s\n", strings.Join(persona.Tendencies, ", "))
	b.WriteString("\nStep:\n")
	fmt.Fprintf(&b, "Name: %s\n", step.Title)
	fmt.Fprintf(&b, "Type: %s\n", step.Kind)
	fmt.Fprintf(&b, "Description: %s\n", step.Description)
	if len(history) > 0 {
		b.WriteString("\nEarlier steps this session:\n")
		total := 0
		for _, outcome := range history {
			fmt.Fprintf(&b, "Step %d (%s): %s, friction %d\n",
				outcome.StepIndex, titleFor(steps, outcome.StepIndex), outcome.Action, outcome.Friction)
			total += outcome.Friction
		}
		fmt.Fprintf(&b, "Cumulative friction so far: %d\n", total)
	}
	b.WriteString("\nAnswer with STRICT JSON in this format:\n\n")
	b.WriteString(`{
  "action": "continue" | "hesitate" | "drop",
  "friction": 1-10,
  "reasoning": "one or two short sentences"
}`)
	return b.String()
}

func titleFor(steps []funnel.Step, index int) string {
	if index >= 1 && index <= len(steps) {
		return steps[index-1].Title
	}
	return fmt.Sprintf("Step %d", index)
}
