// File path: internal/sim/decode.go
package sim

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nicodishanthj/funnelsim/internal/funnel"
)

// extractJSON cuts the slice between the first "{" and the last "}" so the
// decoder tolerates prose or code fences around the object.
func extractJSON(content string) (string, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return content[start : end+1], nil
}

type personaEntry struct {
	Name       string   `json:"name"`
	Bio        string   `json:"bio"`
	Traits     []string `json:"traits"`
	Tendencies []string `json:"tendencies"`
}

type personaPayload struct {
	Personas []personaEntry `json:"personas"`
}

func decodePersonas(content string) ([]personaEntry, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}
	var payload personaPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decode personas: %w", err)
	}
	return payload.Personas, nil
}

type outcomePayload struct {
	Action    string      `json:"action"`
	Friction  interface{} `json:"friction"`
	Reasoning string      `json:"reasoning"`
}

func decodeOutcome(content string, personaID, stepIndex int) (funnel.StepOutcome, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return funnel.StepOutcome{}, err
	}
	var payload outcomePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return funnel.StepOutcome{}, fmt.Errorf("decode outcome: %w", err)
	}
	return funnel.StepOutcome{
		PersonaID: personaID,
		StepIndex: stepIndex,
		Action:    coerceAction(payload.Action),
		Friction:  coerceFriction(payload.Friction),
		Reasoning: strings.TrimSpace(payload.Reasoning),
	}, nil
}

// coerceAction maps unknown actions to continue so a single odd response
// cannot abort a run.
func coerceAction(raw string) funnel.Action {
	action := funnel.Action(strings.ToLower(strings.TrimSpace(raw)))
	if funnel.ValidAction(action) {
		return action
	}
	return funnel.ActionContinue
}

// coerceFriction accepts numbers and numeric strings, defaults otherwise,
// and clamps the result to the valid range.
func coerceFriction(raw interface{}) int {
	friction := funnel.FrictionDefault
	switch v := raw.(type) {
	case float64:
		friction = int(v)
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			friction = int(n)
		}
	}
	return clampFriction(friction)
}

func clampFriction(friction int) int {
	if friction < funnel.FrictionMin {
		return funnel.FrictionMin
	}
	if friction > funnel.FrictionMax {
		return funnel.FrictionMax
	}
	return friction
}
