// File path: internal/funnel/types.go
package funnel

// StepKind classifies what a flow step asks of the user.
type StepKind string

const (
	StepInfo     StepKind = "info"
	StepDecision StepKind = "decision"
	StepForm     StepKind = "form"
	StepPaywall  StepKind = "paywall"
	StepCTA      StepKind = "cta"
)

// ValidKind reports whether k is one of the recognized step kinds.
func ValidKind(k StepKind) bool {
	switch k {
	case StepInfo, StepDecision, StepForm, StepPaywall, StepCTA:
		return true
	}
	return false
}

// Action is a persona's decision at a single step.
type Action string

const (
	ActionContinue Action = "continue"
	ActionHesitate Action = "hesitate"
	ActionDrop     Action = "drop"
)

// ValidAction reports whether a is one of the three enumerated decisions.
func ValidAction(a Action) bool {
	return a == ActionContinue || a == ActionHesitate || a == ActionDrop
}

// Friction score bounds and the default applied when a response omits or
// mangles the field.
const (
	FrictionMin     = 1
	FrictionMax     = 10
	FrictionDefault = 5
)

// Flow and persona bounds enforced locally, before any provider call.
const (
	MinFlowSteps    = 2
	DefaultMaxSteps = 20
	MinPersonas     = 3
	MaxPersonas     = 15
	DefaultPersonas = 5
)

// Step is one parsed stage of a product flow, immutable once created.
type Step struct {
	Index       int      `json:"index"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Kind        StepKind `json:"kind"`
}

// Persona is a synthetic user profile produced by the generator.
type Persona struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	Bio        string   `json:"bio"`
	Traits     []string `json:"traits"`
	Tendencies []string `json:"tendencies"`
}

// StepOutcome records one persona's decision at one step. Fallback marks
// outcomes synthesized after a persistent simulation failure so consumers can
// tell them apart from genuine drops.
type StepOutcome struct {
	PersonaID int    `json:"persona_id"`
	StepIndex int    `json:"step_index"`
	Action    Action `json:"action"`
	Friction  int    `json:"friction"`
	Reasoning string `json:"reasoning,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"`
}

// Journey is the ordered trace of a persona through the flow. Once an outcome
// with action drop is appended the journey is terminal and no later steps are
// evaluated. DropStep is the 1-based index of the drop, 0 for completed
// journeys.
type Journey struct {
	PersonaID int           `json:"persona_id"`
	Outcomes  []StepOutcome `json:"outcomes"`
	Completed bool          `json:"completed"`
	DropStep  int           `json:"drop_step,omitempty"`
}

// StepStats aggregates every outcome recorded at one step index. AvgFriction
// is nil when no journey reached the step, distinguishing "no data" from zero
// friction.
type StepStats struct {
	Index       int      `json:"index"`
	Title       string   `json:"title"`
	Views       int      `json:"views"`
	Drops       int      `json:"drops"`
	Hesitations int      `json:"hesitations"`
	DropRate    float64  `json:"drop_rate"`
	AvgFriction *float64 `json:"avg_friction"`
}

// PersonaSummary is the per-persona outcome line for reports and the UI.
// DropStep holds the title of the step where the persona dropped, empty when
// the persona converted.
type PersonaSummary struct {
	PersonaID int    `json:"persona_id"`
	Name      string `json:"name"`
	Converted bool   `json:"converted"`
	DropStep  string `json:"drop_step,omitempty"`
}

// RunResult is the complete output of one simulation run.
type RunResult struct {
	Steps            []Step           `json:"steps"`
	Personas         []Persona        `json:"personas"`
	Journeys         []Journey        `json:"journeys"`
	Stats            []StepStats      `json:"step_stats"`
	PersonaSummaries []PersonaSummary `json:"persona_summaries"`
	ConversionRate   float64          `json:"conversion_rate"`
	Completed        int              `json:"completed"`
	Fallbacks        int              `json:"fallbacks"`
}
