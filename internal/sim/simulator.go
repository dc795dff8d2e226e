// File path: internal/sim/simulator.go
package sim

import (
	"context"
	"time"

	"github.com/nicodishanthj/funnelsim/internal/common"
	"github.com/nicodishanthj/funnelsim/internal/common/telemetry"
	"github.com/nicodishanthj/funnelsim/internal/funnel"
	"github.com/nicodishanthj/funnelsim/internal/llm"
)

// fallbackReason marks outcomes synthesized when the provider could not
// deliver a usable decision.
const fallbackReason = "simulation failure"

// Simulator decides how personas react to the steps of one flow.
type Simulator struct {
	provider llm.Provider
	steps    []funnel.Step
	timeout  time.Duration
}

func NewSimulator(provider llm.Provider, steps []funnel.Step, timeout time.Duration) *Simulator {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Simulator{provider: provider, steps: steps, timeout: timeout}
}

// SimulateStep asks the provider for one decision, conditioned on the
// persona's earlier outcomes. Transport failures and irreparable payloads are
// retried once, then replaced by the conservative fallback outcome so one bad
// response never aborts a run. Only context cancellation surfaces as an
// error.
func (s *Simulator) SimulateStep(ctx context.Context, persona funnel.Persona, step funnel.Step, history []funnel.StepOutcome) (funnel.StepOutcome, error) {
	logger := common.Logger()
	messages := []llm.Message{
		{Role: "system", Content: stepSystemPrompt},
		{Role: "user", Content: stepPrompt(persona, step, s.steps, history)},
	}
	outcome, err := s.attempt(ctx, messages, persona.ID, step.Index, false)
	if err == nil {
		return outcome, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return funnel.StepOutcome{}, ctxErr
	}
	logger.Warn("sim: step decision failed, retrying",
		"persona", persona.ID, "step", step.Index, "error", err)
	outcome, err = s.attempt(ctx, messages, persona.ID, step.Index, true)
	if err == nil {
		return outcome, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return funnel.StepOutcome{}, ctxErr
	}
	logger.Warn("sim: step decision failed twice, recording fallback",
		"persona", persona.ID, "step", step.Index, "error", err)
	telemetry.RecordFallback()
	return funnel.StepOutcome{
		PersonaID: persona.ID,
		StepIndex: step.Index,
		Action:    funnel.ActionDrop,
		Friction:  funnel.FrictionMax,
		Reasoning: fallbackReason,
		Fallback:  true,
	}, nil
}

func (s *Simulator) attempt(ctx context.Context, messages []llm.Message, personaID, stepIndex int, retried bool) (funnel.StepOutcome, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	content, err := s.provider.Chat(callCtx, messages)
	telemetry.RecordLLMRequest(retried, time.Since(start))
	if err != nil {
		return funnel.StepOutcome{}, err
	}
	return decodeOutcome(content, personaID, stepIndex)
}
