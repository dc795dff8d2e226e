// File path: internal/sim/personas.go
package sim

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nicodishanthj/funnelsim/internal/common"
	"github.com/nicodishanthj/funnelsim/internal/common/telemetry"
	"github.com/nicodishanthj/funnelsim/internal/funnel"
	"github.com/nicodishanthj/funnelsim/internal/llm"
)

const defaultCallTimeout = 20 * time.Second

// replacementAttempts bounds how many extra batches may be requested to
// replace personas discarded by validation.
const replacementAttempts = 2

// Generator produces synthetic personas for a parsed flow.
type Generator struct {
	provider llm.Provider
	timeout  time.Duration
}

func NewGenerator(provider llm.Provider, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Generator{provider: provider, timeout: timeout}
}

// Generate requests count personas conditioned on the flow and returns them
// with IDs assigned 1..count in accepted order. The count is validated before
// any provider call.
func (g *Generator) Generate(ctx context.Context, steps []funnel.Step, count int) ([]funnel.Persona, error) {
	if err := funnel.ValidatePersonaCount(count); err != nil {
		return nil, err
	}
	logger := common.Logger()
	flowContext := funnel.FlowContext(steps)

	accepted := make([]funnel.Persona, 0, count)
	for attempt := 0; attempt <= replacementAttempts && len(accepted) < count; attempt++ {
		need := count - len(accepted)
		if attempt > 0 {
			logger.Info("sim: requesting replacement personas", "need", need, "attempt", attempt)
			telemetry.RecordPersonaReplacement(need)
		}
		entries, err := g.requestBatch(ctx, flowContext, need)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if len(accepted) >= count {
				break
			}
			persona, ok := validPersona(entry)
			if !ok {
				logger.Warn("sim: discarding invalid persona", "name", entry.Name)
				continue
			}
			persona.ID = len(accepted) + 1
			accepted = append(accepted, persona)
		}
	}
	if len(accepted) < count {
		return nil, fmt.Errorf("%w: got %d of %d valid personas", funnel.ErrGeneration, len(accepted), count)
	}
	logger.Info("sim: personas generated", "count", len(accepted))
	return accepted, nil
}

// requestBatch performs one chat request for count personas, retrying once on
// transport failure or a malformed payload.
func (g *Generator) requestBatch(ctx context.Context, flowContext string, count int) ([]personaEntry, error) {
	messages := []llm.Message{
		{Role: "system", Content: personaSystemPrompt},
		{Role: "user", Content: personaPrompt(count, flowContext)},
	}
	entries, err := g.attempt(ctx, messages, false)
	if err == nil {
		return entries, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	common.Logger().Warn("sim: persona batch failed, retrying", "error", err)
	entries, retryErr := g.attempt(ctx, messages, true)
	if retryErr == nil {
		return entries, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return nil, fmt.Errorf("%w: %v", funnel.ErrGeneration, retryErr)
}

func (g *Generator) attempt(ctx context.Context, messages []llm.Message, retried bool) ([]personaEntry, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	start := time.Now()
	content, err := g.provider.Chat(callCtx, messages)
	telemetry.RecordLLMRequest(retried, time.Since(start))
	if err != nil {
		return nil, err
	}
	entries, err := decodePersonas(content)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("empty persona list")
	}
	return entries, nil
}

// validPersona normalizes one decoded record and reports whether it satisfies
// the acceptance rules: non-empty name and bio, at least one trait and one
// tendency.
func validPersona(entry personaEntry) (funnel.Persona, bool) {
	persona := funnel.Persona{
		Name:       strings.TrimSpace(entry.Name),
		Bio:        strings.TrimSpace(entry.Bio),
		Traits:     cleanList(entry.Traits),
		Tendencies: cleanList(entry.Tendencies),
	}
	if persona.Name == "" || persona.Bio == "" {
		return funnel.Persona{}, false
	}
	if len(persona.Traits) == 0 || len(persona.Tendencies) == 0 {
		return funnel.Persona{}, false
	}
	return persona, true
}

func cleanList(values []string) []string {
	cleaned := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
