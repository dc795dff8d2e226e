// File path: internal/api/flow_handler.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nicodishanthj/funnelsim/internal/funnel"
)

// defaultSampleFlow is the onboarding funnel prefilled in the UI so a first
// run works without any typing.
const defaultSampleFlow = `1. Landing Page - Hero section with value prop and primary CTA: 'Get Started'
2. Sign Up Form - Email, password, and marketing opt-in checkbox
3. Plan Selection - Choose between Basic, Pro, and Premium plans
4. Checkout - Enter payment details and confirm subscription`

func (s *Server) handleDefaults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sample_flow": s.cfg.SampleFlow,
		"model":       s.cfg.DefaultModel,
		"personas": map[string]int{
			"default": s.cfg.DefaultPersonas,
			"min":     funnel.MinPersonas,
			"max":     funnel.MaxPersonas,
		},
		"steps": map[string]int{
			"min": funnel.MinFlowSteps,
			"max": s.cfg.MaxFlowSteps,
		},
		"step_kinds": []funnel.StepKind{
			funnel.StepInfo,
			funnel.StepDecision,
			funnel.StepForm,
			funnel.StepPaywall,
			funnel.StepCTA,
		},
	})
}

func (s *Server) handleFlowParse(w http.ResponseWriter, r *http.Request) {
	var req parseFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	steps, err := funnel.ParseFlow(req.FlowText, s.cfg.MaxFlowSteps)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, funnel.ErrValidation) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, parseFlowResponse{Steps: steps, Count: len(steps)})
}
