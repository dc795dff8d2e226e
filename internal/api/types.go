// File path: internal/api/types.go
package api

import (
	"github.com/nicodishanthj/funnelsim/internal/funnel"
	"github.com/nicodishanthj/funnelsim/internal/run"
	"github.com/nicodishanthj/funnelsim/internal/store"
)

type startRunRequest = run.Request

type startRunResponse struct {
	RunID string    `json:"run_id"`
	State run.State `json:"state"`
}

type parseFlowRequest struct {
	FlowText string `json:"flow_text"`
}

type parseFlowResponse struct {
	Steps []funnel.Step `json:"steps"`
	Count int           `json:"count"`
}

type runListResponse struct {
	Runs     []run.State       `json:"runs"`
	Archived []store.RunRecord `json:"archived,omitempty"`
}
