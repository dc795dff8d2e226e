// File path: internal/api/export_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/nicodishanthj/funnelsim/internal/funnel"
	"github.com/nicodishanthj/funnelsim/internal/report"
)

// handleRunExport serves a finished run's result as a download. The format
// query parameter selects json (default) or markdown.
func (s *Server) handleRunExport(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(chi.URLParam(r, "runID"))
	if runID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("run id required"))
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "json"
	}
	var name, contentType string
	switch format {
	case "json":
		name = runID + ".json"
		contentType = "application/json"
	case "markdown", "md":
		name = runID + ".md"
		contentType = "text/markdown"
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown export format %q", format))
		return
	}
	result, err := s.resultFor(r.Context(), runID)
	if err != nil {
		writeError(w, resultErrStatus(err), err)
		return
	}
	payload, err := exportPayload(result, format)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func exportPayload(result funnel.RunResult, format string) ([]byte, error) {
	if format == "json" {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode result: %w", err)
		}
		return append(payload, '\n'), nil
	}
	return []byte(report.Markdown(result)), nil
}
