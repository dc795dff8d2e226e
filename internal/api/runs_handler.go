// File path: internal/api/runs_handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/nicodishanthj/funnelsim/internal/common"
	"github.com/nicodishanthj/funnelsim/internal/funnel"
	"github.com/nicodishanthj/funnelsim/internal/run"
	"github.com/nicodishanthj/funnelsim/internal/store"
)

func (s *Server) handleRunStart(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	runID, err := s.runs.Start(req)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, run.ErrTooManyRuns):
			status = http.StatusConflict
		case errors.Is(err, funnel.ErrValidation):
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	state, err := s.runs.Status(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, startRunResponse{RunID: runID, State: state})
}

func (s *Server) handleRunList(w http.ResponseWriter, r *http.Request) {
	resp := runListResponse{Runs: s.runs.List()}
	if s.archive != nil {
		limit := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
				return
			}
			limit = parsed
		}
		archived, err := s.archive.ListRuns(r.Context(), limit)
		if err != nil {
			common.Logger().Warn("api: list archived runs", "error", err)
		} else {
			resp.Archived = archived
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(chi.URLParam(r, "runID"))
	if runID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("run id required"))
		return
	}
	state, err := s.runs.Status(runID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, run.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleRunStop(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(chi.URLParam(r, "runID"))
	if runID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("run id required"))
		return
	}
	if err := s.runs.Stop(runID); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, run.ErrRunNotFound):
			status = http.StatusNotFound
		case errors.Is(err, run.ErrRunNotRunning):
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

func (s *Server) handleRunResult(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(chi.URLParam(r, "runID"))
	if runID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("run id required"))
		return
	}
	result, err := s.resultFor(r.Context(), runID)
	if err != nil {
		writeError(w, resultErrStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// resultFor resolves a finished run's result, falling back to the archive
// for runs that have aged out of the manager's history.
func (s *Server) resultFor(ctx context.Context, runID string) (funnel.RunResult, error) {
	result, err := s.runs.Result(runID)
	if err == nil {
		return result, nil
	}
	if s.archive == nil || !errors.Is(err, run.ErrRunNotFound) {
		return funnel.RunResult{}, err
	}
	archived, archiveErr := s.archive.GetResult(ctx, runID)
	if archiveErr != nil {
		if errors.Is(archiveErr, store.ErrNotFound) {
			return funnel.RunResult{}, err
		}
		return funnel.RunResult{}, archiveErr
	}
	return archived, nil
}

func resultErrStatus(err error) int {
	switch {
	case errors.Is(err, run.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, run.ErrRunNotFinished):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.URL.Query().Get("run_id"))
	if runID != "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"entries": s.runs.Logs(runID)})
		return
	}

	combined := append([]common.LogEntry(nil), common.LogEntries()...)
	existing := make(map[string]struct{}, len(combined))
	for _, entry := range combined {
		existing[logEntryKey(entry.Time, entry.Level, entry.Message, entry.Component)] = struct{}{}
	}

	for _, entry := range s.runs.Logs("") {
		converted := common.LogEntry{
			Time:      entry.Time,
			Level:     strings.ToLower(entry.Level),
			Message:   entry.Message,
			Component: "run",
		}
		if entry.RunID != "" {
			converted.Attributes = map[string]any{"run_id": entry.RunID}
		}
		key := logEntryKey(converted.Time, converted.Level, converted.Message, converted.Component)
		if _, ok := existing[key]; ok {
			continue
		}
		combined = append(combined, converted)
		existing[key] = struct{}{}
	}

	sort.SliceStable(combined, func(i, j int) bool {
		if combined[i].Time.Equal(combined[j].Time) {
			if combined[i].Component == combined[j].Component {
				if combined[i].Level == combined[j].Level {
					return combined[i].Message < combined[j].Message
				}
				return combined[i].Level < combined[j].Level
			}
			return combined[i].Component < combined[j].Component
		}
		return combined[i].Time.Before(combined[j].Time)
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": combined})
}

func logEntryKey(ts time.Time, level, message, component string) string {
	stamp := ts.UTC().Format(time.RFC3339Nano)
	return strings.Join([]string{stamp, strings.ToLower(strings.TrimSpace(level)), strings.TrimSpace(component), message}, "|")
}
