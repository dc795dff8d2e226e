// File path: internal/run/manager.go
package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nicodishanthj/funnelsim/internal/common"
	"github.com/nicodishanthj/funnelsim/internal/common/telemetry"
	"github.com/nicodishanthj/funnelsim/internal/config"
	"github.com/nicodishanthj/funnelsim/internal/funnel"
	"github.com/nicodishanthj/funnelsim/internal/llm"
	"github.com/nicodishanthj/funnelsim/internal/store"
)

const maxLogEntries = 500

var (
	// ErrRunNotFound indicates the requested run identifier is unknown.
	ErrRunNotFound = errors.New("run not found")
	// ErrRunNotRunning indicates a stop request targeted a run that already finished.
	ErrRunNotRunning = errors.New("run is not running")
	// ErrRunNotFinished indicates the result was requested before the run completed.
	ErrRunNotFinished = errors.New("run has not finished")
	// ErrTooManyRuns indicates the concurrent run limit has been reached.
	ErrTooManyRuns = errors.New("too many active runs")
)

// PhaseStatus captures the lifecycle of a single run phase.
type PhaseStatus string

const (
	PhasePending   PhaseStatus = "pending"
	PhaseRunning   PhaseStatus = "running"
	PhaseCompleted PhaseStatus = "completed"
	PhaseError     PhaseStatus = "error"
)

// Phase describes one stage of a simulation run.
type Phase struct {
	Name        string      `json:"name"`
	Status      PhaseStatus `json:"status"`
	Message     string      `json:"message,omitempty"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// LogEntry is a single run-scoped log line retained in memory.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
	RunID   string    `json:"run_id,omitempty"`
}

// Request describes a simulation run to start. Either FlowText or Steps
// must be provided; Steps wins when both are set.
type Request struct {
	FlowText string        `json:"flow_text,omitempty"`
	Steps    []funnel.Step `json:"steps,omitempty"`
	Personas int           `json:"personas,omitempty"`
	Model    string        `json:"model,omitempty"`
	Workers  int           `json:"workers,omitempty"`
}

// State is the externally visible snapshot of a run.
type State struct {
	RunID       string            `json:"run_id"`
	Status      string            `json:"status"`
	Running     bool              `json:"running"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Phases      []Phase           `json:"phases"`
	Error       string            `json:"error,omitempty"`
	Steps       []funnel.Step     `json:"steps,omitempty"`
	Personas    int               `json:"personas"`
	Model       string            `json:"model,omitempty"`
	Workers     int               `json:"workers,omitempty"`
	Result      *funnel.RunResult `json:"result,omitempty"`
}

type session struct {
	state  State
	cancel context.CancelFunc
}

// Manager owns run lifecycles: it starts simulations, tracks their phases,
// persists finished runs to history, and archives results when a store is
// configured.
type Manager struct {
	provider llm.Provider
	cfg      config.Config
	archive  *store.Store

	historyPath string
	historyMu   sync.Mutex
	history     map[string]State

	logMu sync.Mutex
	logs  []LogEntry

	runMu sync.Mutex
	runs  map[string]*session
}

// NewManager wires a manager around the given provider and configuration.
// The archive store may be nil, in which case finished runs are only kept
// in the JSON history file.
func NewManager(provider llm.Provider, cfg config.Config, archive *store.Store) *Manager {
	m := &Manager{
		provider:    provider,
		cfg:         cfg,
		archive:     archive,
		historyPath: cfg.HistoryPath,
		history:     make(map[string]State),
		runs:        make(map[string]*session),
	}
	if err := m.loadHistory(); err != nil {
		common.Logger().Warn("run: load history failed", "error", err)
	}
	return m
}

// AppendLog records a run-scoped log line and mirrors it to the process logger.
func (m *Manager) AppendLog(runID, level, format string, args ...interface{}) {
	entry := LogEntry{
		Time:    time.Now().UTC(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
		RunID:   runID,
	}
	m.logMu.Lock()
	m.logs = append(m.logs, entry)
	if len(m.logs) > maxLogEntries {
		m.logs = m.logs[len(m.logs)-maxLogEntries:]
	}
	m.logMu.Unlock()
	logger := common.Logger()
	switch level {
	case "error":
		logger.Error(entry.Message)
	case "warn":
		logger.Warn(entry.Message)
	case "debug":
		logger.Debug(entry.Message)
	default:
		logger.Info(entry.Message)
	}
}

// Logs returns retained log entries, optionally filtered by run identifier.
func (m *Manager) Logs(runID string) []LogEntry {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	out := make([]LogEntry, 0, len(m.logs))
	for _, entry := range m.logs {
		if runID != "" && entry.RunID != runID {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// Start validates the request, registers a new run, and launches it in the
// background. It returns the run identifier.
func (m *Manager) Start(req Request) (string, error) {
	normalized, err := m.normalizeRequest(req)
	if err != nil {
		return "", err
	}

	m.runMu.Lock()
	active := 0
	for _, sess := range m.runs {
		if sess.state.Running {
			active++
		}
	}
	if active >= m.cfg.MaxActiveRuns {
		m.runMu.Unlock()
		return "", fmt.Errorf("%w: limit %d", ErrTooManyRuns, m.cfg.MaxActiveRuns)
	}

	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
	now := time.Now().UTC()
	state := State{
		RunID:     runID,
		Status:    "running",
		Running:   true,
		StartedAt: &now,
		Phases: []Phase{
			{Name: "Generate personas", Status: PhasePending},
			{Name: "Simulate journeys", Status: PhasePending},
			{Name: "Aggregate metrics", Status: PhasePending},
		},
		Steps:    normalized.Steps,
		Personas: normalized.Personas,
		Model:    normalized.Model,
		Workers:  normalized.Workers,
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.runs[runID] = &session{state: state, cancel: cancel}
	m.runMu.Unlock()

	m.AppendLog(runID, "info", "run %s started: %d steps, %d personas", runID, len(normalized.Steps), normalized.Personas)
	telemetry.RecordRunStarted()
	go m.execute(ctx, runID, normalized)
	return runID, nil
}

// Stop requests cancellation of a running simulation.
func (m *Manager) Stop(runID string) error {
	m.runMu.Lock()
	sess, ok := m.runs[runID]
	if !ok {
		m.runMu.Unlock()
		return ErrRunNotFound
	}
	if !sess.state.Running || sess.cancel == nil {
		m.runMu.Unlock()
		return ErrRunNotRunning
	}
	sess.state.Status = "canceling"
	cancel := sess.cancel
	m.runMu.Unlock()

	m.AppendLog(runID, "info", "run %s cancellation requested", runID)
	cancel()
	return nil
}

// Status returns a snapshot of the run, consulting active sessions first and
// the persisted history second.
func (m *Manager) Status(runID string) (State, error) {
	m.runMu.Lock()
	if sess, ok := m.runs[runID]; ok {
		state := cloneState(sess.state)
		m.runMu.Unlock()
		return state, nil
	}
	m.runMu.Unlock()

	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	if state, ok := m.history[runID]; ok {
		return cloneState(state), nil
	}
	return State{}, ErrRunNotFound
}

// List returns all known runs, newest first.
func (m *Manager) List() []State {
	seen := make(map[string]struct{})
	out := []State{}

	m.runMu.Lock()
	for id, sess := range m.runs {
		out = append(out, cloneState(sess.state))
		seen[id] = struct{}{}
	}
	m.runMu.Unlock()

	m.historyMu.Lock()
	for id, state := range m.history {
		if _, ok := seen[id]; ok {
			continue
		}
		out = append(out, cloneState(state))
	}
	m.historyMu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		ti, tj := timeOrZero(out[i].StartedAt), timeOrZero(out[j].StartedAt)
		if ti.Equal(tj) {
			return out[i].RunID > out[j].RunID
		}
		return ti.After(tj)
	})
	return out
}

// Result returns the aggregated metrics for a completed run.
func (m *Manager) Result(runID string) (funnel.RunResult, error) {
	state, err := m.Status(runID)
	if err != nil {
		return funnel.RunResult{}, err
	}
	if state.Status != "completed" || state.Result == nil {
		return funnel.RunResult{}, fmt.Errorf("%w: run %s is %s", ErrRunNotFinished, runID, state.Status)
	}
	return *state.Result, nil
}

func (m *Manager) normalizeRequest(req Request) (Request, error) {
	req.FlowText = strings.TrimSpace(req.FlowText)
	req.Model = strings.TrimSpace(req.Model)

	if len(req.Steps) == 0 {
		steps, err := funnel.ParseFlow(req.FlowText, m.cfg.MaxFlowSteps)
		if err != nil {
			return Request{}, err
		}
		req.Steps = steps
	} else {
		if len(req.Steps) < funnel.MinFlowSteps {
			return Request{}, fmt.Errorf("%w: flow needs at least %d steps, got %d", funnel.ErrValidation, funnel.MinFlowSteps, len(req.Steps))
		}
		if m.cfg.MaxFlowSteps > 0 && len(req.Steps) > m.cfg.MaxFlowSteps {
			return Request{}, fmt.Errorf("%w: flow exceeds %d steps", funnel.ErrValidation, m.cfg.MaxFlowSteps)
		}
		for i := range req.Steps {
			req.Steps[i].Index = i + 1
			req.Steps[i].Title = strings.TrimSpace(req.Steps[i].Title)
			req.Steps[i].Description = strings.TrimSpace(req.Steps[i].Description)
			if req.Steps[i].Title == "" {
				return Request{}, fmt.Errorf("%w: step %d has no title", funnel.ErrValidation, i+1)
			}
			if req.Steps[i].Kind == "" {
				req.Steps[i].Kind = funnel.StepDecision
			}
			if !funnel.ValidKind(req.Steps[i].Kind) {
				return Request{}, fmt.Errorf("%w: step %d has unknown kind %q", funnel.ErrValidation, i+1, req.Steps[i].Kind)
			}
		}
	}
	if req.Personas == 0 {
		req.Personas = m.cfg.DefaultPersonas
	}
	if err := funnel.ValidatePersonaCount(req.Personas); err != nil {
		return Request{}, err
	}
	if req.Workers <= 0 {
		req.Workers = m.cfg.JourneyWorkers
	}
	return req, nil
}

func cloneState(state State) State {
	clone := state
	if len(state.Phases) > 0 {
		clone.Phases = append([]Phase(nil), state.Phases...)
	}
	if len(state.Steps) > 0 {
		clone.Steps = append([]funnel.Step(nil), state.Steps...)
	}
	if state.Result != nil {
		result := cloneResult(*state.Result)
		clone.Result = &result
	}
	return clone
}

func cloneResult(result funnel.RunResult) funnel.RunResult {
	clone := result
	clone.Steps = append([]funnel.Step(nil), result.Steps...)
	if len(result.Personas) > 0 {
		clone.Personas = make([]funnel.Persona, len(result.Personas))
		for i, persona := range result.Personas {
			p := persona
			p.Traits = append([]string(nil), persona.Traits...)
			p.Tendencies = append([]string(nil), persona.Tendencies...)
			clone.Personas[i] = p
		}
	}
	if len(result.Journeys) > 0 {
		clone.Journeys = make([]funnel.Journey, len(result.Journeys))
		for i, journey := range result.Journeys {
			j := journey
			j.Outcomes = append([]funnel.StepOutcome(nil), journey.Outcomes...)
			clone.Journeys[i] = j
		}
	}
	if len(result.Stats) > 0 {
		clone.Stats = make([]funnel.StepStats, len(result.Stats))
		for i, stats := range result.Stats {
			s := stats
			if stats.AvgFriction != nil {
				avg := *stats.AvgFriction
				s.AvgFriction = &avg
			}
			clone.Stats[i] = s
		}
	}
	if len(result.PersonaSummaries) > 0 {
		clone.PersonaSummaries = append([]funnel.PersonaSummary(nil), result.PersonaSummaries...)
	}
	return clone
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func (m *Manager) loadHistory() error {
	if m.historyPath == "" {
		return nil
	}
	data, err := os.ReadFile(m.historyPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read history: %w", err)
	}
	var stored map[string]State
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("decode history: %w", err)
	}
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	for id, state := range stored {
		m.history[id] = cloneState(state)
	}
	return nil
}

func (m *Manager) saveHistoryLocked() error {
	if m.historyPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.historyPath), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	tmp := m.historyPath + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create history file: %w", err)
	}
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(m.history); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode history: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close history file: %w", err)
	}
	if err := os.Rename(tmp, m.historyPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}

// persistRunState snapshots a finished run into history and writes it to disk.
func (m *Manager) persistRunState(state State) {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	m.history[state.RunID] = cloneState(state)
	if err := m.saveHistoryLocked(); err != nil {
		common.Logger().Warn("run: persist history failed", "run_id", state.RunID, "error", err)
	}
}
