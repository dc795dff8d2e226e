// File path: internal/run/runner.go
package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nicodishanthj/funnelsim/internal/common"
	"github.com/nicodishanthj/funnelsim/internal/common/telemetry"
	"github.com/nicodishanthj/funnelsim/internal/funnel"
	"github.com/nicodishanthj/funnelsim/internal/llm"
	"github.com/nicodishanthj/funnelsim/internal/sim"
	"github.com/nicodishanthj/funnelsim/internal/store"
)

const (
	personasPhase = 0
	journeysPhase = 1
	metricsPhase  = 2
)

const archiveTimeout = 10 * time.Second

// execute drives a run through its phases: persona generation, journey
// simulation, and metric aggregation. Cancellation is checked between phases
// so a stop request lands on a phase boundary.
func (m *Manager) execute(ctx context.Context, runID string, req Request) {
	ctx, finish := telemetry.StartSpan(ctx, "run.execute")
	defer finish("run_id", runID)

	provider, err := m.providerFor(req.Model)
	if err != nil {
		m.failRun(runID, personasPhase, err)
		return
	}

	if m.runCanceled(ctx, runID) {
		return
	}
	m.setRunPhase(runID, personasPhase, PhaseRunning, fmt.Sprintf("Generating %d personas", req.Personas))
	generator := sim.NewGenerator(provider, m.cfg.RequestTimeout)
	personas, err := generator.Generate(ctx, req.Steps, req.Personas)
	if err != nil {
		if isCanceledErr(err) {
			m.markRunCanceled(runID)
			return
		}
		m.failRun(runID, personasPhase, err)
		return
	}
	m.setRunPhase(runID, personasPhase, PhaseCompleted, fmt.Sprintf("%d personas ready", len(personas)))
	m.AppendLog(runID, "info", "run %s generated %d personas", runID, len(personas))

	if m.runCanceled(ctx, runID) {
		return
	}
	m.setRunPhase(runID, journeysPhase, PhaseRunning, fmt.Sprintf("Simulating %d journeys across %d steps", len(personas), len(req.Steps)))
	simulator := sim.NewSimulator(provider, req.Steps, m.cfg.RequestTimeout)
	journeys, err := simulator.RunJourneys(ctx, personas, req.Workers)
	if err != nil {
		if isCanceledErr(err) {
			m.markRunCanceled(runID)
			return
		}
		m.failRun(runID, journeysPhase, err)
		return
	}
	m.setRunPhase(runID, journeysPhase, PhaseCompleted, fmt.Sprintf("%d journeys simulated", len(journeys)))
	m.AppendLog(runID, "info", "run %s simulated %d journeys", runID, len(journeys))

	if m.runCanceled(ctx, runID) {
		return
	}
	m.setRunPhase(runID, metricsPhase, PhaseRunning, "Aggregating metrics")
	result := funnel.Aggregate(req.Steps, personas, journeys)
	m.setRunPhase(runID, metricsPhase, PhaseCompleted,
		fmt.Sprintf("Conversion rate %.1f%% across %d personas", result.ConversionRate*100, len(personas)))
	m.completeRun(runID, req, result)
}

// providerFor returns the configured provider, or builds a fresh one when the
// request overrides the model.
func (m *Manager) providerFor(model string) (llm.Provider, error) {
	if model == "" || model == m.cfg.Model {
		return m.provider, nil
	}
	cfg := m.cfg
	cfg.Model = model
	return llm.New(cfg)
}

// runCanceled reports whether the run context has been canceled and, if so,
// marks the run state accordingly.
func (m *Manager) runCanceled(ctx context.Context, runID string) bool {
	select {
	case <-ctx.Done():
		m.markRunCanceled(runID)
		return true
	default:
		return false
	}
}

func (m *Manager) setRunPhase(runID string, index int, status PhaseStatus, message string) {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	sess, ok := m.runs[runID]
	if !ok {
		return
	}
	if index < 0 || index >= len(sess.state.Phases) {
		return
	}
	if sess.state.Status == "canceled" {
		return
	}
	phase := &sess.state.Phases[index]
	phase.Status = status
	phase.Message = message
	now := time.Now().UTC()
	switch status {
	case PhaseRunning:
		if phase.StartedAt == nil {
			phase.StartedAt = &now
		}
	case PhaseCompleted, PhaseError:
		phase.CompletedAt = &now
	}
}

func (m *Manager) failRun(runID string, phaseIndex int, err error) {
	m.AppendLog(runID, "error", "run %s failed: %v", runID, err)
	m.setRunPhase(runID, phaseIndex, PhaseError, err.Error())

	m.runMu.Lock()
	sess, ok := m.runs[runID]
	if !ok {
		m.runMu.Unlock()
		return
	}
	now := time.Now().UTC()
	sess.state.Status = "error"
	sess.state.Running = false
	sess.state.Error = err.Error()
	sess.state.CompletedAt = &now
	sess.cancel = nil
	state := cloneState(sess.state)
	m.runMu.Unlock()

	m.persistRunState(state)
	telemetry.RecordRunFailed()
}

func (m *Manager) completeRun(runID string, req Request, result funnel.RunResult) {
	m.runMu.Lock()
	sess, ok := m.runs[runID]
	if !ok {
		m.runMu.Unlock()
		return
	}
	now := time.Now().UTC()
	sess.state.Status = "completed"
	sess.state.Running = false
	sess.state.CompletedAt = &now
	sess.state.Result = &result
	sess.cancel = nil
	state := cloneState(sess.state)
	m.runMu.Unlock()

	m.persistRunState(state)
	telemetry.RecordRunCompleted()
	m.AppendLog(runID, "info", "run %s completed: conversion %.3f, %d fallbacks", runID, result.ConversionRate, result.Fallbacks)
	m.archiveRun(state, req, result)
}

// archiveRun writes a completed run to the SQLite archive when one is
// configured. Archive failures are logged but never fail the run.
func (m *Manager) archiveRun(state State, req Request, result funnel.RunResult) {
	if m.archive == nil {
		return
	}
	model := req.Model
	if model == "" {
		model = m.cfg.Model
	}
	started := timeOrZero(state.StartedAt)
	completed := timeOrZero(state.CompletedAt)
	rec, stats, err := store.RecordsFromResult(state.RunID, model, started, completed, result)
	if err != nil {
		common.Logger().Warn("run: archive mapping failed", "run_id", state.RunID, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := m.archive.SaveRun(ctx, rec, stats); err != nil {
		common.Logger().Warn("run: archive save failed", "run_id", state.RunID, "error", err)
		return
	}
	m.AppendLog(state.RunID, "debug", "run %s archived", state.RunID)
}

func (m *Manager) markRunCanceled(runID string) {
	m.runMu.Lock()
	sess, ok := m.runs[runID]
	if !ok {
		m.runMu.Unlock()
		return
	}
	now := time.Now().UTC()
	sess.state.Status = "canceled"
	sess.state.Running = false
	sess.state.CompletedAt = &now
	for i := range sess.state.Phases {
		if sess.state.Phases[i].Status == PhaseRunning {
			sess.state.Phases[i].Status = PhaseError
			sess.state.Phases[i].Message = "Canceled"
			sess.state.Phases[i].CompletedAt = &now
		}
	}
	sess.cancel = nil
	state := cloneState(sess.state)
	m.runMu.Unlock()

	m.persistRunState(state)
	telemetry.RecordRunCanceled()
	m.AppendLog(runID, "info", "run %s canceled", runID)
}

func isCanceledErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
