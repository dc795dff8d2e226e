// File path: internal/store/runs.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nicodishanthj/funnelsim/internal/funnel"
)

// RunRecord is one archived simulation run. Result holds the full
// funnel.RunResult encoded as JSON; list queries skip it.
type RunRecord struct {
	ID             string    `db:"id" json:"id"`
	StartedAt      time.Time `db:"started_at" json:"started_at"`
	CompletedAt    time.Time `db:"completed_at" json:"completed_at"`
	StepCount      int       `db:"step_count" json:"step_count"`
	PersonaCount   int       `db:"persona_count" json:"persona_count"`
	Model          string    `db:"model" json:"model,omitempty"`
	ConversionRate float64   `db:"conversion_rate" json:"conversion_rate"`
	CompletedCount int       `db:"completed_count" json:"completed_count"`
	Fallbacks      int       `db:"fallbacks" json:"fallbacks"`
	Result         string    `db:"result" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"-"`
}

// StepStatRecord is one per-step aggregate row for an archived run.
type StepStatRecord struct {
	RunID       string   `db:"run_id" json:"run_id"`
	StepIndex   int      `db:"step_index" json:"step_index"`
	Title       string   `db:"title" json:"title"`
	Views       int      `db:"views" json:"views"`
	Drops       int      `db:"drops" json:"drops"`
	Hesitations int      `db:"hesitations" json:"hesitations"`
	DropRate    float64  `db:"drop_rate" json:"drop_rate"`
	AvgFriction *float64 `db:"avg_friction" json:"avg_friction"`
}

// RecordsFromResult maps a finished run into archive rows.
func RecordsFromResult(runID, model string, startedAt, completedAt time.Time, result funnel.RunResult) (RunRecord, []StepStatRecord, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return RunRecord{}, nil, fmt.Errorf("run id required")
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return RunRecord{}, nil, fmt.Errorf("encode result: %w", err)
	}
	rec := RunRecord{
		ID:             runID,
		StartedAt:      startedAt.UTC(),
		CompletedAt:    completedAt.UTC(),
		StepCount:      len(result.Steps),
		PersonaCount:   len(result.Personas),
		Model:          strings.TrimSpace(model),
		ConversionRate: result.ConversionRate,
		CompletedCount: result.Completed,
		Fallbacks:      result.Fallbacks,
		Result:         string(encoded),
	}
	stats := make([]StepStatRecord, 0, len(result.Stats))
	for _, st := range result.Stats {
		row := StepStatRecord{
			RunID:       runID,
			StepIndex:   st.Index,
			Title:       st.Title,
			Views:       st.Views,
			Drops:       st.Drops,
			Hesitations: st.Hesitations,
			DropRate:    st.DropRate,
		}
		if st.AvgFriction != nil {
			avg := *st.AvgFriction
			row.AvgFriction = &avg
		}
		stats = append(stats, row)
	}
	return rec, stats, nil
}

// SaveRun inserts or replaces an archived run and its step aggregates within a
// single transaction.
func (s *Store) SaveRun(ctx context.Context, rec RunRecord, stats []StepStatRecord) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("run id required")
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin run save: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs(id, started_at, completed_at, step_count, persona_count, model, conversion_rate, completed_count, fallbacks, result)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
        started_at=excluded.started_at,
        completed_at=excluded.completed_at,
        step_count=excluded.step_count,
        persona_count=excluded.persona_count,
        model=excluded.model,
        conversion_rate=excluded.conversion_rate,
        completed_count=excluded.completed_count,
        fallbacks=excluded.fallbacks,
        result=excluded.result`,
		rec.ID,
		rec.StartedAt.UTC(),
		rec.CompletedAt.UTC(),
		rec.StepCount,
		rec.PersonaCount,
		rec.Model,
		rec.ConversionRate,
		rec.CompletedCount,
		rec.Fallbacks,
		rec.Result,
	)
	if err != nil {
		return fmt.Errorf("upsert run %s: %w", rec.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM step_stats WHERE run_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("clear step stats for %s: %w", rec.ID, err)
	}
	for _, st := range stats {
		_, err := tx.ExecContext(ctx, `
INSERT INTO step_stats(run_id, step_index, title, views, drops, hesitations, drop_rate, avg_friction)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID,
			st.StepIndex,
			st.Title,
			st.Views,
			st.Drops,
			st.Hesitations,
			st.DropRate,
			st.AvgFriction,
		)
		if err != nil {
			return fmt.Errorf("insert step stat %d for %s: %w", st.StepIndex, rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run save: %w", err)
	}
	committed = true
	return nil
}

// ListRuns returns archived run summaries, newest first. The Result column is
// omitted; fetch it with GetResult. limit <= 0 defaults to 50.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	runs := []RunRecord{}
	query := `
SELECT id, started_at, completed_at, step_count, persona_count, model, conversion_rate, completed_count, fallbacks, '' AS result, created_at
FROM runs
ORDER BY started_at DESC, id DESC
LIMIT ?`
	if err := s.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	return runs, nil
}

// GetRun retrieves a single archived run including its encoded result.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run id required")
	}
	var rec RunRecord
	if err := s.db.GetContext(ctx, &rec, `SELECT * FROM runs WHERE id = ?`, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select run %s: %w", runID, err)
	}
	return &rec, nil
}

// GetResult decodes the archived funnel.RunResult for a run.
func (s *Store) GetResult(ctx context.Context, runID string) (funnel.RunResult, error) {
	rec, err := s.GetRun(ctx, runID)
	if err != nil {
		return funnel.RunResult{}, err
	}
	var result funnel.RunResult
	if err := json.Unmarshal([]byte(rec.Result), &result); err != nil {
		return funnel.RunResult{}, fmt.Errorf("decode result for %s: %w", runID, err)
	}
	return result, nil
}

// StatsForRun returns the per-step aggregate rows for an archived run.
func (s *Store) StatsForRun(ctx context.Context, runID string) ([]StepStatRecord, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	stats := []StepStatRecord{}
	if err := s.db.SelectContext(ctx, &stats, `SELECT * FROM step_stats WHERE run_id = ? ORDER BY step_index`, runID); err != nil {
		return nil, fmt.Errorf("select step stats for %s: %w", runID, err)
	}
	return stats, nil
}

// DeleteRun removes an archived run and, via cascade, its step aggregates.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountRuns reports how many runs the archive currently holds.
func (s *Store) CountRuns(ctx context.Context) (int, error) {
	if err := s.ensureReady(); err != nil {
		return 0, err
	}
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM runs`); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return count, nil
}
