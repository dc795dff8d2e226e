// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"context"
	"expvar"
	"strings"
	"sync"
	"time"

	"github.com/nicodishanthj/funnelsim/internal/common"
)

type spanKey struct{}

type span struct {
	name  string
	start time.Time
}

var (
	initOnce sync.Once

	llmRequestsTotal  *expvar.Int
	llmRetriesTotal   *expvar.Int
	llmFallbacksTotal *expvar.Int
	llmLatencyMS      *expvar.Int

	runsStartedTotal   *expvar.Int
	runsCompletedTotal *expvar.Int
	runsCanceledTotal  *expvar.Int
	runsFailedTotal    *expvar.Int

	personasReplacedTotal *expvar.Int

	journeyOutcomes *expvar.Map
)

func ensureInit() {
	initOnce.Do(func() {
		llmRequestsTotal = expvar.NewInt("funnelsim_llm_requests_total")
		llmRetriesTotal = expvar.NewInt("funnelsim_llm_retries_total")
		llmFallbacksTotal = expvar.NewInt("funnelsim_llm_fallbacks_total")
		llmLatencyMS = expvar.NewInt("funnelsim_llm_latency_ms")

		runsStartedTotal = expvar.NewInt("funnelsim_runs_started_total")
		runsCompletedTotal = expvar.NewInt("funnelsim_runs_completed_total")
		runsCanceledTotal = expvar.NewInt("funnelsim_runs_canceled_total")
		runsFailedTotal = expvar.NewInt("funnelsim_runs_failed_total")

		personasReplacedTotal = expvar.NewInt("funnelsim_personas_replaced_total")

		journeyOutcomes = expvar.NewMap("funnelsim_journey_outcomes_total")
	})
}

// StartSpan marks the beginning of a traced section and returns a finish
// callback that logs the duration at debug level with any extra attributes.
func StartSpan(ctx context.Context, name string) (context.Context, func(attrs ...interface{})) {
	ensureInit()
	sp := &span{name: name, start: time.Now()}
	ctx = context.WithValue(ctx, spanKey{}, sp)
	logger := common.Logger()
	logger.Debug("trace: start", "span", name)
	return ctx, func(attrs ...interface{}) {
		duration := time.Since(sp.start)
		logger.Debug("trace: end", append([]interface{}{"span", name, "dur", duration}, attrs...)...)
	}
}

// RecordLLMRequest counts one provider call and its latency. retried marks
// calls issued by the single-retry policy rather than first attempts.
func RecordLLMRequest(retried bool, duration time.Duration) {
	ensureInit()
	llmRequestsTotal.Add(1)
	if retried {
		llmRetriesTotal.Add(1)
	}
	if duration > 0 {
		llmLatencyMS.Add(duration.Milliseconds())
	}
}

// RecordFallback counts a step outcome synthesized after persistent
// simulation failure.
func RecordFallback() {
	ensureInit()
	llmFallbacksTotal.Add(1)
}

// RecordPersonaReplacement counts personas re-requested after failing field
// validation.
func RecordPersonaReplacement(n int) {
	ensureInit()
	if n > 0 {
		personasReplacedTotal.Add(int64(n))
	}
}

// RecordRunStarted, RecordRunCompleted, RecordRunCanceled and RecordRunFailed
// track run lifecycle transitions.
func RecordRunStarted() {
	ensureInit()
	runsStartedTotal.Add(1)
}

func RecordRunCompleted() {
	ensureInit()
	runsCompletedTotal.Add(1)
}

func RecordRunCanceled() {
	ensureInit()
	runsCanceledTotal.Add(1)
}

func RecordRunFailed() {
	ensureInit()
	runsFailedTotal.Add(1)
}

// RecordJourneyOutcome tallies terminal journey states (completed, dropped)
// by label.
func RecordJourneyOutcome(kind string) {
	ensureInit()
	key := strings.TrimSpace(strings.ToLower(kind))
	if key == "" {
		key = "unknown"
	}
	journeyOutcomes.Add(key, 1)
}
