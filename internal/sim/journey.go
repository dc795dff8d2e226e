// File path: internal/sim/journey.go
package sim

import (
	"context"
	"sync"

	"github.com/nicodishanthj/funnelsim/internal/common"
	"github.com/nicodishanthj/funnelsim/internal/common/telemetry"
	"github.com/nicodishanthj/funnelsim/internal/funnel"
)

// RunJourney walks one persona through the flow in step order, stopping at
// the first drop. Cancellation aborts the journey with the context error; a
// cancelled journey carries no outcomes.
func (s *Simulator) RunJourney(ctx context.Context, persona funnel.Persona) (funnel.Journey, error) {
	journey := funnel.Journey{PersonaID: persona.ID}
	var outcomes []funnel.StepOutcome
	for _, step := range s.steps {
		if err := ctx.Err(); err != nil {
			return funnel.Journey{}, err
		}
		outcome, err := s.SimulateStep(ctx, persona, step, outcomes)
		if err != nil {
			return funnel.Journey{}, err
		}
		outcomes = append(outcomes, outcome)
		telemetry.RecordJourneyOutcome(string(outcome.Action))
		if outcome.Action == funnel.ActionDrop {
			journey.DropStep = step.Index
			break
		}
	}
	journey.Outcomes = outcomes
	journey.Completed = journey.DropStep == 0 && len(s.steps) > 0
	return journey, nil
}

// RunJourneys simulates every persona. Journeys are independent, so workers
// above 1 fan them out over a bounded pool; results stay keyed by persona
// position, making the output identical to the sequential path.
func (s *Simulator) RunJourneys(ctx context.Context, personas []funnel.Persona, workers int) ([]funnel.Journey, error) {
	if workers <= 1 || len(personas) <= 1 {
		journeys := make([]funnel.Journey, 0, len(personas))
		for _, persona := range personas {
			journey, err := s.RunJourney(ctx, persona)
			if err != nil {
				return nil, err
			}
			journeys = append(journeys, journey)
		}
		return journeys, nil
	}

	logger := common.Logger()
	type journeyJob struct {
		index   int
		persona funnel.Persona
	}
	type journeyResult struct {
		index   int
		journey funnel.Journey
		err     error
	}
	workerCount := min(workers, len(personas))
	logger.Debug("sim: running journeys in parallel", "workers", workerCount, "personas", len(personas))
	jobCh := make(chan journeyJob)
	results := make(chan journeyResult, len(personas))
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				select {
				case <-ctx.Done():
					results <- journeyResult{index: job.index, err: ctx.Err()}
					continue
				default:
				}
				journey, err := s.RunJourney(ctx, job.persona)
				results <- journeyResult{index: job.index, journey: journey, err: err}
			}
		}()
	}
	go func() {
		for i, persona := range personas {
			jobCh <- journeyJob{index: i, persona: persona}
		}
		close(jobCh)
		wg.Wait()
		close(results)
	}()

	journeys := make([]funnel.Journey, len(personas))
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		journeys[res.index] = res.journey
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return journeys, nil
}
