// File path: internal/sim/journey_test.go
package sim

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nicodishanthj/funnelsim/internal/funnel"
	"github.com/nicodishanthj/funnelsim/internal/llm"
)

func TestRunJourneyStopsAtDrop(t *testing.T) {
	provider := &scriptProvider{script: []scriptedCall{
		{reply: `{"action":"continue","friction":2,"reasoning":"fine"}`},
		{reply: `{"action":"drop","friction":8,"reasoning":"too much"}`},
	}}
	steps, err := funnel.ParseFlow("One - a\nTwo - b\nThree - c", 0)
	if err != nil {
		t.Fatalf("ParseFlow: %v", err)
	}
	simulator := NewSimulator(provider, steps, time.Second)
	journey, err := simulator.RunJourney(context.Background(), testPersona())
	if err != nil {
		t.Fatalf("RunJourney: %v", err)
	}
	if len(journey.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(journey.Outcomes))
	}
	if journey.DropStep != 2 || journey.Completed {
		t.Errorf("journey = %+v", journey)
	}
	if provider.callCount() != 2 {
		t.Errorf("steps after a drop must not be simulated, calls = %d", provider.callCount())
	}
}

func TestRunJourneyCompletes(t *testing.T) {
	provider := &scriptProvider{script: []scriptedCall{
		{reply: `{"action":"continue","friction":3,"reasoning":"fine"}`},
	}}
	steps := testSteps(t)
	simulator := NewSimulator(provider, steps, time.Second)
	journey, err := simulator.RunJourney(context.Background(), testPersona())
	if err != nil {
		t.Fatalf("RunJourney: %v", err)
	}
	if !journey.Completed || journey.DropStep != 0 {
		t.Errorf("journey = %+v", journey)
	}
	if len(journey.Outcomes) != len(steps) {
		t.Errorf("outcomes = %d, want %d", len(journey.Outcomes), len(steps))
	}
}

func TestRunJourneysParallelMatchesSequential(t *testing.T) {
	decide := func(messages []llm.Message) (string, error) {
		prompt := messages[len(messages)-1].Content
		if strings.Contains(prompt, "Name: Bo\n") {
			return `{"action":"drop","friction":9,"reasoning":"not convinced"}`, nil
		}
		return `{"action":"continue","friction":2,"reasoning":"fine"}`, nil
	}
	personas := []funnel.Persona{
		{ID: 1, Name: "Ana", Bio: "b", Traits: []string{"t"}, Tendencies: []string{"t"}},
		{ID: 2, Name: "Bo", Bio: "b", Traits: []string{"t"}, Tendencies: []string{"t"}},
		{ID: 3, Name: "Cam", Bio: "b", Traits: []string{"t"}, Tendencies: []string{"t"}},
	}
	steps := testSteps(t)

	sequential := NewSimulator(&scriptProvider{fn: decide}, steps, time.Second)
	want, err := sequential.RunJourneys(context.Background(), personas, 1)
	if err != nil {
		t.Fatalf("sequential RunJourneys: %v", err)
	}
	parallel := NewSimulator(&scriptProvider{fn: decide}, steps, time.Second)
	got, err := parallel.RunJourneys(context.Background(), personas, 3)
	if err != nil {
		t.Fatalf("parallel RunJourneys: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parallel journeys diverge:\ngot  %#v\nwant %#v", got, want)
	}
	if want[1].DropStep != 1 || want[1].Completed {
		t.Errorf("Bo should drop at step 1: %+v", want[1])
	}
}

func TestRunJourneysCancelled(t *testing.T) {
	provider := &scriptProvider{script: []scriptedCall{
		{reply: `{"action":"continue","friction":2,"reasoning":"fine"}`},
	}}
	steps := testSteps(t)
	simulator := NewSimulator(provider, steps, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	personas := []funnel.Persona{testPersona()}
	if _, err := simulator.RunJourneys(ctx, personas, 2); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
