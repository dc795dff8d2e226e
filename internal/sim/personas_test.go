// File path: internal/sim/personas_test.go
package sim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nicodishanthj/funnelsim/internal/funnel"
	"github.com/nicodishanthj/funnelsim/internal/llm"
)

type scriptedCall struct {
	reply string
	err   error
}

// scriptProvider replays scripted responses in call order, repeating the
// last entry once the script is exhausted. When fn is set it answers from
// the request instead, which keeps parallel tests deterministic.
type scriptProvider struct {
	mu      sync.Mutex
	script  []scriptedCall
	fn      func(messages []llm.Message) (string, error)
	calls   int
	prompts []string
}

func (s *scriptProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	idx := s.calls
	s.calls++
	for _, msg := range messages {
		if msg.Role == "user" {
			s.prompts = append(s.prompts, msg.Content)
		}
	}
	if s.fn != nil {
		return s.fn(messages)
	}
	if len(s.script) == 0 {
		return "", fmt.Errorf("no scripted reply for call %d", idx)
	}
	call := s.script[len(s.script)-1]
	if idx < len(s.script) {
		call = s.script[idx]
	}
	return call.reply, call.err
}

func (s *scriptProvider) Name() string { return "script" }

func (s *scriptProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptProvider) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return ""
	}
	return s.prompts[len(s.prompts)-1]
}

func personaJSON(names ...string) string {
	var b strings.Builder
	b.WriteString(`{"personas":[`)
	for i, name := range names {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"name":%q,"bio":"A user named %s.","traits":["curious"],"tendencies":["skims"]}`, name, name)
	}
	b.WriteString("]}")
	return b.String()
}

func testSteps(t *testing.T) []funnel.Step {
	t.Helper()
	steps, err := funnel.ParseFlow("Landing Page - Hero and CTA\nCheckout - Enter card details", 0)
	if err != nil {
		t.Fatalf("ParseFlow: %v", err)
	}
	return steps
}

func TestGenerateAssignsSequentialIDs(t *testing.T) {
	provider := &scriptProvider{script: []scriptedCall{{reply: personaJSON("Ana", "Bo", "Cam")}}}
	gen := NewGenerator(provider, time.Second)
	personas, err := gen.Generate(context.Background(), testSteps(t), 3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(personas) != 3 {
		t.Fatalf("personas = %d, want 3", len(personas))
	}
	for i, persona := range personas {
		if persona.ID != i+1 {
			t.Errorf("persona %d ID = %d, want %d", i, persona.ID, i+1)
		}
	}
	if personas[0].Name != "Ana" || personas[2].Name != "Cam" {
		t.Errorf("unexpected names %q %q", personas[0].Name, personas[2].Name)
	}
	if provider.callCount() != 1 {
		t.Errorf("calls = %d, want 1", provider.callCount())
	}
	if !strings.Contains(provider.lastPrompt(), "Create 3 distinct user personas") {
		t.Errorf("prompt missing count: %q", provider.lastPrompt())
	}
	if !strings.Contains(provider.lastPrompt(), "Landing Page: Hero and CTA") {
		t.Errorf("prompt missing flow context: %q", provider.lastPrompt())
	}
}

func TestGenerateRejectsCountLocally(t *testing.T) {
	provider := &scriptProvider{}
	gen := NewGenerator(provider, time.Second)
	for _, count := range []int{0, 2, 16} {
		if _, err := gen.Generate(context.Background(), testSteps(t), count); !errors.Is(err, funnel.ErrValidation) {
			t.Errorf("count %d: err = %v, want ErrValidation", count, err)
		}
	}
	if provider.callCount() != 0 {
		t.Errorf("provider called %d times for invalid counts", provider.callCount())
	}
}

func TestGenerateTrimsSurplus(t *testing.T) {
	provider := &scriptProvider{script: []scriptedCall{{reply: personaJSON("Ana", "Bo", "Cam", "Dee", "Eli")}}}
	gen := NewGenerator(provider, time.Second)
	personas, err := gen.Generate(context.Background(), testSteps(t), 3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(personas) != 3 {
		t.Fatalf("personas = %d, want 3", len(personas))
	}
	if personas[2].Name != "Cam" {
		t.Errorf("surplus should be trimmed in order, got %q", personas[2].Name)
	}
}

func TestGenerateReplacesInvalidPersonas(t *testing.T) {
	withInvalid := `{"personas":[
  {"name":"Ana","bio":"Busy founder.","traits":["impatient"],"tendencies":["skims"]},
  {"name":"","bio":"Nameless.","traits":["?"],"tendencies":["?"]},
  {"name":"Bo","bio":"Retired teacher.","traits":["careful"],"tendencies":["reads"]}
]}`
	provider := &scriptProvider{script: []scriptedCall{
		{reply: withInvalid},
		{reply: personaJSON("Cam")},
	}}
	gen := NewGenerator(provider, time.Second)
	personas, err := gen.Generate(context.Background(), testSteps(t), 3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(personas) != 3 {
		t.Fatalf("personas = %d, want 3", len(personas))
	}
	if personas[2].Name != "Cam" || personas[2].ID != 3 {
		t.Errorf("replacement = %q/%d, want Cam/3", personas[2].Name, personas[2].ID)
	}
	if provider.callCount() != 2 {
		t.Errorf("calls = %d, want 2", provider.callCount())
	}
	if !strings.Contains(provider.lastPrompt(), "Create 1 distinct user personas") {
		t.Errorf("replacement prompt should request the shortfall: %q", provider.lastPrompt())
	}
}

func TestGenerateRetriesMalformedBatch(t *testing.T) {
	provider := &scriptProvider{script: []scriptedCall{
		{reply: "I would rather not."},
		{reply: personaJSON("Ana", "Bo", "Cam")},
	}}
	gen := NewGenerator(provider, time.Second)
	personas, err := gen.Generate(context.Background(), testSteps(t), 3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(personas) != 3 || provider.callCount() != 2 {
		t.Errorf("personas = %d calls = %d", len(personas), provider.callCount())
	}
}

func TestGenerateFailsWhenRetryMalformed(t *testing.T) {
	provider := &scriptProvider{script: []scriptedCall{
		{reply: "nope"},
		{reply: "still nope"},
	}}
	gen := NewGenerator(provider, time.Second)
	_, err := gen.Generate(context.Background(), testSteps(t), 3)
	if !errors.Is(err, funnel.ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
	if provider.callCount() != 2 {
		t.Errorf("calls = %d, want 2", provider.callCount())
	}
}

func TestGenerateFailsAfterReplacementBudget(t *testing.T) {
	invalid := `{"personas":[{"name":"","bio":"","traits":[],"tendencies":[]}]}`
	provider := &scriptProvider{script: []scriptedCall{{reply: invalid}}}
	gen := NewGenerator(provider, time.Second)
	_, err := gen.Generate(context.Background(), testSteps(t), 3)
	if !errors.Is(err, funnel.ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
	// Initial batch plus two replacement attempts, no inner retries: the
	// payloads decode fine, the personas just fail validation.
	if provider.callCount() != 3 {
		t.Errorf("calls = %d, want 3", provider.callCount())
	}
}

func TestGenerateCancelPropagates(t *testing.T) {
	provider := &scriptProvider{script: []scriptedCall{{reply: personaJSON("Ana")}}}
	gen := NewGenerator(provider, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gen.Generate(ctx, testSteps(t), 3)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, funnel.ErrGeneration) {
		t.Errorf("cancellation must not be reported as a generation failure")
	}
}
