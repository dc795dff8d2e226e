// File path: internal/llm/ratelimit_test.go
package llm

import (
	"context"
	"testing"
	"time"

	"github.com/nicodishanthj/funnelsim/internal/llm/providers"
)

func TestLimiterBurstThenQueue(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLimiter(1, 2)
	l.nowFunc = func() time.Time { return now }

	if d := l.reserve(); d != 0 {
		t.Fatalf("first reservation delayed %s", d)
	}
	if d := l.reserve(); d != 0 {
		t.Fatalf("second reservation delayed %s", d)
	}
	if d := l.reserve(); d != time.Second {
		t.Errorf("third reservation delay = %s, want 1s", d)
	}
	if d := l.reserve(); d != 2*time.Second {
		t.Errorf("fourth reservation delay = %s, want 2s", d)
	}
}

func TestLimiterRefill(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLimiter(2, 1)
	l.nowFunc = func() time.Time { return now }

	if d := l.reserve(); d != 0 {
		t.Fatalf("initial reservation delayed %s", d)
	}
	if d := l.reserve(); d == 0 {
		t.Fatalf("expected delay once bucket drained")
	}
	now = now.Add(5 * time.Second)
	if d := l.reserve(); d != 0 {
		t.Errorf("reservation after refill delayed %s", d)
	}
}

func TestLimiterWaitHonorsCancel(t *testing.T) {
	l := NewLimiter(0.01, 1)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("burst wait: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx); err != context.Canceled {
		t.Errorf("Wait after cancel = %v, want context.Canceled", err)
	}
}

type staticProvider struct {
	reply string
	calls int
}

func (s *staticProvider) Chat(ctx context.Context, messages []providers.Message) (string, error) {
	s.calls++
	return s.reply, nil
}

func (s *staticProvider) Name() string { return "static" }

func TestWithRateLimitPassthrough(t *testing.T) {
	p := &staticProvider{reply: "ok"}
	if got := WithRateLimit(p, 0); got != providers.Provider(p) {
		t.Fatalf("zero rps should return the provider unchanged")
	}
}

func TestLimitedProviderDelegates(t *testing.T) {
	p := &staticProvider{reply: "ok"}
	limited := WithRateLimit(p, 100)
	if limited.Name() != "static" {
		t.Errorf("Name = %q", limited.Name())
	}
	out, err := limited.Chat(context.Background(), []providers.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out != "ok" || p.calls != 1 {
		t.Errorf("out = %q calls = %d", out, p.calls)
	}
}
