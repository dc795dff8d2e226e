// File path: internal/llm/ratelimit.go
package llm

import (
	"context"
	"sync"
	"time"

	"github.com/nicodishanthj/funnelsim/internal/llm/providers"
)

// Limiter is a token bucket that paces outbound provider calls.
// It is safe for concurrent use.
type Limiter struct {
	mu        sync.Mutex
	tokens    float64
	rate      float64 // tokens per second
	burst     float64
	lastCheck time.Time
	nowFunc   func() time.Time // injectable clock for testing
}

// NewLimiter creates a limiter with the given rate (tokens/sec) and burst
// size. The burst size also serves as the initial number of tokens.
func NewLimiter(rate float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{rate: rate, burst: float64(burst), nowFunc: time.Now}
}

// reserve deducts one token and reports how long the caller must wait before
// proceeding. Callers queue when the bucket drains.
func (l *Limiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if l.lastCheck.IsZero() {
		// First reservation: start with a full bucket.
		l.tokens = l.burst
		l.lastCheck = now
	}
	elapsed := now.Sub(l.lastCheck).Seconds()
	if elapsed > 0 {
		l.tokens += l.rate * elapsed
		if l.tokens > l.burst {
			l.tokens = l.burst
		}
		l.lastCheck = now
	}
	l.tokens--
	if l.tokens >= 0 {
		return 0
	}
	return time.Duration(-l.tokens / l.rate * float64(time.Second))
}

// Wait blocks until a token is available or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	delay := l.reserve()
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type limitedProvider struct {
	next    providers.Provider
	limiter *Limiter
}

// WithRateLimit wraps a provider so calls are paced at rps requests per
// second. A non-positive rps returns the provider unchanged.
func WithRateLimit(p providers.Provider, rps float64) providers.Provider {
	if rps <= 0 {
		return p
	}
	return &limitedProvider{next: p, limiter: NewLimiter(rps, 1)}
}

func (l *limitedProvider) Chat(ctx context.Context, messages []providers.Message) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.next.Chat(ctx, messages)
}

func (l *limitedProvider) Name() string {
	return l.next.Name()
}
