// File path: internal/llm/providers/providers.go
package providers

import "context"

// Message is a single chat turn sent to a provider.
type Message struct {
	Role    string
	Content string
}

// Provider abstracts a chat completion backend so simulations can swap in
// scripted implementations.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Name() string
}
