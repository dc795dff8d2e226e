// File path: internal/llm/llm_test.go
package llm

import (
	"errors"
	"testing"

	"github.com/nicodishanthj/funnelsim/internal/config"
	"github.com/nicodishanthj/funnelsim/internal/funnel"
)

func TestNewRequiresAPIKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider = "openai"
	cfg.APIKey = ""
	if _, err := New(cfg); !errors.Is(err, funnel.ErrConfiguration) {
		t.Fatalf("New without key = %v, want ErrConfiguration", err)
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider = "bedrock"
	if _, err := New(cfg); !errors.Is(err, funnel.ErrConfiguration) {
		t.Fatalf("New with unknown provider = %v, want ErrConfiguration", err)
	}
}

func TestNewSelectsOpenAI(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider = "openai"
	cfg.APIKey = "test-key"
	provider, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if provider.Name() != "openai" {
		t.Errorf("Name = %q", provider.Name())
	}
}

func TestNewKeepsNameThroughRateLimit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider = "openai"
	cfg.APIKey = "test-key"
	cfg.LLMRPS = 5
	provider, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if provider.Name() != "openai" {
		t.Errorf("Name = %q", provider.Name())
	}
}
