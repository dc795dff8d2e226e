// File path: internal/config/config_test.go
package config

import (
	"errors"
	"testing"
	"time"

	"github.com/nicodishanthj/funnelsim/internal/funnel"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("unexpected default model %q", cfg.Model)
	}
	if cfg.RequestTimeout != 20*time.Second {
		t.Errorf("unexpected default timeout %s", cfg.RequestTimeout)
	}
	if cfg.MaxActiveRuns != 4 {
		t.Errorf("unexpected default max active runs %d", cfg.MaxActiveRuns)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("FUNNELSIM_ADDR", "127.0.0.1:9999")
	t.Setenv("FUNNELSIM_MODEL", "gpt-4o")
	t.Setenv("FUNNELSIM_REQUEST_TIMEOUT", "45s")
	t.Setenv("FUNNELSIM_JOURNEY_WORKERS", "3")
	t.Setenv("FUNNELSIM_LLM_RPS", "2.5")
	t.Setenv("FUNNELSIM_LLM_PROVIDER", "OLLAMA")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9999" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.Model != "gpt-4o" {
		t.Errorf("model = %q", cfg.Model)
	}
	if cfg.RequestTimeout != 45*time.Second {
		t.Errorf("timeout = %s", cfg.RequestTimeout)
	}
	if cfg.JourneyWorkers != 3 {
		t.Errorf("workers = %d", cfg.JourneyWorkers)
	}
	if cfg.LLMRPS != 2.5 {
		t.Errorf("rps = %v", cfg.LLMRPS)
	}
	if cfg.Provider != "ollama" {
		t.Errorf("provider = %q", cfg.Provider)
	}
}

func TestLoadConfigBadDuration(t *testing.T) {
	t.Setenv("FUNNELSIM_REQUEST_TIMEOUT", "soon")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Provider = "bedrock" }},
		{"timeout too short", func(c *Config) { c.RequestTimeout = time.Second }},
		{"timeout too long", func(c *Config) { c.RequestTimeout = 10 * time.Minute }},
		{"personas below floor", func(c *Config) { c.DefaultPersonas = 2 }},
		{"personas above ceiling", func(c *Config) { c.DefaultPersonas = 16 }},
		{"max steps below floor", func(c *Config) { c.MaxFlowSteps = 1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !errors.Is(err, funnel.ErrConfiguration) {
				t.Errorf("error %v not ErrConfiguration", err)
			}
		})
	}
}

func TestApplyDefaultsFillsBlanks(t *testing.T) {
	cfg := applyDefaults(Config{Provider: "openai"})
	if cfg.Addr == "" || cfg.Model == "" || cfg.RequestTimeout == 0 {
		t.Fatalf("defaults not applied: %#v", cfg)
	}
}
