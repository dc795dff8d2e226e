// File path: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nicodishanthj/funnelsim/internal/funnel"
)

const (
	minRequestTimeout = 5 * time.Second
	maxRequestTimeout = 2 * time.Minute
)

// Config controls the service: HTTP surface, provider selection, simulation
// limits, and persistence paths.
type Config struct {
	Addr        string
	UIDir       string
	HistoryPath string
	ArchivePath string

	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	OllamaURL string

	RequestTimeout  time.Duration
	LLMRPS          float64
	JourneyWorkers  int
	MaxActiveRuns   int
	MaxFlowSteps    int
	DefaultPersonas int
}

// DefaultConfig returns the baseline configuration used when no overrides are
// supplied.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		UIDir:           filepath.Join("web", "ui"),
		HistoryPath:     filepath.Join("data", "runs.json"),
		ArchivePath:     filepath.Join("data", "archive.db"),
		Provider:        "openai",
		Model:           "gpt-4o-mini",
		OllamaURL:       "http://localhost:11434",
		RequestTimeout:  20 * time.Second,
		LLMRPS:          0,
		JourneyWorkers:  1,
		MaxActiveRuns:   4,
		MaxFlowSteps:    funnel.DefaultMaxSteps,
		DefaultPersonas: funnel.DefaultPersonas,
	}
}

// LoadConfig builds a Config from defaults and environment variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if value := strings.TrimSpace(os.Getenv("FUNNELSIM_ADDR")); value != "" {
		cfg.Addr = value
	}
	if value := strings.TrimSpace(os.Getenv("FUNNELSIM_UI_DIR")); value != "" {
		cfg.UIDir = value
	}
	if value := strings.TrimSpace(os.Getenv("FUNNELSIM_HISTORY_PATH")); value != "" {
		cfg.HistoryPath = value
	}
	if value := strings.TrimSpace(os.Getenv("FUNNELSIM_ARCHIVE_PATH")); value != "" {
		cfg.ArchivePath = value
	}
	if value := strings.TrimSpace(os.Getenv("FUNNELSIM_LLM_PROVIDER")); value != "" {
		cfg.Provider = strings.ToLower(value)
	}
	if value := strings.TrimSpace(os.Getenv("FUNNELSIM_MODEL")); value != "" {
		cfg.Model = value
	}
	if value := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); value != "" {
		cfg.APIKey = value
	}
	if value := strings.TrimSpace(os.Getenv("FUNNELSIM_OPENAI_BASE_URL")); value != "" {
		cfg.BaseURL = value
	}
	if value := strings.TrimSpace(os.Getenv("FUNNELSIM_OLLAMA_URL")); value != "" {
		cfg.OllamaURL = value
	}
	if value := strings.TrimSpace(os.Getenv("FUNNELSIM_REQUEST_TIMEOUT")); value != "" {
		dur, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse FUNNELSIM_REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = dur
	}
	if value := strings.TrimSpace(os.Getenv("FUNNELSIM_LLM_RPS")); value != "" {
		rps, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Config{}, fmt.Errorf("parse FUNNELSIM_LLM_RPS: %w", err)
		}
		if rps < 0 {
			rps = 0
		}
		cfg.LLMRPS = rps
	}
	if value := strings.TrimSpace(os.Getenv("FUNNELSIM_JOURNEY_WORKERS")); value != "" {
		workers, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse FUNNELSIM_JOURNEY_WORKERS: %w", err)
		}
		cfg.JourneyWorkers = workers
	}
	if value := strings.TrimSpace(os.Getenv("FUNNELSIM_MAX_ACTIVE_RUNS")); value != "" {
		max, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse FUNNELSIM_MAX_ACTIVE_RUNS: %w", err)
		}
		cfg.MaxActiveRuns = max
	}
	if value := strings.TrimSpace(os.Getenv("FUNNELSIM_MAX_FLOW_STEPS")); value != "" {
		steps, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse FUNNELSIM_MAX_FLOW_STEPS: %w", err)
		}
		cfg.MaxFlowSteps = steps
	}
	if value := strings.TrimSpace(os.Getenv("FUNNELSIM_DEFAULT_PERSONAS")); value != "" {
		personas, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse FUNNELSIM_DEFAULT_PERSONAS: %w", err)
		}
		cfg.DefaultPersonas = personas
	}
	cfg = applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = defaults.Addr
	}
	if strings.TrimSpace(cfg.UIDir) == "" {
		cfg.UIDir = defaults.UIDir
	}
	if strings.TrimSpace(cfg.HistoryPath) == "" {
		cfg.HistoryPath = defaults.HistoryPath
	}
	if strings.TrimSpace(cfg.Provider) == "" {
		cfg.Provider = defaults.Provider
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaults.Model
	}
	if strings.TrimSpace(cfg.OllamaURL) == "" {
		cfg.OllamaURL = defaults.OllamaURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.JourneyWorkers <= 0 {
		cfg.JourneyWorkers = defaults.JourneyWorkers
	}
	if cfg.MaxActiveRuns <= 0 {
		cfg.MaxActiveRuns = defaults.MaxActiveRuns
	}
	if cfg.MaxFlowSteps <= 0 {
		cfg.MaxFlowSteps = defaults.MaxFlowSteps
	}
	if cfg.DefaultPersonas <= 0 {
		cfg.DefaultPersonas = defaults.DefaultPersonas
	}
	return cfg
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	switch c.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("%w: unknown provider %q", funnel.ErrConfiguration, c.Provider)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: model required", funnel.ErrConfiguration)
	}
	if c.RequestTimeout < minRequestTimeout || c.RequestTimeout > maxRequestTimeout {
		return fmt.Errorf("%w: request timeout %s outside [%s, %s]",
			funnel.ErrConfiguration, c.RequestTimeout, minRequestTimeout, maxRequestTimeout)
	}
	if c.JourneyWorkers < 1 {
		return fmt.Errorf("%w: journey workers must be at least 1", funnel.ErrConfiguration)
	}
	if c.MaxActiveRuns < 1 {
		return fmt.Errorf("%w: max active runs must be at least 1", funnel.ErrConfiguration)
	}
	if c.MaxFlowSteps < funnel.MinFlowSteps {
		return fmt.Errorf("%w: max flow steps must be at least %d",
			funnel.ErrConfiguration, funnel.MinFlowSteps)
	}
	if c.DefaultPersonas < funnel.MinPersonas || c.DefaultPersonas > funnel.MaxPersonas {
		return fmt.Errorf("%w: default personas %d outside [%d, %d]",
			funnel.ErrConfiguration, c.DefaultPersonas, funnel.MinPersonas, funnel.MaxPersonas)
	}
	return nil
}
