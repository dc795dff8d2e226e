// File path: internal/llm/llm.go
package llm

import (
	"fmt"
	"strings"

	"github.com/nicodishanthj/funnelsim/internal/common"
	"github.com/nicodishanthj/funnelsim/internal/config"
	"github.com/nicodishanthj/funnelsim/internal/funnel"
	"github.com/nicodishanthj/funnelsim/internal/llm/providers"
)

type Message = providers.Message

type Provider = providers.Provider

// New selects and configures the provider named by the configuration. The
// provider is wrapped with a client-side rate limiter when cfg.LLMRPS is
// positive.
func New(cfg config.Config) (Provider, error) {
	logger := common.Logger()
	var provider Provider
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY required for openai provider", funnel.ErrConfiguration)
		}
		provider = providers.NewOpenAIProvider(providers.OpenAIOptions{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.RequestTimeout,
		})
	case "ollama":
		ollamaProvider, err := providers.NewOllamaProvider(cfg.Model, cfg.OllamaURL)
		if err != nil {
			return nil, err
		}
		provider = ollamaProvider
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", funnel.ErrConfiguration, cfg.Provider)
	}
	if cfg.LLMRPS > 0 {
		logger.Info("llm: pacing provider requests", "rps", cfg.LLMRPS)
		provider = WithRateLimit(provider, cfg.LLMRPS)
	}
	logger.Info("llm: provider selected", "provider", provider.Name())
	return provider, nil
}
