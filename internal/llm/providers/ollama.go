// File path: internal/llm/providers/ollama.go
package providers

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"

	"github.com/nicodishanthj/funnelsim/internal/common"
)

// OllamaProvider serves chat completions from a local Ollama server.
type OllamaProvider struct {
	llm   *ollama.LLM
	model string
}

func NewOllamaProvider(model, serverURL string) (*OllamaProvider, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	client, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	common.Logger().Info("llm: ollama provider configured", "model", model, "server", serverURL)
	return &OllamaProvider{llm: client, model: model}, nil
}

func (o *OllamaProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		role := schema.ChatMessageTypeHuman
		switch msg.Role {
		case "system":
			role = schema.ChatMessageTypeSystem
		case "assistant":
			role = schema.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, msg.Content))
	}
	resp, err := o.llm.GenerateContent(ctx, content)
	if err != nil {
		common.Logger().Error("llm: ollama generation failed", "error", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Content, nil
}

func (o *OllamaProvider) Name() string {
	return "ollama"
}
