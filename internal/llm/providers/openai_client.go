// File path: internal/llm/providers/openai_client.go
package providers

import (
	"context"
	"fmt"
	"time"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/nicodishanthj/funnelsim/internal/common"
)

// OpenAIProvider serves chat completions from the OpenAI API.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// OpenAIOptions configure the OpenAI-backed provider.
type OpenAIOptions struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

func NewOpenAIProvider(opts OpenAIOptions) *OpenAIProvider {
	clientOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	logger := common.Logger()
	if opts.BaseURL != "" {
		logger.Info("llm: configuring OpenAI client with custom endpoint", "endpoint", opts.BaseURL)
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Timeout > 0 {
		clientOpts = append(clientOpts, option.WithRequestTimeout(opts.Timeout))
	}
	logger.Info("llm: OpenAI provider configured", "model", opts.Model)
	return &OpenAIProvider{client: openai.NewClient(clientOpts...), model: opts.Model}
}

func (o *OpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	logger := common.Logger()
	logger.Debug("llm: sending chat completion request", "model", o.model, "messages", len(messages))
	params := openai.ChatCompletionNewParams{Model: openai.ChatModel(o.model)}
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(msg.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(msg.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(msg.Content))
		}
	}
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		logger.Error("llm: chat completion failed", "error", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	logger.Debug("llm: chat completion succeeded")
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAIProvider) Name() string {
	return "openai"
}
