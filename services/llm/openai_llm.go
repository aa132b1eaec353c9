package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI backend. APIKey is injected by the
// composition root (from the secrets store), never read from the
// environment here.
type OpenAIConfig struct {
	APIKey  string
	Model   string // e.g. "gpt-4o"; defaults to gpt-4o-mini
	BaseURL string // optional override for OpenAI-compatible gateways
}

type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key not configured")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
		slog.Warn("OpenAI model not set, defaulting to gpt-4o-mini")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	slog.Info("Initializing OpenAI client", "model", cfg.Model)
	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

// Complete implements the Client interface.
func (o *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string, params Params) (string, error) {
	slog.Debug("Generating text via OpenAI", "model", o.model)
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices or empty content")
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	slog.Debug("Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

var _ Client = (*OpenAIClient)(nil)
