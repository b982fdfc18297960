package inference

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/parley/pkg/conversation"
)

// OpenAIClient implements Client on top of the OpenAI chat completion API.
// The credential is passed in explicitly at construction, there is no ambient
// process-wide key.
type OpenAIClient struct {
	client *go_openai.Client
}

var _ Client = (*OpenAIClient)(nil)

type OpenAIOption func(*go_openai.ClientConfig)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) OpenAIOption {
	return func(cfg *go_openai.ClientConfig) {
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
	}
}

func NewOpenAIClient(apiKey string, options ...OpenAIOption) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("no OpenAI API key provided")
	}
	config := go_openai.DefaultConfig(apiKey)
	for _, option := range options {
		option(&config)
	}
	return &OpenAIClient{
		client: go_openai.NewClientWithConfig(config),
	}, nil
}

func (c *OpenAIClient) Complete(
	ctx context.Context,
	messages []conversation.Message,
	settings conversation.GenerationSettings,
) (*Completion, error) {
	req := go_openai.ChatCompletionRequest{
		Model:       settings.Model,
		Temperature: float32(settings.Temperature),
		MaxTokens:   settings.MaxTokens,
		Messages:    make([]go_openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, go_openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	log.Debug().
		Str("model", settings.Model).
		Int("num_messages", len(req.Messages)).
		Int("max_tokens", settings.MaxTokens).
		Msg("sending chat completion request")

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "chat completion request failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	out := &Completion{
		Content: resp.Choices[0].Message.Content,
	}
	if resp.Usage.TotalTokens > 0 || resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		out.Usage = &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	log.Debug().
		Str("model", resp.Model).
		Bool("has_usage", out.Usage != nil).
		Msg("chat completion finished")

	return out, nil
}
