package llm

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider drives one model on an OpenAI-compatible chat endpoint.
// Several providers can share a client; each binds a single model name so
// the Manager's priority list stays a flat list of models.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds the shared API client. baseURL overrides the
// default host for OpenAI-compatible gateways; empty keeps the default.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// NewOpenAIProvider wraps one model on the given client.
func NewOpenAIProvider(client *openai.Client, model string) *OpenAIProvider {
	return &OpenAIProvider{client: client, model: model}
}

// Name returns the bound model name.
func (p *OpenAIProvider) Name() string { return p.model }

// Probe requests a single-token completion. A model that answers anything
// is considered live; quota and auth failures surface as errors.
func (p *OpenAIProvider) Probe(ctx context.Context) error {
	_, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.model,
		MaxTokens: 1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "ping"},
		},
	})
	return err
}

// Generate produces the next assistant turn for the given history.
func (p *OpenAIProvider) Generate(ctx context.Context, history []Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, len(history))
	for i, m := range history {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: msgs,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}
