package synth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// completionTimeout bounds the generative call. The gate lock is released
// on timeout like any other exit path.
const completionTimeout = 90 * time.Second

// ChatClient is the generative collaborator: system and user messages in,
// raw model text out.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Embedder is the embedding collaborator: text in, float vector out.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIClient talks to any OpenAI-compatible endpoint (api.openai.com or
// a local model server's compatibility layer).
type OpenAIClient struct {
	client     *openai.Client
	model      string
	embedModel string
}

// ClientOption configures the OpenAI client.
type ClientOption func(*openai.ClientConfig)

// WithHTTPClient overrides the transport, used by record/replay tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(cfg *openai.ClientConfig) {
		cfg.HTTPClient = hc
	}
}

// NewOpenAIClient builds the collaborator client. baseURL may point at a
// local OpenAI-compatible server; empty keeps the upstream default.
func NewOpenAIClient(apiKey, baseURL, model, embedModel string, opts ...ClientOption) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &OpenAIClient{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		embedModel: embedModel,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embed: empty response")
	}

	return resp.Data[0].Embedding, nil
}
