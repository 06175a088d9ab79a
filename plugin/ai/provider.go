// Package ai provides the OpenAI-backed text generation and embedding
// capabilities the rest of the system depends on.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/gitrag-ai/gitrag/internal/profile"
	"github.com/gitrag-ai/gitrag/plugin/ai/router"
)

// Config holds the AI provider configuration.
type Config struct {
	BaseURL         string
	APIKey          string
	RoutingModel    string
	GenerationModel string
	EmbeddingModel  string
	MaxRetries      int
	Timeout         time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://api.openai.com/v1",
		RoutingModel:    "gpt-4o-mini",
		GenerationModel: "gpt-4o",
		EmbeddingModel:  "text-embedding-3-small",
		MaxRetries:      3,
		Timeout:         30 * time.Second,
	}
}

// ConfigFromProfile builds a provider config from the server profile.
func ConfigFromProfile(p *profile.Profile) *Config {
	cfg := DefaultConfig()
	cfg.APIKey = p.OpenAIAPIKey
	if p.OpenAIBaseURL != "" {
		cfg.BaseURL = p.OpenAIBaseURL
	}
	if p.RoutingModel != "" {
		cfg.RoutingModel = p.RoutingModel
	}
	if p.GenerationModel != "" {
		cfg.GenerationModel = p.GenerationModel
	}
	if p.EmbeddingModel != "" {
		cfg.EmbeddingModel = p.EmbeddingModel
	}
	return cfg
}

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// Provider provides LLM chat, structured tool invocation and embeddings over
// a single OpenAI-compatible client.
type Provider struct {
	client *openai.Client
	config *Config
}

// NewProvider creates a new AI provider.
func NewProvider(cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Provider{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

// Chat performs a chat completion with the generation model.
func (p *Provider) Chat(ctx context.Context, messages []Message) (string, error) {
	var result string
	err := p.doWithRetry(ctx, func() error {
		resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       p.config.GenerationModel,
			Messages:    toOpenAIMessages(messages),
			Temperature: 0.1,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty chat response")
		}
		result = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to complete chat: %w", err)
	}
	return result, nil
}

// ChatJSON performs a chat completion constrained to a single JSON object
// reply, used for analytics reports and query classification.
func (p *Provider) ChatJSON(ctx context.Context, messages []Message) (string, error) {
	var result string
	err := p.doWithRetry(ctx, func() error {
		resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    p.config.GenerationModel,
			Messages: toOpenAIMessages(messages),
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Temperature: 0.3,
			MaxTokens:   4000,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			return fmt.Errorf("empty JSON response")
		}
		result = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to complete JSON chat: %w", err)
	}
	return result, nil
}

// ClassifyJSON performs a deterministic JSON-object completion with the fast
// routing model. Used for lightweight classification calls.
func (p *Provider) ClassifyJSON(ctx context.Context, system, user string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.config.RoutingModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("classification request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty classification response")
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatStream performs a streaming chat completion, invoking onChunk for each
// content delta.
func (p *Provider) ChatStream(ctx context.Context, messages []Message, onChunk func(string) error) error {
	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       p.config.GenerationModel,
		Messages:    toOpenAIMessages(messages),
		Temperature: 0.1,
		Stream:      true,
	})
	if err != nil {
		return fmt.Errorf("failed to open chat stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("chat stream interrupted: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			if err := onChunk(delta); err != nil {
				return err
			}
		}
	}
}

// GenerateWithTools submits the conversation plus the advertised tool specs
// with the fast routing model and returns either free text or structured
// invocations. It implements router.Generator.
func (p *Provider) GenerateWithTools(ctx context.Context, system string, messages []router.Message, tools []router.ToolSpec) (*router.Generation, error) {
	openaiTools := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		openaiTools = append(openaiTools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	chatMessages = append(chatMessages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.config.RoutingModel,
		Messages:    chatMessages,
		Tools:       openaiTools,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("tool generation request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty tool generation response")
	}

	choice := resp.Choices[0].Message
	gen := &router.Generation{Text: choice.Content}
	for _, call := range choice.ToolCalls {
		gen.Calls = append(gen.Calls, router.ToolCall{
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}

	slog.Debug("tool generation completed",
		"model", p.config.RoutingModel,
		"calls", len(gen.Calls),
		"latency_ms", time.Since(start).Milliseconds(),
		"tokens", resp.Usage.TotalTokens)

	return gen, nil
}

// Embedding generates an embedding vector for the given text.
func (p *Provider) Embedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbeddingBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbeddingBatch generates embedding vectors for a batch of texts, preserving
// input order.
func (p *Provider) EmbeddingBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32
	err := p.doWithRetry(ctx, func() error {
		resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(p.config.EmbeddingModel),
		})
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("embedding count mismatch: want %d, got %d", len(texts), len(resp.Data))
		}
		result = make([][]float32, len(resp.Data))
		for _, d := range resp.Data {
			result[d.Index] = d.Embedding
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	return result, nil
}

// doWithRetry executes a function with exponential backoff retry.
func (p *Provider) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			if attempt < p.config.MaxRetries-1 {
				waitTime := time.Duration(math.Pow(2, float64(attempt))) * time.Second
				slog.Debug("AI request failed, retrying",
					"attempt", attempt+1,
					"wait_time", waitTime,
					"error", err)
				select {
				case <-time.After(waitTime):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// DecodeJSONReply unmarshals a JSON-object completion into dst, tolerating
// surrounding whitespace.
func DecodeJSONReply(reply string, dst any) error {
	if err := json.Unmarshal([]byte(reply), dst); err != nil {
		return fmt.Errorf("malformed JSON reply: %w", err)
	}
	return nil
}
