package ai

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/arturoeanton/go-codebase-assistant/internal/port"
	"github.com/sashabaranov/go-openai"
)

// OpenAIEndpointConfig holds the configuration for one OpenAI-compatible endpoint.
type OpenAIEndpointConfig struct {
	BaseURL string // e.g. http://localhost:12434/engines/llama.cpp/v1
	Model   string
	APIKey  string
}

// OpenAIProvider implements port.AIProvider against any OpenAI-compatible API
// (Docker Model Runner, llama.cpp server, vLLM, OpenAI itself).
type OpenAIProvider struct {
	chat       *openai.Client
	embed      *openai.Client
	chatModel  string
	embedModel string
}

// NewOpenAIProvider creates a provider with separate chat and embedding endpoints.
func NewOpenAIProvider(chat, embed OpenAIEndpointConfig) *OpenAIProvider {
	return &OpenAIProvider{
		chat:       newOpenAIClient(chat),
		embed:      newOpenAIClient(embed),
		chatModel:  chat.Model,
		embedModel: embed.Model,
	}
}

func newOpenAIClient(cfg OpenAIEndpointConfig) *openai.Client {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return openai.NewClientWithConfig(c)
}

// ModelName returns the chat model identifier.
func (p *OpenAIProvider) ModelName() string {
	return p.chatModel
}

// Complete sends one system+user exchange and returns the trimmed reply.
func (p *OpenAIProvider) Complete(ctx context.Context, req port.CompletionRequest) (string, error) {
	// the client drops a zero temperature from the payload, which leaves the
	// server default in place
	temperature := req.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	resp, err := p.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.chatModel,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Embed generates a normalized embedding for the given text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates normalized embeddings for multiple texts in one call.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.embed.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(p.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = normalize(d.Embedding)
	}
	return out, nil
}

// normalize scales v to unit length so L2 distances fall in [0, 2].
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

var _ port.AIProvider = (*OpenAIProvider)(nil)
