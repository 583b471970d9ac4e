package port

import "context"

// CompletionRequest is a single system+user exchange with the chat model.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int // 0 = backend default
}

// Completer turns a prompt into text.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Embedder maps text to fixed-length vectors.
type Embedder interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	// The result has one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// AIProvider abstracts the model backend for embeddings and chat completions.
// Implementations can target an OpenAI-compatible runner, Ollama, or any compatible API.
type AIProvider interface {
	Embedder
	Completer

	// ModelName returns the identifier of the chat model being used.
	ModelName() string
}
