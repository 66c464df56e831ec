package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
	Stop        []string
	Seed        int
	JSONFormat  bool
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithTopP(p float64) Option {
	return func(o *Options) {
		o.TopP = p
	}
}

func WithTopK(k int) Option {
	return func(o *Options) {
		o.TopK = k
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithStop(sequences ...string) Option {
	return func(o *Options) {
		o.Stop = sequences
	}
}

func WithSeed(seed int) Option {
	return func(o *Options) {
		o.Seed = seed
	}
}

// WithJSONFormat asks the backend for structured JSON output.
func WithJSONFormat() Option {
	return func(o *Options) {
		o.JSONFormat = true
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// Result carries the generated content plus the backend's token and timing
// metrics, when reported.
type Result struct {
	Content       string
	Model         string
	Done          bool
	PromptTokens  int
	OutputTokens  int
	TotalDuration int64 // nanoseconds, as reported by the backend
}

// ModelInfo describes one model known to the backend.
type ModelInfo struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

// StreamFunc receives incremental text chunks during a streaming chat.
type StreamFunc func(chunk string)

// Provider defines the contract for any LLM inference backend.
type Provider interface {
	// Chat sends a chat history to the model and returns the full response.
	Chat(ctx context.Context, history []Message, options ...Option) (*Result, error)

	// ChatStream sends a chat history and surfaces chunks to fn as they
	// arrive. It returns once the backend signals completion.
	ChatStream(ctx context.Context, history []Message, fn StreamFunc, options ...Option) (*Result, error)

	// ListModels returns the models currently available on the backend.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// PullModel downloads a model onto the backend, blocking until done.
	PullModel(ctx context.Context, name string) error

	// ShowModel returns backend metadata for a model.
	ShowModel(ctx context.Context, name string) (map[string]interface{}, error)

	// Model returns the default model identifier this provider targets.
	Model() string
}
