package broker

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"ai-research-be/pkg/llm"
)

// GenerationOptions are the sampling parameters for one request. The struct
// has a fixed field order, so its JSON encoding is deterministic and two
// logically equal option sets always hash identically.
type GenerationOptions struct {
	Temperature float64  `json:"temperature"`
	TopP        float64  `json:"top_p"`
	TopK        int      `json:"top_k"`
	MaxTokens   int      `json:"max_tokens"`
	Stop        []string `json:"stop,omitempty"`
	JSONFormat  bool     `json:"json_format"`
	Seed        int      `json:"seed"`
}

// GenerationRequest is a normalized unit of LLM work. It is never mutated
// after fingerprinting.
type GenerationRequest struct {
	Messages []llm.Message     `json:"messages"`
	Options  GenerationOptions `json:"options"`
}

// Fingerprint hashes (messages, options, model) so identical work shares one
// dedup/cache key. Message order is part of the identity.
func (r *GenerationRequest) Fingerprint(model string) string {
	payload := struct {
		Model    string            `json:"model"`
		Messages []llm.Message     `json:"messages"`
		Options  GenerationOptions `json:"options"`
	}{
		Model:    model,
		Messages: r.Messages,
		Options:  r.Options,
	}

	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (o GenerationOptions) toLLMOptions() []llm.Option {
	opts := []llm.Option{llm.WithTemperature(o.Temperature)}
	if o.TopP > 0 {
		opts = append(opts, llm.WithTopP(o.TopP))
	}
	if o.TopK > 0 {
		opts = append(opts, llm.WithTopK(o.TopK))
	}
	if o.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(o.MaxTokens))
	}
	if len(o.Stop) > 0 {
		opts = append(opts, llm.WithStop(o.Stop...))
	}
	if o.Seed != 0 {
		opts = append(opts, llm.WithSeed(o.Seed))
	}
	if o.JSONFormat {
		opts = append(opts, llm.WithJSONFormat())
	}
	return opts
}

// GenerationResult is the backend's response. Immutable once cached.
type GenerationResult struct {
	Content      string        `json:"content"`
	Model        string        `json:"model"`
	Done         bool          `json:"done"`
	PromptTokens int           `json:"prompt_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Duration     time.Duration `json:"duration"`
}
