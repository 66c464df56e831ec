package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"ai-research-be/internal/pkg/logger"
	"ai-research-be/pkg/llm"

	"github.com/patrickmn/go-cache"
)

const (
	DefaultMaxRetries  = 3
	DefaultBatchSize   = 4
	DefaultCallTimeout = 5 * time.Minute
	DefaultCacheTTL    = 1 * time.Hour
	defaultBackoffBase = 1 * time.Second
)

// Config tunes the broker. Zero values fall back to the defaults above.
type Config struct {
	MaxRetries  int
	BatchSize   int
	CallTimeout time.Duration
	CacheTTL    time.Duration
	BackoffBase time.Duration // attempt n waits BackoffBase * 2^n
}

// Broker is the single choke point between all callers and the inference
// backend. It deduplicates identical in-flight requests, caches completed
// results under the request fingerprint, and retries transient failures
// with exponential backoff.
type Broker struct {
	provider llm.Provider
	results  *cache.Cache
	logger   logger.ILogger
	cfg      Config

	mu       sync.Mutex
	inflight map[string]*inflightCall
	ready    bool
}

// inflightCall is the shared outcome for every caller of one fingerprint.
// done is closed exactly once, after result/err are set.
type inflightCall struct {
	done   chan struct{}
	result *GenerationResult
	err    error
}

func New(provider llm.Provider, log logger.ILogger, cfg Config) *Broker {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}

	return &Broker{
		provider: provider,
		results:  cache.New(cfg.CacheTTL, 10*time.Minute),
		logger:   log,
		cfg:      cfg,
		inflight: make(map[string]*inflightCall),
	}
}

// Generate resolves one request against the backend. Callers with the same
// fingerprint as an in-flight call share its outcome instead of issuing a
// second backend call.
func (b *Broker) Generate(ctx context.Context, req *GenerationRequest, useCache bool) (*GenerationResult, error) {
	fp := req.Fingerprint(b.provider.Model())

	if useCache {
		if v, found := b.results.Get(fp); found {
			b.logger.Debug("Broker", "Cache hit", map[string]interface{}{"fingerprint": fp})
			return v.(*GenerationResult), nil
		}
	}

	b.mu.Lock()
	if call, exists := b.inflight[fp]; exists {
		b.mu.Unlock()
		b.logger.Debug("Broker", "Joining in-flight request", map[string]interface{}{"fingerprint": fp})
		select {
		case <-call.done:
			return call.result, call.err
		case <-ctx.Done():
			// The joiner never reached the backend itself.
			return nil, &GenerationError{Attempts: 0, Err: ctx.Err()}
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	b.inflight[fp] = call
	b.mu.Unlock()

	result, err := b.callWithRetry(ctx, req)

	if err == nil && useCache {
		b.results.Set(fp, result, cache.DefaultExpiration)
	}

	call.result, call.err = result, err
	close(call.done)

	// The entry must go away regardless of outcome, or future calls would be
	// deduplicated against a finished operation forever.
	b.mu.Lock()
	delete(b.inflight, fp)
	b.mu.Unlock()

	return result, err
}

func (b *Broker) callWithRetry(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	var lastErr error

	for attempt := 0; attempt < b.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := b.cfg.BackoffBase * (1 << attempt)
			b.logger.Warn("Broker", "Retrying generation", map[string]interface{}{
				"attempt": attempt + 1,
				"delay":   delay.String(),
				"error":   lastErr.Error(),
			})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &GenerationError{Attempts: attempt, Err: ctx.Err()}
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
		res, err := b.provider.Chat(callCtx, req.Messages, req.Options.toLLMOptions()...)
		cancel()

		if err != nil {
			lastErr = err
			continue
		}
		if !res.Done || res.Content == "" {
			// Malformed backend payload counts as a transient failure.
			lastErr = fmt.Errorf("backend returned incomplete response")
			continue
		}

		return &GenerationResult{
			Content:      res.Content,
			Model:        res.Model,
			Done:         res.Done,
			PromptTokens: res.PromptTokens,
			OutputTokens: res.OutputTokens,
			Duration:     time.Duration(res.TotalDuration),
		}, nil
	}

	return nil, &GenerationError{Attempts: b.cfg.MaxRetries, Err: lastErr}
}

// GenerateText wraps a system/user prompt pair into a request.
func (b *Broker) GenerateText(ctx context.Context, system, user string, opts GenerationOptions) (string, error) {
	messages := []llm.Message{}
	if system != "" {
		messages = append(messages, llm.Message{Role: "system", Content: system})
	}
	messages = append(messages, llm.Message{Role: "user", Content: user})

	res, err := b.Generate(ctx, &GenerationRequest{Messages: messages, Options: opts}, true)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

// GenerateJSON appends the schema description to the prompt, asks the backend
// for JSON output, and parses the result into out. A response that does not
// parse yields a ParseError, not a GenerationError.
func (b *Broker) GenerateJSON(ctx context.Context, system, user, schemaHint string, out interface{}) error {
	prompt := user
	if schemaHint != "" {
		prompt = fmt.Sprintf("%s\n\nRespond with a single JSON object matching this schema:\n%s", user, schemaHint)
	}

	opts := GenerationOptions{Temperature: 0.3, JSONFormat: true}
	content, err := b.GenerateText(ctx, system, prompt, opts)
	if err != nil {
		return err
	}

	cleaned := extractJSON(content)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return &ParseError{Raw: content, Err: err}
	}
	return nil
}

// GenerateBatch issues the requests in fixed-size groups, each group
// concurrently, and preserves input order in the output. A failed request
// leaves a nil slot and the first error is returned alongside the partial
// results.
func (b *Broker) GenerateBatch(ctx context.Context, reqs []*GenerationRequest, useCache bool) ([]*GenerationResult, error) {
	results := make([]*GenerationResult, len(reqs))
	errs := make([]error, len(reqs))

	for start := 0; start < len(reqs); start += b.cfg.BatchSize {
		end := start + b.cfg.BatchSize
		if end > len(reqs) {
			end = len(reqs)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx], errs[idx] = b.Generate(ctx, reqs[idx], useCache)
			}(i)
		}
		wg.Wait()
	}

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// GenerateStream surfaces incremental chunks to fn and resolves once the
// backend signals completion. Streamed calls bypass dedup and cache.
func (b *Broker) GenerateStream(ctx context.Context, req *GenerationRequest, fn llm.StreamFunc) (*GenerationResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
	defer cancel()

	res, err := b.provider.ChatStream(callCtx, req.Messages, fn, req.Options.toLLMOptions()...)
	if err != nil {
		return nil, &GenerationError{Attempts: 1, Err: err}
	}

	return &GenerationResult{
		Content:      res.Content,
		Model:        res.Model,
		Done:         res.Done,
		PromptTokens: res.PromptTokens,
		OutputTokens: res.OutputTokens,
		Duration:     time.Duration(res.TotalDuration),
	}, nil
}

// EnsureModel verifies the configured model exists on the backend, pulls it
// if absent, then issues a trivial warm-up call so the first real request
// does not pay the load cost.
func (b *Broker) EnsureModel(ctx context.Context) error {
	model := b.provider.Model()

	models, err := b.provider.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}

	found := false
	for _, m := range models {
		if m.Name == model || strings.SplitN(m.Name, ":", 2)[0] == model {
			found = true
			break
		}
	}

	if !found {
		b.logger.Info("Broker", "Model not present, pulling", map[string]interface{}{"model": model})
		if err := b.provider.PullModel(ctx, model); err != nil {
			return fmt.Errorf("pull model %s: %w", model, err)
		}
	}

	warmup := &GenerationRequest{
		Messages: []llm.Message{{Role: "user", Content: "Reply with the single word: ready"}},
		Options:  GenerationOptions{Temperature: 0, MaxTokens: 8},
	}
	if _, err := b.Generate(ctx, warmup, false); err != nil {
		return fmt.Errorf("warm-up call: %w", err)
	}

	b.mu.Lock()
	b.ready = true
	b.mu.Unlock()
	b.logger.Info("Broker", "Model ready", map[string]interface{}{"model": model})
	return nil
}

// Ready reports whether the warm-up completed.
func (b *Broker) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// Load returns the count of in-flight backend requests.
func (b *Broker) Load() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inflight)
}

// ClearCache drops every cached result.
func (b *Broker) ClearCache() {
	b.results.Flush()
}

// extractJSON trims markdown fences and surrounding prose that chat models
// like to wrap around structured output.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	var end int
	if s[start] == '{' {
		end = strings.LastIndex(s, "}")
	} else {
		end = strings.LastIndex(s, "]")
	}
	if end > start {
		return s[start : end+1]
	}
	return s
}
