package ollama

import (
	"ai-research-be/pkg/llm"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

// Ensure OllamaProvider implements Provider
var _ llm.Provider = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName string) *OllamaProvider {
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		Client: &http.Client{
			// Inference on large models is slow; individual calls carry their
			// own context deadline on top of this ceiling.
			Timeout: 5 * time.Minute,
		},
	}
}

func (o *OllamaProvider) Model() string {
	return o.ModelName
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64  `json:"temperature,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Seed        int      `json:"seed,omitempty"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	TotalDuration   int64         `json:"total_duration"`
}

type ollamaTagsResponse struct {
	Models []llm.ModelInfo `json:"models"`
}

type ollamaPullStatus struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// --- Interface Implementation ---

func (o *OllamaProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (*llm.Result, error) {
	reqPayload := o.buildRequest(history, false, opts...)

	bodyBytes, err := o.post(ctx, "/api/chat", reqPayload)
	if err != nil {
		return nil, err
	}

	var ollamaResp ollamaChatResponse
	if err := json.Unmarshal(bodyBytes, &ollamaResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &llm.Result{
		Content:       ollamaResp.Message.Content,
		Model:         ollamaResp.Model,
		Done:          ollamaResp.Done,
		PromptTokens:  ollamaResp.PromptEvalCount,
		OutputTokens:  ollamaResp.EvalCount,
		TotalDuration: ollamaResp.TotalDuration,
	}, nil
}

// ChatStream reads the newline-delimited JSON stream from /api/chat and feeds
// each chunk's content to fn until the terminal done marker.
func (o *OllamaProvider) ChatStream(ctx context.Context, history []llm.Message, fn llm.StreamFunc, opts ...llm.Option) (*llm.Result, error) {
	reqPayload := o.buildRequest(history, true, opts...)

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.BaseURL+"/api/chat", bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama error: status %d, body: %s", resp.StatusCode, string(body))
	}

	result := &llm.Result{Model: reqPayload.Model}
	var full bytes.Buffer

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return nil, fmt.Errorf("unmarshal stream chunk: %w", err)
		}
		if chunk.Message.Content != "" {
			full.WriteString(chunk.Message.Content)
			if fn != nil {
				fn(chunk.Message.Content)
			}
		}
		if chunk.Done {
			result.Done = true
			result.PromptTokens = chunk.PromptEvalCount
			result.OutputTokens = chunk.EvalCount
			result.TotalDuration = chunk.TotalDuration
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	if !result.Done {
		return nil, fmt.Errorf("stream ended without done marker")
	}

	result.Content = full.String()
	return result, nil
}

func (o *OllamaProvider) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", o.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var tags ollamaTagsResponse
	if err := json.Unmarshal(bodyBytes, &tags); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return tags.Models, nil
}

// PullModel triggers a model download and drains the status stream until the
// backend reports success or an error.
func (o *OllamaProvider) PullModel(ctx context.Context, name string) error {
	payloadBytes, err := json.Marshal(map[string]interface{}{"name": name, "stream": true})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.BaseURL+"/api/pull", bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama error: status %d, body: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var status ollamaPullStatus
		if err := json.Unmarshal(scanner.Bytes(), &status); err != nil {
			continue
		}
		if status.Error != "" {
			return fmt.Errorf("pull %s: %s", name, status.Error)
		}
	}
	return scanner.Err()
}

func (o *OllamaProvider) ShowModel(ctx context.Context, name string) (map[string]interface{}, error) {
	bodyBytes, err := o.post(ctx, "/api/show", map[string]string{"name": name})
	if err != nil {
		return nil, err
	}

	var info map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &info); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return info, nil
}

// --- Helpers ---

func (o *OllamaProvider) buildRequest(history []llm.Message, stream bool, opts ...llm.Option) ollamaChatRequest {
	// 1. Process Options
	options := &llm.Options{
		Temperature: 0.7, // Default
	}
	for _, opt := range opts {
		opt(options)
	}

	// 2. Map generic messages to Ollama messages
	ollamaMessages := make([]ollamaMessage, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == "model" {
			role = "assistant"
		}
		ollamaMessages[i] = ollamaMessage{
			Role:    role,
			Content: msg.Content,
		}
	}

	model := o.ModelName
	if options.Model != "" {
		model = options.Model
	}

	reqPayload := ollamaChatRequest{
		Model:    model,
		Messages: ollamaMessages,
		Stream:   stream,
		Options: &ollamaOptions{
			Temperature: options.Temperature,
			TopP:        options.TopP,
			TopK:        options.TopK,
			Stop:        options.Stop,
			Seed:        options.Seed,
		},
	}
	if options.MaxTokens > 0 {
		reqPayload.Options.NumPredict = options.MaxTokens
	}
	if options.JSONFormat {
		reqPayload.Format = "json"
	}

	return reqPayload
}

func (o *OllamaProvider) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.BaseURL+path, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	return bodyBytes, nil
}
