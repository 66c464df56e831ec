package clients

import (
	"context"
	"net/http"
	"time"
)

// Document describes one generated artifact.
type Document struct {
	Type   string `json:"type"` // "report" | "paper" | "presentation"
	Format string `json:"format"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
}

type IDocGeneratorClient interface {
	GenerateReport(ctx context.Context, sessionID string, researchData map[string]interface{}, format string) (*Document, error)
	GeneratePaper(ctx context.Context, sessionID string, researchData map[string]interface{}, template string) (*Document, error)
	GeneratePresentation(ctx context.Context, sessionID string, researchData map[string]interface{}, style string) (*Document, error)
}

type docGeneratorClient struct {
	baseURL string
	client  *http.Client
}

func NewDocGeneratorClient(baseURL string) IDocGeneratorClient {
	return &docGeneratorClient{
		baseURL: baseURL,
		client: &http.Client{
			// PDF/LaTeX rendering is slow for large result sets.
			Timeout: 3 * time.Minute,
		},
	}
}

type docRequest struct {
	SessionID    string                 `json:"session_id"`
	ResearchData map[string]interface{} `json:"research_data"`
	Format       string                 `json:"format,omitempty"`
	Template     string                 `json:"template,omitempty"`
	Style        string                 `json:"style,omitempty"`
}

func (c *docGeneratorClient) GenerateReport(ctx context.Context, sessionID string, researchData map[string]interface{}, format string) (*Document, error) {
	var out Document
	payload := docRequest{SessionID: sessionID, ResearchData: researchData, Format: format}
	if err := postJSON(ctx, c.client, c.baseURL+"/generate/report", payload, &out); err != nil {
		return nil, &DownstreamError{Service: "doc-generator", Err: err}
	}
	return &out, nil
}

func (c *docGeneratorClient) GeneratePaper(ctx context.Context, sessionID string, researchData map[string]interface{}, template string) (*Document, error) {
	var out Document
	payload := docRequest{SessionID: sessionID, ResearchData: researchData, Template: template}
	if err := postJSON(ctx, c.client, c.baseURL+"/generate/paper", payload, &out); err != nil {
		return nil, &DownstreamError{Service: "doc-generator", Err: err}
	}
	return &out, nil
}

func (c *docGeneratorClient) GeneratePresentation(ctx context.Context, sessionID string, researchData map[string]interface{}, style string) (*Document, error) {
	var out Document
	payload := docRequest{SessionID: sessionID, ResearchData: researchData, Style: style}
	if err := postJSON(ctx, c.client, c.baseURL+"/generate/presentation", payload, &out); err != nil {
		return nil, &DownstreamError{Service: "doc-generator", Err: err}
	}
	return &out, nil
}
