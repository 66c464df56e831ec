package clients

import (
	"context"
	"net/http"
	"time"
)

// ProjectInfo describes a project on the code-developer service.
type ProjectInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Status   string `json:"status"`
}

// CodeGenResult is what a generation pass produced.
type CodeGenResult struct {
	ProjectID      string   `json:"project_id"`
	FilesGenerated int      `json:"files_generated"`
	Files          []string `json:"files"`
}

// TestRunResult summarizes one test execution.
type TestRunResult struct {
	ProjectID string `json:"project_id"`
	Passed    int    `json:"passed"`
	Failed    int    `json:"failed"`
	Output    string `json:"output"`
}

type ICodeDeveloperClient interface {
	CreateProject(ctx context.Context, name, language string) (*ProjectInfo, error)
	GenerateCode(ctx context.Context, projectID string, findings map[string]interface{}) (*CodeGenResult, error)
	RunTests(ctx context.Context, projectID string) (*TestRunResult, error)
	ProjectStatus(ctx context.Context, projectID string) (*ProjectInfo, error)
}

type codeDeveloperClient struct {
	baseURL string
	client  *http.Client
}

func NewCodeDeveloperClient(baseURL string) ICodeDeveloperClient {
	return &codeDeveloperClient{
		baseURL: baseURL,
		client: &http.Client{
			// Code generation and test runs can take a while.
			Timeout: 5 * time.Minute,
		},
	}
}

func (c *codeDeveloperClient) CreateProject(ctx context.Context, name, language string) (*ProjectInfo, error) {
	var out ProjectInfo
	payload := map[string]string{"name": name, "language": language}
	if err := postJSON(ctx, c.client, c.baseURL+"/projects", payload, &out); err != nil {
		return nil, &DownstreamError{Service: "code-developer", Err: err}
	}
	return &out, nil
}

func (c *codeDeveloperClient) GenerateCode(ctx context.Context, projectID string, findings map[string]interface{}) (*CodeGenResult, error) {
	var out CodeGenResult
	payload := map[string]interface{}{"findings": findings}
	if err := postJSON(ctx, c.client, c.baseURL+"/projects/"+projectID+"/generate", payload, &out); err != nil {
		return nil, &DownstreamError{Service: "code-developer", Err: err}
	}
	return &out, nil
}

func (c *codeDeveloperClient) RunTests(ctx context.Context, projectID string) (*TestRunResult, error) {
	var out TestRunResult
	if err := postJSON(ctx, c.client, c.baseURL+"/projects/"+projectID+"/test", map[string]string{}, &out); err != nil {
		return nil, &DownstreamError{Service: "code-developer", Err: err}
	}
	return &out, nil
}

func (c *codeDeveloperClient) ProjectStatus(ctx context.Context, projectID string) (*ProjectInfo, error) {
	var out ProjectInfo
	if err := getJSON(ctx, c.client, c.baseURL+"/projects/"+projectID, &out); err != nil {
		return nil, &DownstreamError{Service: "code-developer", Err: err}
	}
	return &out, nil
}
