package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Paper is one literature record returned by the crawler.
type Paper struct {
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Abstract string   `json:"abstract"`
	URL      string   `json:"url"`
	Source   string   `json:"source"`
	Year     int      `json:"year"`
	Keywords []string `json:"keywords"`
}

type ICrawlerClient interface {
	// CrawlSource queries one source ("arxiv", "scholar", ...).
	CrawlSource(ctx context.Context, source string, queries []string, maxResults int) ([]Paper, error)
	// CrawlAll fans out to every source the crawler knows.
	CrawlAll(ctx context.Context, queries []string, maxResults int) (map[string][]Paper, error)
}

type crawlerClient struct {
	baseURL string
	client  *http.Client
}

func NewCrawlerClient(baseURL string) ICrawlerClient {
	return &crawlerClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

type crawlRequest struct {
	Queries    []string `json:"queries"`
	MaxResults int      `json:"max_results,omitempty"`
}

func (c *crawlerClient) CrawlSource(ctx context.Context, source string, queries []string, maxResults int) ([]Paper, error) {
	var out struct {
		Papers []Paper `json:"papers"`
	}
	err := postJSON(ctx, c.client, c.baseURL+"/crawl/"+source, crawlRequest{Queries: queries, MaxResults: maxResults}, &out)
	if err != nil {
		return nil, &DownstreamError{Service: "crawler", Err: err}
	}
	return out.Papers, nil
}

func (c *crawlerClient) CrawlAll(ctx context.Context, queries []string, maxResults int) (map[string][]Paper, error) {
	var out struct {
		Results map[string][]Paper `json:"results"`
	}
	err := postJSON(ctx, c.client, c.baseURL+"/crawl/all", crawlRequest{Queries: queries, MaxResults: maxResults}, &out)
	if err != nil {
		return nil, &DownstreamError{Service: "crawler", Err: err}
	}
	return out.Results, nil
}

// postJSON is the shared POST helper for every sibling-service client.
func postJSON(ctx context.Context, client *http.Client, url string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d, body: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d, body: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
