package statesink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a Firebase-style realtime document store over its REST
// surface. Paths are slash-separated document locations under the base URL.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// NewClient creates a client for the document store at baseURL. The secret,
// when non-empty, authenticates every request.
func NewClient(baseURL, secret string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Patch merges the given fields into the document at path, leaving fields
// not named in data untouched
func (c *Client) Patch(ctx context.Context, path string, data any) error {
	_, err := c.send(ctx, http.MethodPatch, path, data)
	return err
}

// Push appends data as a new child under path and returns the generated key
func (c *Client) Push(ctx context.Context, path string, data any) (string, error) {
	body, err := c.send(ctx, http.MethodPost, path, data)
	if err != nil {
		return "", err
	}

	var result struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse push response: %w", err)
	}
	return result.Name, nil
}

func (c *Client) send(ctx context.Context, method, path string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document data: %w", err)
	}

	url := fmt.Sprintf("%s/%s.json", c.baseURL, strings.Trim(path, "/"))
	if c.secret != "" {
		url += "?auth=" + c.secret
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("document store request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("document store returned status %d for %s %s", resp.StatusCode, method, path)
	}

	return body, nil
}
