package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

// Client wraps http.Client with test-friendly methods
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a new test HTTP client
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Response wraps HTTP response with helper methods
type Response struct {
	*http.Response
	Body []byte
}

// DecodeJSON decodes the response body into target
func (r *Response) DecodeJSON(target any) error {
	return json.Unmarshal(r.Body, target)
}

// GET performs GET request
func (c *Client) GET(t *testing.T, path string) *Response {
	t.Helper()
	return c.request(t, http.MethodGet, path, nil, nil)
}

// POST performs POST request with JSON body
func (c *Client) POST(t *testing.T, path string, body any) *Response {
	t.Helper()
	return c.request(t, http.MethodPost, path, body, nil)
}

// PUT performs PUT request with JSON body
func (c *Client) PUT(t *testing.T, path string, body any) *Response {
	t.Helper()
	return c.request(t, http.MethodPut, path, body, nil)
}

// POSTWithHeaders performs POST request with custom headers
func (c *Client) POSTWithHeaders(t *testing.T, path string, body any, headers map[string]string) *Response {
	t.Helper()
	return c.request(t, http.MethodPost, path, body, headers)
}

func (c *Client) request(t *testing.T, method, path string, body any, headers map[string]string) *Response {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	url := c.BaseURL + path
	req, err := http.NewRequestWithContext(context.Background(), method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}

	return &Response{
		Response: resp,
		Body:     respBody,
	}
}

// WaitForHealthy polls the health endpoint until the engine is ready
func (c *Client) WaitForHealthy(t *testing.T, maxWait time.Duration) {
	t.Helper()

	deadline := time.Now().Add(maxWait)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		resp, err := c.HTTPClient.Get(c.BaseURL + "/health")
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			t.Log("Engine is healthy")
			return
		}
		if resp != nil {
			resp.Body.Close()
		}
		<-ticker.C
	}

	t.Fatalf("engine did not become healthy within %v", maxWait)
}

// AssertStatusCode fails the test if status code doesn't match
func AssertStatusCode(t *testing.T, resp *Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d. Body: %s", expected, resp.StatusCode, string(resp.Body))
	}
}

// AssertContains fails if response body doesn't contain substring
func AssertContains(t *testing.T, resp *Response, substr string) {
	t.Helper()
	if !strings.Contains(string(resp.Body), substr) {
		t.Fatalf("response body does not contain %q. Body: %s", substr, string(resp.Body))
	}
}

// GetErrorCode extracts the machine-readable code from an error response
func GetErrorCode(t *testing.T, resp *Response) string {
	t.Helper()
	var errResp struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := resp.DecodeJSON(&errResp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v. Body: %s", err, string(resp.Body))
	}
	return errResp.Code
}
