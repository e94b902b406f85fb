// Package proxy executes bearer-authenticated calls against the downstream
// user-management API, recording a per-request call summary for the audit
// trail.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/brizzai/auth-gateway/internal/config"
	"github.com/brizzai/auth-gateway/internal/logger"
	"go.uber.org/zap"
)

// Client executes downstream requests.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Result is a completed downstream response. Data holds the JSON-decoded
// body, or the raw text when the body is not JSON.
type Result struct {
	StatusCode int
	Data       interface{}
	Raw        []byte
}

// OK reports whether the downstream answered 2xx.
func (r *Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// NewClient creates a downstream client from configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Downstream.Timeout,
		},
		baseURL: cfg.Downstream.BaseURL,
	}
}

// Call executes one downstream request with the given bearer token. The call
// summary is written into the context's trace slot regardless of outcome;
// when a route makes several calls only the last summary survives.
func (c *Client) Call(ctx context.Context, method, path string, body interface{}, accessToken string) (*Result, error) {
	url := c.baseURL + path

	var requestBody []byte
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		requestBody = encoded
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create downstream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(ctx, url, method, 0, requestBody, nil, start)
		return nil, fmt.Errorf("downstream request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Error("Failed to close downstream response body", zap.Error(closeErr))
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.record(ctx, url, method, resp.StatusCode, requestBody, nil, start)
		return nil, fmt.Errorf("failed to read downstream response body: %w", err)
	}

	c.record(ctx, url, method, resp.StatusCode, requestBody, raw, start)

	result := &Result{
		StatusCode: resp.StatusCode,
		Raw:        raw,
	}

	var data interface{}
	if err := json.Unmarshal(raw, &data); err == nil {
		result.Data = data
	} else if len(raw) > 0 {
		result.Data = string(raw)
	}

	return result, nil
}

func (c *Client) record(ctx context.Context, url, method string, status int, requestBody, responseBody []byte, start time.Time) {
	trace := TraceFromContext(ctx)
	if trace == nil {
		return
	}
	trace.Record(CallSummary{
		URL:          url,
		Method:       method,
		StatusCode:   status,
		RequestBody:  string(requestBody),
		ResponseBody: string(responseBody),
		DurationMs:   time.Since(start).Milliseconds(),
	})
}
