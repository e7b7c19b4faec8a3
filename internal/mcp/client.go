// Package mcp provides an HTTP client for the tool gateway.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/piliapp/pili/internal/config"
)

var (
	// ErrUnavailable indicates the gateway could not be reached.
	ErrUnavailable = errors.New("tool gateway unavailable")

	// ErrToolTimeout indicates a tool invocation exceeded its deadline.
	ErrToolTimeout = errors.New("tool invocation timed out")

	// ErrToolError indicates the gateway reported a tool-level failure.
	ErrToolError = errors.New("tool invocation failed")
)

// Client communicates with a tool gateway over HTTP.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a gateway client from the specified configuration. Each
// client owns its own http.Client so per-user connections stay isolated.
func NewClient(cfg *config.MCPConfig, logger *slog.Logger) *Client {
	timeout := cfg.TimeoutDuration()
	return &Client{
		baseURL: cfg.BaseURL,
		timeout: timeout,
		http: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// ListTools retrieves the tool definitions published by the gateway.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	raw, err := c.call(ctx, request{Method: "tools/list", Params: struct{}{}})
	if err != nil {
		return nil, err
	}

	var result listToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: parse tools/list result: %v", ErrToolError, err)
	}

	return result.Tools, nil
}

// CallTool invokes a named tool with the specified arguments and returns the
// result content as text. Structured content is rendered as compact JSON.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (string, error) {
	raw, err := c.call(ctx, request{
		Method: "tools/call",
		Params: callParams{Name: name, Arguments: arguments},
	})
	if err != nil {
		return "", err
	}

	var result callToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("%w: parse tools/call result: %v", ErrToolError, err)
	}

	content := renderContent(result.Content)
	if result.IsError {
		return "", fmt.Errorf("%w: %s", ErrToolError, content)
	}

	return content, nil
}

// Ping checks gateway reachability by listing tools and reports how many
// the gateway exposes.
func (c *Client) Ping(ctx context.Context) (int, error) {
	tools, err := c.ListTools(ctx)
	if err != nil {
		return 0, err
	}
	return len(tools), nil
}

// Close releases idle connections held by the client.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) call(ctx context.Context, req request) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrToolTimeout, req.Method)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: gateway returned %d", ErrUnavailable, resp.StatusCode)
	}

	var envelope response
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrToolError, err)
	}

	if envelope.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolError, envelope.Error.Message)
	}

	return envelope.Result, nil
}

// renderContent normalizes gateway result content to text. Plain strings pass
// through unquoted, anything else keeps its JSON encoding.
func renderContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}

	return compact.String()
}
