package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Client provides HTTP client functionality to communicate with terradock daemon
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger // Optional logger for client operations
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:5500/api",
		Timeout: 10 * time.Second,
	}
}

// New creates a new terradock API client
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:5500/api"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Client{
		baseURL: config.BaseURL,
		logger:  config.Logger,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// IsReachable checks if the daemon is running and reachable
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/apps", nil)
	if err != nil {
		c.logger.Debug("Failed to create request for reachability check", "error", err)
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("Daemon unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	isReachable := resp.StatusCode != http.StatusNotFound
	c.logger.Debug("Daemon reachability check", "reachable", isReachable, "status", resp.StatusCode)
	return isReachable
}

// Launch asks the daemon to launch the named app. A failed launch is not an
// error at this level; inspect the result's Status and Kind.
func (c *Client) Launch(ctx context.Context, name string) (LaunchResult, error) {
	c.logger.Debug("Launching app", "name", name)
	var result LaunchResult
	err := c.doJSON(ctx, http.MethodPost, "/launch/"+name, &result)
	return result, err
}

// Status fetches the observed state of one app.
func (c *Client) Status(ctx context.Context, name string) (StatusResult, error) {
	var result StatusResult
	err := c.doJSON(ctx, http.MethodGet, "/status/"+name, &result)
	return result, err
}

// Stop asks the daemon to stop the named app.
func (c *Client) Stop(ctx context.Context, name string) (StopResult, error) {
	c.logger.Debug("Stopping app", "name", name)
	var result StopResult
	err := c.doJSON(ctx, http.MethodPost, "/stop/"+name, &result)
	return result, err
}

// Apps lists every app the daemon knows about.
func (c *Client) Apps(ctx context.Context) ([]AppState, error) {
	var apps []AppState
	err := c.doJSON(ctx, http.MethodGet, "/apps", &apps)
	return apps, err
}

// History fetches the launch history of one app. The daemon returns 404 when
// it runs without a history store.
func (c *Client) History(ctx context.Context, name string) ([]HistoryEntry, error) {
	var rows []HistoryEntry
	err := c.doJSON(ctx, http.MethodGet, "/history/"+name, &rows)
	return rows, err
}

// doJSON performs a request and decodes a 200 response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("HTTP request failed", "error", err, "path", path)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.errorFromResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorFromResponse handles HTTP error responses
func (c *Client) errorFromResponse(resp *http.Response) error {
	var errorResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
		c.logger.Error("Failed to decode error response", "status", resp.StatusCode)
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	c.logger.Error("API request failed", "error", errorResp.Error, "status", resp.StatusCode)
	return fmt.Errorf("API error: %s", errorResp.Error)
}
