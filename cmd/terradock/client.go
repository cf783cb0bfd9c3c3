package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// defaultAPIUrl is where a locally running `terradock serve` listens.
const defaultAPIUrl = "http://127.0.0.1:5500/api"

// APIClient provides HTTP client functionality to communicate with the terradock daemon
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if baseURL == "" {
		baseURL = defaultAPIUrl
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// IsReachable checks if the daemon is running and reachable
func (c *APIClient) IsReachable() bool {
	resp, err := c.client.Get(c.baseURL + "/apps")
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode != http.StatusNotFound // Accept any response except 404
}

// Launch asks the daemon to launch an app and returns the result payload.
func (c *APIClient) Launch(name string) (any, error) {
	return c.do(http.MethodPost, "/launch/"+name)
}

// Status fetches one app's status payload.
func (c *APIClient) Status(name string) (any, error) {
	return c.do(http.MethodGet, "/status/"+name)
}

// Stop asks the daemon to stop an app and returns the result payload.
func (c *APIClient) Stop(name string) (any, error) {
	return c.do(http.MethodPost, "/stop/"+name)
}

// Apps lists every known app.
func (c *APIClient) Apps() (any, error) {
	return c.do(http.MethodGet, "/apps")
}

// History fetches an app's launch history.
func (c *APIClient) History(name string) (any, error) {
	return c.do(http.MethodGet, "/history/"+name)
}

func (c *APIClient) do(method, path string) (any, error) {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Error string `json:"error"`
		}
		if err = json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
			return nil, fmt.Errorf("API error: status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("API error: %s", errorResp.Error)
	}

	var result any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return result, nil
}
