package client

import "time"

// LaunchResult is the outcome of a launch request. Failures ride in the
// payload with status "error"; Kind discriminates the failure class.
type LaunchResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Port    int    `json:"port,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// StatusResult reports the observed state of one application.
type StatusResult struct {
	Status   string `json:"status"`
	Port     int    `json:"port,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
}

// StopResult is the outcome of a stop request.
type StopResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// AppState is one row of the daemon's app listing.
type AppState struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Port   int    `json:"port,omitempty"`
}

// HistoryEntry is one launch-history row for an app.
type HistoryEntry struct {
	App       string     `json:"app"`
	PID       int        `json:"pid"`
	Port      int        `json:"port"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
	ExitCode  *int       `json:"exit_code,omitempty"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}
