package launcher

// Status values reported by registry operations.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusRunning     = "running"
	StatusExited      = "exited"
	StatusStopped     = "stopped"
	StatusNotLaunched = "not_launched"
	StatusNotRunning  = "not_running"
)

// LaunchResult is the outcome of a launch request. Failures ride in the
// payload with status "error"; Kind discriminates the failure class.
type LaunchResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Port    int    `json:"port,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// StatusResult reports the observed state of one application. ExitCode is a
// pointer so a clean zero exit still serializes.
type StatusResult struct {
	Status   string `json:"status"`
	Port     int    `json:"port,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
}

// StopResult is the outcome of a stop request.
type StopResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// AppState is one row of the registry's app listing: every launched app plus
// apps found on disk that were never launched.
type AppState struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Port   int    `json:"port,omitempty"`
}
