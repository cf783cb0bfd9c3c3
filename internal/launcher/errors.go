package launcher

import "fmt"

// Failure kinds carried in result payloads so callers can branch without
// parsing messages.
const (
	KindUnsupportedPlatform = "unsupported_platform"
	KindScriptNotFound      = "script_not_found"
	KindNoFreePorts         = "no_free_ports"
	KindSpawnFailed         = "spawn_failed"
)

// UnsupportedPlatformError is returned when the host platform has no start
// script convention.
type UnsupportedPlatformError struct {
	Platform string
}

func (e *UnsupportedPlatformError) Error() string {
	return "Unsupported operating system: " + e.Platform
}

// ScriptNotFoundError is returned when an application directory exists in
// name only: the expected start script is missing.
type ScriptNotFoundError struct {
	App  string
	Path string
}

func (e *ScriptNotFoundError) Error() string {
	return fmt.Sprintf("Startup script not found for %s at %s", e.App, e.Path)
}

// SpawnError wraps the OS error from starting the interpreter process.
type SpawnError struct {
	App string
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("Failed to launch %s: %v", e.App, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }
