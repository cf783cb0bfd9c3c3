package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/terradock/terradock"
	"github.com/terradock/terradock/internal/logger"
)

// embedded_logger: demonstrate per-app output capture.
// It launches a short app that writes to stdout and stderr, then shows where
// the captured logs are stored.
func main() {
	// Determine log directory: use TERRADOCK_LOG_DIR if set, otherwise a temp directory.
	logDir := os.Getenv("TERRADOCK_LOG_DIR")
	if logDir == "" {
		logDir = filepath.Join(os.TempDir(), fmt.Sprintf("terradock-logs-%d", time.Now().UnixNano()))
	}
	_ = os.MkdirAll(logDir, 0o750)

	// Build a throwaway apps directory with one demo app.
	appsDir, err := os.MkdirTemp("", "terradock-apps-")
	if err != nil {
		panic(err)
	}
	defer func() { _ = os.RemoveAll(appsDir) }()
	appDir := filepath.Join(appsDir, "logger-demo")
	_ = os.MkdirAll(appDir, 0o750)
	script := "#!/bin/sh\necho hello-out\necho hello-err 1>&2\nsleep 0.2\n"
	if err := os.WriteFile(filepath.Join(appDir, "run.sh"), []byte(script), 0o755); err != nil {
		panic(err)
	}

	l, err := terradock.New(terradock.Options{
		AppsDir: appsDir,
		Capture: logger.Capture{Dir: logDir},
	})
	if err != nil {
		panic(err)
	}
	defer l.Shutdown()

	if r := l.Launch("logger-demo"); r.Status != "running" {
		panic(fmt.Sprintf("launch failed: %+v", r))
	}
	// Give the app time to write its output and finish
	time.Sleep(400 * time.Millisecond)
	_ = l.Stop("logger-demo")

	stdoutPath := filepath.Join(logDir, "logger-demo.stdout.log")
	stderrPath := filepath.Join(logDir, "logger-demo.stderr.log")

	fmt.Println("Embedded logger example")
	fmt.Println("  Log directory:", logDir)
	fmt.Println("  Stdout log:", stdoutPath)
	fmt.Println("  Stderr log:", stderrPath)
	fmt.Println("Tip: set TERRADOCK_LOG_DIR to choose a custom log directory.")
}
