package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/terradock/terradock/internal/env"
	"github.com/terradock/terradock/internal/logger"
	"github.com/terradock/terradock/internal/metrics"
	"github.com/terradock/terradock/internal/ports"
	"github.com/terradock/terradock/internal/store"
)

// Options configures a Registry. Zero values fall back to the conventional
// layout: ./apps, ports 8000..9000, one second of stop grace.
type Options struct {
	AppsDir   string
	Platform  string // defaults to runtime.GOOS
	PortStart int
	PortEnd   int // exclusive
	StopGrace time.Duration
	Env       map[string]string // launcher-wide overrides for child processes
	Capture   logger.Capture    // child output capture; zero value discards
	History   store.Store       // optional launch history sink
	Logger    *slog.Logger
}

// Registry launches sibling applications on dynamically allocated ports and
// tracks one record per application name. It owns the reaper goroutine of
// every child it started; callers own the Registry's lifetime and must call
// Shutdown before discarding it.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*record

	appsDir  string
	platform string
	alloc    *ports.Allocator
	env      *env.Table
	grace    time.Duration
	capture  logger.Capture
	history  store.Store
	log      *slog.Logger
}

func New(opts Options) (*Registry, error) {
	if opts.AppsDir == "" {
		opts.AppsDir = "apps"
	}
	if opts.Platform == "" {
		opts.Platform = runtime.GOOS
	}
	if opts.PortStart == 0 {
		opts.PortStart = ports.DefaultStart
	}
	if opts.PortEnd == 0 {
		opts.PortEnd = ports.DefaultEnd
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	alloc, err := ports.NewAllocator(opts.PortStart, opts.PortEnd)
	if err != nil {
		return nil, err
	}
	tab := env.New()
	tab.SetAll(opts.Env)
	return &Registry{
		records:  make(map[string]*record),
		appsDir:  opts.AppsDir,
		platform: opts.Platform,
		alloc:    alloc,
		env:      tab,
		grace:    opts.StopGrace,
		capture:  opts.Capture,
		history:  opts.History,
		log:      opts.Logger.With("component", "launcher"),
	}, nil
}

// Launch resolves the app's start script, allocates a port, and spawns the
// script through the platform interpreter with PORT set. A record is created
// only on a successful spawn; every failure leaves the registry untouched.
// Launching a name that already has a live record replaces the record and
// orphans the previous child.
func (r *Registry) Launch(name string) LaunchResult {
	plan, err := resolveStart(r.platform, r.appsDir, name)
	if err != nil {
		kind := KindScriptNotFound
		var up *UnsupportedPlatformError
		if errors.As(err, &up) {
			kind = KindUnsupportedPlatform
		}
		r.log.Warn("launch rejected", "app", name, "error", err)
		metrics.LaunchFailed(name, kind)
		return LaunchResult{Status: StatusError, Message: err.Error(), Kind: kind}
	}

	scanStart := time.Now()
	port, err := r.alloc.Allocate()
	metrics.ObservePortScan(time.Since(scanStart).Seconds())
	if err != nil {
		r.log.Warn("launch failed", "app", name, "error", err)
		metrics.LaunchFailed(name, KindNoFreePorts)
		return LaunchResult{
			Status:  StatusError,
			Message: fmt.Sprintf("Failed to launch %s: %v", name, err),
			Kind:    KindNoFreePorts,
		}
	}

	// #nosec G204 -- argv is built from the platform table and a stat-checked script path
	cmd := exec.Command(plan.argv[0], plan.argv[1:]...)
	cmd.Env = r.env.Merge([]string{"PORT=" + strconv.Itoa(port)})
	configureSysProcAttr(cmd)

	var outW, errW io.WriteCloser
	if r.capture.Enabled() {
		outW, errW, err = r.capture.Writers(name)
		if err != nil {
			r.log.Warn("log capture unavailable, discarding output", "app", name, "error", err)
			outW, errW = nil, nil
		}
	}
	if outW != nil {
		cmd.Stdout = outW
	}
	if errW != nil {
		cmd.Stderr = errW
	}
	// nil stdio handles are connected to the null device by os/exec.

	if err := cmd.Start(); err != nil {
		r.alloc.Release(port)
		if outW != nil {
			_ = outW.Close()
		}
		if errW != nil {
			_ = errW.Close()
		}
		serr := &SpawnError{App: name, Err: err}
		r.log.Error("launch failed", "app", name, "error", err)
		metrics.LaunchFailed(name, KindSpawnFailed)
		return LaunchResult{Status: StatusError, Message: serr.Error(), Kind: KindSpawnFailed}
	}

	rec := newRecord(name, cmd, port, outW, errW)
	if r.history != nil {
		id, herr := r.history.RecordLaunch(context.Background(), store.Launch{
			App:       name,
			PID:       rec.pid,
			Port:      port,
			StartedAt: rec.startedAt,
		})
		if herr != nil {
			r.log.Warn("history write failed", "app", name, "error", herr)
		} else {
			rec.historyID = id
		}
	}

	r.mu.Lock()
	old := r.records[name]
	r.records[name] = rec
	r.mu.Unlock()
	if old != nil && old.alive() {
		r.log.Warn("replaced record of an app that is still running; previous child keeps running unmanaged",
			"app", name, "old_pid", old.pid, "old_port", old.port)
	}

	// count the launch before the reaper can observe the exit
	metrics.AppLaunched(name)
	metrics.IncRunning()
	go r.reap(rec)

	r.log.Info("app launched", "app", name, "pid", rec.pid, "port", port)
	return LaunchResult{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("%s launched on port %d", name, port),
		Port:    port,
	}
}

// reap waits for the child, records the exit, and releases the port
// reservation. It is the only closer of waitDone.
func (r *Registry) reap(rec *record) {
	_ = rec.cmd.Wait()
	code := waitExitCode(rec.cmd)
	at := time.Now()
	rec.markExited(code, at)
	close(rec.waitDone)
	rec.closeWriters()
	r.alloc.Release(rec.port)
	metrics.DecRunning()
	metrics.AppExited(rec.name)
	if r.history != nil && rec.historyID != 0 {
		if herr := r.history.RecordExit(context.Background(), rec.historyID, at, code); herr != nil {
			r.log.Warn("history write failed", "app", rec.name, "error", herr)
		}
	}
	r.log.Info("app exited", "app", rec.name, "pid", rec.pid, "port", rec.port, "exit_code", code)
}

// Status reports the app's state without blocking on the child. Terminated
// records report exited with the exit code, including records a stop
// terminated.
func (r *Registry) Status(name string) StatusResult {
	r.mu.RLock()
	rec := r.records[name]
	r.mu.RUnlock()
	if rec == nil {
		return StatusResult{Status: StatusNotLaunched}
	}
	if rec.alive() {
		return StatusResult{Status: StatusRunning, Port: rec.port}
	}
	code := rec.observeExited()
	return StatusResult{Status: StatusExited, Port: rec.port, ExitCode: &code}
}

// Stop terminates the app's child: TERM to the process group, the configured
// grace period, then KILL. A second stop after termination reports
// not_running.
func (r *Registry) Stop(name string) StopResult {
	r.mu.RLock()
	rec := r.records[name]
	r.mu.RUnlock()
	if rec == nil {
		return StopResult{Status: StatusNotLaunched, Message: fmt.Sprintf("%s was not launched.", name)}
	}
	return r.stopRecord(rec)
}

func (r *Registry) stopRecord(rec *record) StopResult {
	rec.stopMu.Lock()
	defer rec.stopMu.Unlock()
	if !rec.alive() {
		return StopResult{Status: StatusNotRunning, Message: fmt.Sprintf("%s is not running.", rec.name)}
	}
	_ = terminateGroup(rec.pid)
	select {
	case <-rec.waitDone:
	case <-time.After(r.grace):
		_ = killGroup(rec.pid)
		select {
		case <-rec.waitDone:
		case <-time.After(200 * time.Millisecond):
			// the reaper finishes shortly after SIGKILL; do not hold the caller
		}
	}
	rec.markStopped()
	metrics.AppStopped(rec.name)
	r.log.Info("app stopped", "app", rec.name, "pid", rec.pid, "port", rec.port)
	return StopResult{Status: StatusSuccess, Message: fmt.Sprintf("%s stopped.", rec.name)}
}

// List returns every known record plus apps present on disk that were never
// launched, sorted by name.
func (r *Registry) List() []AppState {
	r.mu.RLock()
	out := make([]AppState, 0, len(r.records))
	seen := make(map[string]bool, len(r.records))
	for name, rec := range r.records {
		seen[name] = true
		st := AppState{Name: name, Port: rec.port}
		if rec.alive() {
			st.Status = StatusRunning
		} else {
			st.Status = StatusExited
		}
		out = append(out, st)
	}
	r.mu.RUnlock()
	for _, name := range r.scanApps() {
		if !seen[name] {
			out = append(out, AppState{Name: name, Status: StatusNotLaunched})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// scanApps lists app directories that carry a start script for this
// platform.
func (r *Registry) scanApps() []string {
	entries, err := os.ReadDir(r.appsDir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := resolveStart(r.platform, r.appsDir, e.Name()); err == nil {
			names = append(names, e.Name())
		}
	}
	return names
}

// RunningPIDs snapshots the live records as app name to PID.
func (r *Registry) RunningPIDs() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int, len(r.records))
	for name, rec := range r.records {
		if rec.alive() {
			out[name] = rec.pid
		}
	}
	return out
}

// Shutdown stops every record whose child is still running. Children whose
// records were replaced by a relaunch are no longer tracked and keep
// running.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	live := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		if rec.alive() {
			live = append(live, rec)
		}
	}
	r.mu.RUnlock()
	var wg sync.WaitGroup
	for _, rec := range live {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.stopRecord(rec)
		}()
	}
	wg.Wait()
}

func waitExitCode(cmd *exec.Cmd) int {
	if st := cmd.ProcessState; st != nil {
		return st.ExitCode()
	}
	return -1
}
