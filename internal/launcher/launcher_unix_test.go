//go:build !windows

package launcher

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/terradock/terradock/internal/metrics"
	"github.com/terradock/terradock/internal/store/sqlite"
)

// waitStatus polls Status until cond is true or the deadline passes.
func waitStatus(t *testing.T, reg *Registry, name string, timeout time.Duration, cond func(StatusResult) bool) StatusResult {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var st StatusResult
	for time.Now().Before(deadline) {
		st = reg.Status(name)
		if cond(st) {
			return st
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not reached in %s, last status %+v", timeout, st)
	return st
}

func TestLaunchStatusRunningThenExited(t *testing.T) {
	reg, appsDir := newRegistry(t, Options{})
	writeScript(t, appsDir, "alpha", "run.sh", "#!/bin/sh\nsleep 0.3\n")

	res := reg.Launch("alpha")
	if res.Status != StatusSuccess {
		t.Fatalf("launch failed: %+v", res)
	}
	if res.Port == 0 {
		t.Fatalf("launch result carries no port: %+v", res)
	}

	st := reg.Status("alpha")
	if st.Status != StatusRunning || st.Port != res.Port {
		t.Fatalf("expected running on port %d, got %+v", res.Port, st)
	}

	st = waitStatus(t, reg, "alpha", 5*time.Second, func(s StatusResult) bool {
		return s.Status == StatusExited
	})
	if st.ExitCode == nil || *st.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %+v", st.ExitCode)
	}
	if st.Port != res.Port {
		t.Fatalf("exited status lost the port: %+v", st)
	}
}

func TestStatusReportsNonZeroExitCode(t *testing.T) {
	reg, appsDir := newRegistry(t, Options{})
	writeScript(t, appsDir, "broken", "run.sh", "#!/bin/sh\nexit 3\n")

	if res := reg.Launch("broken"); res.Status != StatusSuccess {
		t.Fatalf("launch failed: %+v", res)
	}
	st := waitStatus(t, reg, "broken", 5*time.Second, func(s StatusResult) bool {
		return s.Status == StatusExited
	})
	if st.ExitCode == nil || *st.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %+v", st.ExitCode)
	}
}

func TestChildReceivesPortEnv(t *testing.T) {
	reg, appsDir := newRegistry(t, Options{Env: map[string]string{"GREETING": "hello"}})
	out := filepath.Join(t.TempDir(), "port.txt")
	writeScript(t, appsDir, "echoer", "run.sh", "#!/bin/sh\necho \"$PORT $GREETING\" > "+out+"\n")

	res := reg.Launch("echoer")
	if res.Status != StatusSuccess {
		t.Fatalf("launch failed: %+v", res)
	}
	waitStatus(t, reg, "echoer", 5*time.Second, func(s StatusResult) bool {
		return s.Status == StatusExited
	})
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read child output: %v", err)
	}
	want := strconv.Itoa(res.Port) + " hello\n"
	if string(b) != want {
		t.Fatalf("child saw %q, want %q", b, want)
	}
}

func TestStopRunningThenIdempotent(t *testing.T) {
	reg, appsDir := newRegistry(t, Options{})
	writeScript(t, appsDir, "longrun", "run.sh", "#!/bin/sh\nsleep 30\n")

	if res := reg.Launch("longrun"); res.Status != StatusSuccess {
		t.Fatalf("launch failed: %+v", res)
	}
	sp := reg.Stop("longrun")
	if sp.Status != StatusSuccess {
		t.Fatalf("stop failed: %+v", sp)
	}
	// after a stop the app no longer reports running
	if st := reg.Status("longrun"); st.Status == StatusRunning {
		t.Fatalf("still running after stop: %+v", st)
	}
	// second stop reports not_running, never an error
	if sp2 := reg.Stop("longrun"); sp2.Status != StatusNotRunning {
		t.Fatalf("second stop: %+v", sp2)
	}
}

func TestStopAlreadyExited(t *testing.T) {
	reg, appsDir := newRegistry(t, Options{})
	writeScript(t, appsDir, "quick", "run.sh", "#!/bin/sh\nexit 0\n")

	if res := reg.Launch("quick"); res.Status != StatusSuccess {
		t.Fatalf("launch failed: %+v", res)
	}
	waitStatus(t, reg, "quick", 5*time.Second, func(s StatusResult) bool {
		return s.Status == StatusExited
	})
	if sp := reg.Stop("quick"); sp.Status != StatusNotRunning {
		t.Fatalf("expected not_running, got %+v", sp)
	}
}

// Stop escalates to KILL for children that ignore TERM.
func TestStopKillsTermIgnoringChild(t *testing.T) {
	reg, appsDir := newRegistry(t, Options{StopGrace: 300 * time.Millisecond})
	writeScript(t, appsDir, "stubborn", "run.sh", "#!/bin/sh\ntrap '' TERM\nsleep 30\n")

	if res := reg.Launch("stubborn"); res.Status != StatusSuccess {
		t.Fatalf("launch failed: %+v", res)
	}
	// give the shell a moment to install the trap
	time.Sleep(100 * time.Millisecond)
	start := time.Now()
	sp := reg.Stop("stubborn")
	if sp.Status != StatusSuccess {
		t.Fatalf("stop failed: %+v", sp)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("stop took too long: %s", elapsed)
	}
	waitStatus(t, reg, "stubborn", 5*time.Second, func(s StatusResult) bool {
		return s.Status != StatusRunning
	})
}

// Relaunching a name that is still running replaces the record and orphans
// the previous child: it keeps running, untracked. This mirrors the original
// last-write-wins behavior; the test pins it down rather than fixing it.
func TestRelaunchOrphansRunningChild(t *testing.T) {
	reg, appsDir := newRegistry(t, Options{})
	writeScript(t, appsDir, "dup", "run.sh", "#!/bin/sh\nsleep 30\n")

	first := reg.Launch("dup")
	if first.Status != StatusSuccess {
		t.Fatalf("first launch failed: %+v", first)
	}
	oldPID := reg.RunningPIDs()["dup"]
	if oldPID == 0 {
		t.Fatalf("no running pid after first launch")
	}

	second := reg.Launch("dup")
	if second.Status != StatusSuccess {
		t.Fatalf("second launch failed: %+v", second)
	}
	if second.Port == first.Port {
		t.Fatalf("relaunch reused port %d while the first child still holds its reservation", first.Port)
	}
	if st := reg.Status("dup"); st.Port != second.Port {
		t.Fatalf("status should follow the new record: %+v", st)
	}

	// the first child is orphaned but still alive
	if err := syscall.Kill(oldPID, 0); err != nil {
		t.Fatalf("previous child should still be running: %v", err)
	}
	// the registry no longer tracks it; clean it up ourselves
	t.Cleanup(func() { _ = syscall.Kill(-oldPID, syscall.SIGKILL) })
}

func TestShutdownStopsAllRunning(t *testing.T) {
	reg, appsDir := newRegistry(t, Options{StopGrace: 300 * time.Millisecond})
	for _, name := range []string{"one", "two", "three"} {
		writeScript(t, appsDir, name, "run.sh", "#!/bin/sh\nsleep 30\n")
		if res := reg.Launch(name); res.Status != StatusSuccess {
			t.Fatalf("launch %s failed: %+v", name, res)
		}
	}
	pids := reg.RunningPIDs()
	if len(pids) != 3 {
		t.Fatalf("expected 3 running, got %v", pids)
	}

	reg.Shutdown()
	for name := range pids {
		if st := reg.Status(name); st.Status == StatusRunning {
			t.Fatalf("%s still running after shutdown: %+v", name, st)
		}
	}
}

func TestConcurrentLaunchesGetDistinctPorts(t *testing.T) {
	reg, appsDir := newRegistry(t, Options{})
	names := []string{"c1", "c2", "c3", "c4"}
	for _, name := range names {
		writeScript(t, appsDir, name, "run.sh", "#!/bin/sh\nsleep 10\n")
	}

	results := make([]LaunchResult, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = reg.Launch(name)
		}()
	}
	wg.Wait()

	seen := make(map[int]string)
	for i, res := range results {
		if res.Status != StatusSuccess {
			t.Fatalf("launch %s failed: %+v", names[i], res)
		}
		if prev, dup := seen[res.Port]; dup {
			t.Fatalf("port %d handed to both %s and %s", res.Port, prev, names[i])
		}
		seen[res.Port] = names[i]
	}
}

// A spawn failure must release the port reservation and leave the registry
// untouched. Forcing the windows interpreter on a unix host makes exec fail
// after port allocation; with a single-port range, repeated launches keep
// failing as spawn_failed rather than no_free_ports.
func TestSpawnFailureReleasesPortAndLeavesNoRecord(t *testing.T) {
	reg, appsDir := newRegistry(t, Options{Platform: "windows", PortStart: 18310, PortEnd: 18311})
	writeScript(t, appsDir, "ghost", "run.bat", "@echo off\r\n")

	for i := 0; i < 2; i++ {
		res := reg.Launch("ghost")
		if res.Status != StatusError || res.Kind != KindSpawnFailed {
			t.Fatalf("launch #%d: expected spawn_failed, got %+v", i, res)
		}
	}
	if st := reg.Status("ghost"); st.Status != StatusNotLaunched {
		t.Fatalf("failed launch left a record: %+v", st)
	}
}

func TestLaunchWritesHistory(t *testing.T) {
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}

	reg, appsDir := newRegistry(t, Options{History: db})
	writeScript(t, appsDir, "tracked", "run.sh", "#!/bin/sh\nexit 0\n")

	if res := reg.Launch("tracked"); res.Status != StatusSuccess {
		t.Fatalf("launch failed: %+v", res)
	}
	waitStatus(t, reg, "tracked", 5*time.Second, func(s StatusResult) bool {
		return s.Status == StatusExited
	})

	// the reaper completes the row asynchronously
	deadline := time.Now().Add(5 * time.Second)
	for {
		rows, err := db.GetByApp(ctx, "tracked", 10)
		if err != nil {
			t.Fatalf("get by app: %v", err)
		}
		if len(rows) == 1 && !rows[0].Running() {
			if !rows[0].ExitCode.Valid || rows[0].ExitCode.Int64 != 0 {
				t.Fatalf("unexpected exit code in history: %+v", rows[0].ExitCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("history row never completed: %+v", rows)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func runningGauge(t *testing.T, g prometheus.Gatherer) float64 {
	t.Helper()
	mfs, err := g.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == "terradock_launcher_apps_running" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("apps_running gauge not found")
	return 0
}

func waitGaugeDelta(t *testing.T, g prometheus.Gatherer, base, want float64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var got float64
	for time.Now().Before(deadline) {
		got = runningGauge(t, g) - base
		if got == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("gauge delta never reached %v, last %v", want, got)
}

// The running gauge counts the launch before the reaper starts, so it rises
// with Launch and settles back once the child is reaped.
func TestRunningGaugeTracksLifecycle(t *testing.T) {
	promReg := prometheus.NewRegistry()
	if err := metrics.Register(promReg); err != nil {
		t.Fatalf("register metrics: %v", err)
	}
	base := runningGauge(t, promReg)

	reg, appsDir := newRegistry(t, Options{})
	writeScript(t, appsDir, "counted", "run.sh", "#!/bin/sh\nsleep 30\n")

	if res := reg.Launch("counted"); res.Status != StatusSuccess {
		t.Fatalf("launch failed: %+v", res)
	}
	waitGaugeDelta(t, promReg, base, 1)

	if sp := reg.Stop("counted"); sp.Status != StatusSuccess {
		t.Fatalf("stop failed: %+v", sp)
	}
	waitGaugeDelta(t, promReg, base, 0)
}

func TestExitReleasesPortReservation(t *testing.T) {
	reg, appsDir := newRegistry(t, Options{PortStart: 18300, PortEnd: 18302})
	writeScript(t, appsDir, "short", "run.sh", "#!/bin/sh\nexit 0\n")

	res := reg.Launch("short")
	if res.Status != StatusSuccess {
		t.Fatalf("launch failed: %+v", res)
	}
	waitStatus(t, reg, "short", 5*time.Second, func(s StatusResult) bool {
		return s.Status == StatusExited
	})

	// with only two ports in the range, repeated launches prove the reaper
	// released the reservation
	for i := 0; i < 3; i++ {
		res = reg.Launch("short")
		if res.Status != StatusSuccess {
			t.Fatalf("relaunch #%d failed: %+v", i, res)
		}
		waitStatus(t, reg, "short", 5*time.Second, func(s StatusResult) bool {
			return s.Status == StatusExited
		})
	}
}
