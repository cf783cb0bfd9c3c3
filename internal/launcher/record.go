package launcher

import (
	"io"
	"os/exec"
	"sync"
	"time"
)

// record tracks one launched child. waitDone is closed by the registry's
// reaper goroutine after cmd.Wait returns and the exit fields are set, so
// any select on it observes a fully terminated record.
type record struct {
	mu     sync.Mutex
	stopMu sync.Mutex // serializes concurrent stop requests

	name      string
	cmd       *exec.Cmd
	pid       int
	port      int
	status    string
	exitCode  int
	startedAt time.Time
	stoppedAt time.Time
	historyID int64
	waitDone  chan struct{}
	outW      io.WriteCloser
	errW      io.WriteCloser
}

func newRecord(name string, cmd *exec.Cmd, port int, outW, errW io.WriteCloser) *record {
	return &record{
		name:      name,
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		port:      port,
		status:    StatusRunning,
		startedAt: time.Now(),
		waitDone:  make(chan struct{}),
		outW:      outW,
		errW:      errW,
	}
}

// alive reports whether the child has not yet been reaped.
func (rec *record) alive() bool {
	select {
	case <-rec.waitDone:
		return false
	default:
		return true
	}
}

// markExited records the exit observed by the reaper. A status set by a
// prior stop is kept; a status query flips it to exited later.
func (rec *record) markExited(code int, at time.Time) {
	rec.mu.Lock()
	rec.exitCode = code
	rec.stoppedAt = at
	if rec.status == StatusRunning {
		rec.status = StatusExited
	}
	rec.mu.Unlock()
}

// markStopped records that a stop request completed termination.
func (rec *record) markStopped() {
	rec.mu.Lock()
	rec.status = StatusStopped
	rec.mu.Unlock()
}

// observeExited is called by status queries that found waitDone closed: any
// terminated record reports exited with its exit code, including records a
// stop terminated.
func (rec *record) observeExited() int {
	rec.mu.Lock()
	rec.status = StatusExited
	code := rec.exitCode
	rec.mu.Unlock()
	return code
}

func (rec *record) closeWriters() {
	rec.mu.Lock()
	outW, errW := rec.outW, rec.errW
	rec.outW, rec.errW = nil, nil
	rec.mu.Unlock()
	if outW != nil {
		_ = outW.Close()
	}
	if errW != nil {
		_ = errW.Close()
	}
}
