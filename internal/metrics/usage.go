package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

// AppUsage holds one CPU/memory sample for a launched app.
type AppUsage struct {
	App        string    `json:"app"`
	PID        int       `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb"`
	MemoryRSS  uint64    `json:"memory_rss"`
	NumThreads int32     `json:"num_threads"`
	NumFDs     int32     `json:"num_fds,omitempty"` // Unix only
	Timestamp  time.Time `json:"timestamp"`
}

// UsageConfig controls periodic resource sampling of launched apps.
type UsageConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	MaxHistory int           `mapstructure:"max_history"`
}

// UsageCollector samples CPU and memory of running apps on a fixed interval
// and keeps a bounded per-app history for the UI.
type UsageCollector struct {
	enabled  bool
	interval time.Duration
	max      int

	mu      sync.RWMutex
	history map[string]*usageRing

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	cpuPercent *prometheus.GaugeVec
	memoryMB   *prometheus.GaugeVec
	numThreads *prometheus.GaugeVec
	numFDs     *prometheus.GaugeVec
}

// usageRing is a fixed-size circular buffer of samples.
type usageRing struct {
	buf   []AppUsage
	start int
	count int
}

func (rg *usageRing) push(u AppUsage) {
	if rg.count < len(rg.buf) {
		rg.buf[rg.count] = u
		rg.count++
		return
	}
	rg.buf[rg.start] = u
	rg.start = (rg.start + 1) % len(rg.buf)
}

func (rg *usageRing) latest() AppUsage {
	if rg.count < len(rg.buf) {
		return rg.buf[rg.count-1]
	}
	return rg.buf[(rg.start-1+len(rg.buf))%len(rg.buf)]
}

func (rg *usageRing) ordered() []AppUsage {
	out := make([]AppUsage, rg.count)
	if rg.count < len(rg.buf) {
		copy(out, rg.buf[:rg.count])
		return out
	}
	n := copy(out, rg.buf[rg.start:])
	copy(out[n:], rg.buf[:rg.start])
	return out
}

func NewUsageCollector(cfg UsageConfig) *UsageCollector {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 100
	}
	return &UsageCollector{
		enabled:  cfg.Enabled,
		interval: cfg.Interval,
		max:      cfg.MaxHistory,
		history:  make(map[string]*usageRing),
		stopCh:   make(chan struct{}),
		cpuPercent: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "terradock",
				Subsystem: "launcher",
				Name:      "app_cpu_percent",
				Help:      "CPU usage percentage per running app.",
			}, []string{"app"},
		),
		memoryMB: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "terradock",
				Subsystem: "launcher",
				Name:      "app_memory_mb",
				Help:      "Resident memory in MB per running app.",
			}, []string{"app"},
		),
		numThreads: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "terradock",
				Subsystem: "launcher",
				Name:      "app_num_threads",
				Help:      "Thread count per running app.",
			}, []string{"app"},
		),
		numFDs: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "terradock",
				Subsystem: "launcher",
				Name:      "app_num_fds",
				Help:      "Open file descriptors per running app (Unix only).",
			}, []string{"app"},
		),
	}
}

// RegisterMetrics registers the usage gauges with the provided registerer.
func (c *UsageCollector) RegisterMetrics(r prometheus.Registerer) error {
	if !c.enabled {
		return nil
	}
	collectors := []prometheus.Collector{c.cpuPercent, c.memoryMB, c.numThreads}
	if runtime.GOOS != "windows" {
		collectors = append(collectors, c.numFDs)
	}
	for _, col := range collectors {
		if err := r.Register(col); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Start begins periodic sampling. pids returns the current app name to PID
// snapshot; apps missing from it are cleaned up.
func (c *UsageCollector) Start(ctx context.Context, pids func() map[string]int) {
	if !c.enabled {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.collect(pids())
			}
		}
	}()
}

func (c *UsageCollector) Stop() {
	if !c.enabled {
		return
	}
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *UsageCollector) collect(active map[string]int) {
	ts := time.Now()
	for app, pid := range active {
		if pid <= 0 {
			continue
		}
		u, err := sampleProcess(app, pid, ts)
		if err != nil {
			slog.Debug("usage sample failed", "app", app, "pid", pid, "error", err)
			continue
		}
		c.cpuPercent.WithLabelValues(app).Set(u.CPUPercent)
		c.memoryMB.WithLabelValues(app).Set(u.MemoryMB)
		c.numThreads.WithLabelValues(app).Set(float64(u.NumThreads))
		if runtime.GOOS != "windows" && u.NumFDs > 0 {
			c.numFDs.WithLabelValues(app).Set(float64(u.NumFDs))
		}
		c.record(app, *u)
	}
	c.cleanup(active)
}

func sampleProcess(app string, pid int, ts time.Time) (*AppUsage, error) {
	proc, err := process.NewProcess(int32(pid)) // #nosec G115 -- PIDs fit in int32
	if err != nil {
		return nil, fmt.Errorf("process handle: %w", err)
	}
	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		cpuPercent = 0
	}
	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return nil, fmt.Errorf("memory info: %w", err)
	}
	u := &AppUsage{
		App:        app,
		PID:        pid,
		CPUPercent: cpuPercent,
		MemoryMB:   float64(memInfo.RSS) / 1024 / 1024,
		MemoryRSS:  memInfo.RSS,
		Timestamp:  ts,
	}
	if n, err := proc.NumThreads(); err == nil {
		u.NumThreads = n
	}
	if runtime.GOOS != "windows" {
		if n, err := proc.NumFDs(); err == nil {
			u.NumFDs = n
		}
	}
	return u, nil
}

func (c *UsageCollector) record(app string, u AppUsage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rg := c.history[app]
	if rg == nil {
		rg = &usageRing{buf: make([]AppUsage, c.max)}
		c.history[app] = rg
	}
	rg.push(u)
}

func (c *UsageCollector) cleanup(active map[string]int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for app := range c.history {
		if _, ok := active[app]; ok {
			continue
		}
		delete(c.history, app)
		c.cpuPercent.DeleteLabelValues(app)
		c.memoryMB.DeleteLabelValues(app)
		c.numThreads.DeleteLabelValues(app)
		if runtime.GOOS != "windows" {
			c.numFDs.DeleteLabelValues(app)
		}
	}
}

// Latest returns the most recent sample for one app.
func (c *UsageCollector) Latest(app string) (AppUsage, bool) {
	if !c.enabled {
		return AppUsage{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	rg := c.history[app]
	if rg == nil || rg.count == 0 {
		return AppUsage{}, false
	}
	return rg.latest(), true
}

// History returns the retained samples for one app in chronological order.
func (c *UsageCollector) History(app string) ([]AppUsage, bool) {
	if !c.enabled {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	rg := c.history[app]
	if rg == nil || rg.count == 0 {
		return nil, false
	}
	return rg.ordered(), true
}

// All returns the latest sample per app.
func (c *UsageCollector) All() map[string]AppUsage {
	out := make(map[string]AppUsage)
	if !c.enabled {
		return out
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for app, rg := range c.history {
		if rg.count > 0 {
			out[app] = rg.latest()
		}
	}
	return out
}

// Enabled reports whether sampling is active.
func (c *UsageCollector) Enabled() bool { return c.enabled }

// recordForTesting injects a sample without touching gauges.
func (c *UsageCollector) recordForTesting(app string, u AppUsage) {
	c.record(app, u)
}
