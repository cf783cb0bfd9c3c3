package terradock

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/terradock/terradock/internal/config"
	"github.com/terradock/terradock/internal/launcher"
	"github.com/terradock/terradock/internal/metrics"
	iapi "github.com/terradock/terradock/internal/server"
	"github.com/terradock/terradock/internal/store"
	"github.com/terradock/terradock/internal/store/factory"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type LaunchResult = launcher.LaunchResult

type StatusResult = launcher.StatusResult

type StopResult = launcher.StopResult

type AppState = launcher.AppState

type Options = launcher.Options

type Store = store.Store

// Launcher is a thin facade over internal/launcher.Registry.
// It provides a stable public API for embedding.

type Launcher struct{ inner *launcher.Registry }

func New(opts Options) (*Launcher, error) {
	reg, err := launcher.New(opts)
	if err != nil {
		return nil, err
	}
	return &Launcher{inner: reg}, nil
}

func (l *Launcher) Launch(name string) LaunchResult { return l.inner.Launch(name) }
func (l *Launcher) Status(name string) StatusResult { return l.inner.Status(name) }
func (l *Launcher) Stop(name string) StopResult     { return l.inner.Stop(name) }
func (l *Launcher) List() []AppState                { return l.inner.List() }
func (l *Launcher) RunningPIDs() map[string]int     { return l.inner.RunningPIDs() }
func (l *Launcher) Shutdown()                       { l.inner.Shutdown() }

func LoadConfig(path string) (cfg.Config, error) {
	return cfg.Load(path)
}

// NewHistoryStore opens a launch-history store from a DSN. Supported schemes:
// postgres://, sqlite://, or a bare filesystem path (sqlite).
func NewHistoryStore(dsn string) (Store, error) {
	return factory.NewFromDSN(dsn)
}

// NewHTTPServer builds the daemon HTTP server for the given launcher. Call
// Start on the result and watch Ready for the listener to come up.
func NewHTTPServer(addr, basePath string, l *Launcher, history Store) *iapi.Server {
	router := iapi.NewRouter(l.inner, iapi.Options{BasePath: basePath, History: history})
	return iapi.NewServer(addr, router, l.inner, history, nil)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the default registry.
// It returns any immediate listen error; otherwise it runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	http.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           nil,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
