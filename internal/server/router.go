package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/terradock/terradock/internal/launcher"
	"github.com/terradock/terradock/internal/metrics"
	"github.com/terradock/terradock/internal/store"
)

// Router provides embeddable HTTP handlers for the launcher registry.
// Endpoints:
//   POST {basePath}/launch/:name
//   GET  {basePath}/status/:name
//   POST {basePath}/stop/:name
//   GET  {basePath}/apps
//   GET  {basePath}/history/:name   (when a history store is configured)
//
// Registry results ride in the response payload with HTTP 200 for every
// well-formed request; 400 is reserved for malformed app names.
// basePath may be empty or start with '/'; no trailing slash.

type Router struct {
	reg      *launcher.Registry
	basePath string
	history  store.Store
	webRoot  string
	metrics  bool
	usage    *metrics.UsageCollector
}

// Options configures the optional surfaces of a Router.
type Options struct {
	BasePath string
	WebRoot  string // static UI root served for unmatched routes; empty disables
	Metrics  bool   // mount GET /metrics (prometheus)
	History  store.Store
	Usage    *metrics.UsageCollector
}

// NewRouter constructs a Router for the registry.
// Example BasePath: "/api" results in /api/launch/:name etc.
func NewRouter(reg *launcher.Registry, opts Options) *Router {
	return &Router{
		reg:      reg,
		basePath: sanitizeBase(opts.BasePath),
		history:  opts.History,
		webRoot:  opts.WebRoot,
		metrics:  opts.Metrics,
		usage:    opts.Usage,
	}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/launch/:name", r.handleLaunch)
	group.GET("/status/:name", r.handleStatus)
	group.POST("/stop/:name", r.handleStop)
	group.GET("/apps", r.handleApps)
	if r.history != nil {
		group.GET("/history/:name", r.handleHistory)
	}
	if r.usage != nil {
		group.GET("/usage/:name", r.handleUsage)
	}
	if r.metrics {
		g.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	if r.webRoot != "" {
		fs := http.FileServer(http.Dir(r.webRoot))
		g.NoRoute(gin.WrapH(fs))
	}
	return g
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

func (r *Router) appName(c *gin.Context) (string, bool) {
	name := c.Param("name")
	if !isSafeName(name) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid app name: allowed [A-Za-z0-9._-] and no '..' or path separators"})
		return "", false
	}
	return name, true
}

func (r *Router) handleLaunch(c *gin.Context) {
	name, ok := r.appName(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, r.reg.Launch(name))
}

func (r *Router) handleStatus(c *gin.Context) {
	name, ok := r.appName(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, r.reg.Status(name))
}

func (r *Router) handleStop(c *gin.Context) {
	name, ok := r.appName(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, r.reg.Stop(name))
}

func (r *Router) handleApps(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.reg.List())
}

func (r *Router) handleHistory(c *gin.Context) {
	name, ok := r.appName(c)
	if !ok {
		return
	}
	rows, err := r.history.GetByApp(c.Request.Context(), name, 50)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	out := make([]historyRow, 0, len(rows))
	for _, l := range rows {
		hr := historyRow{
			App:       l.App,
			PID:       l.PID,
			Port:      l.Port,
			StartedAt: l.StartedAt,
		}
		if l.StoppedAt.Valid {
			t := l.StoppedAt.Time
			hr.StoppedAt = &t
		}
		if l.ExitCode.Valid {
			code := int(l.ExitCode.Int64)
			hr.ExitCode = &code
		}
		out = append(out, hr)
	}
	writeJSON(c, http.StatusOK, out)
}

func (r *Router) handleUsage(c *gin.Context) {
	name, ok := r.appName(c)
	if !ok {
		return
	}
	samples, found := r.usage.History(name)
	if !found {
		samples = []metrics.AppUsage{}
	}
	writeJSON(c, http.StatusOK, samples)
}
