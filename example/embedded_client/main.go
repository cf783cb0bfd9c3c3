package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/terradock/terradock/internal/logger"
	"github.com/terradock/terradock/pkg/client"
)

// embedded_client: talk to a running `terradock serve` through pkg/client.
func main() {
	logCfg := logger.DefaultConfig()
	logCfg.Slog.Level = logger.LevelInfo
	logCfg.Slog.Format = logger.FormatText

	slogger := logCfg.NewSlogger()
	slog.SetDefault(slogger)

	cfg := client.DefaultConfig()
	cfg.Logger = slogger
	c := client.New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if !c.IsReachable(ctx) {
		slog.Error("daemon not reachable - start it first with 'terradock serve'",
			slog.String("base_url", cfg.BaseURL))
		os.Exit(1)
	}

	apps, err := c.Apps(ctx)
	if err != nil {
		slog.Error("list apps", "error", err)
		os.Exit(1)
	}
	for _, a := range apps {
		slog.Info("app", "name", a.Name, "status", a.Status, "port", a.Port)
	}

	if len(apps) == 0 {
		slog.Info("no apps found in the apps directory")
		return
	}

	name := apps[0].Name
	lr, err := c.Launch(ctx, name)
	if err != nil {
		slog.Error("launch", "app", name, "error", err)
		os.Exit(1)
	}
	slog.Info("launched", "app", name, "status", lr.Status, "port", lr.Port, "kind", lr.Kind)

	st, err := c.Status(ctx, name)
	if err == nil {
		slog.Info("status", "app", name, "status", st.Status, "port", st.Port)
	}

	sr, err := c.Stop(ctx, name)
	if err == nil {
		slog.Info("stopped", "app", name, "status", sr.Status)
	}
}
