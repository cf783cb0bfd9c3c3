package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/terradock/terradock/internal/config"
	"github.com/terradock/terradock/internal/launcher"
	"github.com/terradock/terradock/internal/metrics"
	"github.com/terradock/terradock/internal/server"
	"github.com/terradock/terradock/internal/store"
	"github.com/terradock/terradock/internal/store/factory"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command and wires every subcommand
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	appFlags := &AppFlags{}
	fetchFlags := &FetchFlags{}
	archiveFlags := &ArchiveFlags{}

	terradockCommand := command{}

	root := createRootCommand(globalFlags)

	root.AddCommand(
		createLaunchCommand(terradockCommand, appFlags),
		createStatusCommand(terradockCommand, appFlags),
		createStopCommand(terradockCommand, appFlags),
		createAppsCommand(terradockCommand, appFlags),
		createHistoryCommand(terradockCommand, appFlags),
		createServeCommand(globalFlags),
		createFetchCommand(terradockCommand, globalFlags, fetchFlags),
		createArchiveCommand(terradockCommand, globalFlags, archiveFlags),
	)

	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "terradock",
		Short: "Local desktop launcher for county GIS applications",
		Long: `terradock serves a local web dock that launches, monitors, and stops
sibling applications on dynamically chosen ports, plus utilities for
fetching assessment data exports and archiving retired workspace files.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to terradock.toml")
	return cmd
}

func createLaunchCommand(c command, flags *AppFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launch <app>",
		Short: "Launch an app through the running daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Launch(*flags, args[0])
		},
	}
	addAPIFlags(cmd, flags)
	return cmd
}

func createStatusCommand(c command, flags *AppFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <app>",
		Short: "Show an app's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(*flags, args[0])
		},
	}
	addAPIFlags(cmd, flags)
	return cmd
}

func createStopCommand(c command, flags *AppFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop <app>",
		Short: "Stop a running app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Stop(*flags, args[0])
		},
	}
	addAPIFlags(cmd, flags)
	return cmd
}

func createAppsCommand(c command, flags *AppFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "List every app the daemon knows about",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Apps(*flags)
		},
	}
	addAPIFlags(cmd, flags)
	return cmd
}

func createHistoryCommand(c command, flags *AppFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <app>",
		Short: "Show an app's launch history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.History(*flags, args[0])
		},
	}
	addAPIFlags(cmd, flags)
	return cmd
}

func addAPIFlags(cmd *cobra.Command, flags *AppFlags) {
	cmd.Flags().StringVar(&flags.APIUrl, "api-url", "", "daemon API base URL (default "+defaultAPIUrl+")")
	cmd.Flags().DurationVar(&flags.APITimeout, "api-timeout", 10*time.Second, "API request timeout")
}

func createFetchCommand(c command, globalFlags *GlobalFlags, flags *FetchFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download assessment data exports from the FTP server",
		Long: `Download county property-assessment exports into the local data
directory. Credentials come from FTP_USERNAME and FTP_PASSWORD.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Fetch(globalFlags, *flags)
		},
	}
	cmd.Flags().StringVar(&flags.Host, "host", "", "FTP host:port (overrides config)")
	cmd.Flags().StringVar(&flags.RemoteDir, "remote-dir", "", "remote directory to fetch from")
	cmd.Flags().StringVar(&flags.OutputDir, "output-dir", "", "local directory for downloads")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", 0, "FTP dial timeout")
	return cmd
}

func createArchiveCommand(c command, globalFlags *GlobalFlags, flags *ArchiveFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive <item>...",
		Short: "Move workspace items into a timestamped archive session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Archive(globalFlags, *flags, args)
		},
	}
	cmd.Flags().StringVar(&flags.Reason, "reason", "", "note recorded in the archive log")
	return cmd
}

// createServeCommand creates the serve subcommand
func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	serveFlags := &ServeFlags{}

	cmd := &cobra.Command{
		Use:   "serve [terradock.toml]",
		Short: "Start the terradock daemon",
		Long: `Start the launcher daemon: serve the web dock, launch apps from the
apps directory on free ports, and track their lifecycle.

Examples:
  terradock serve                   # defaults (apps/ on 127.0.0.1:5500)
  terradock serve terradock.toml    # with a config file
  terradock serve --no-browser      # do not open the dock in a browser`,
		RunE: func(cmd *cobra.Command, args []string) error {
			serveFlags.ConfigPath = globalFlags.ConfigPath
			return runServeCommand(serveFlags, args)
		},
	}
	cmd.Flags().BoolVar(&serveFlags.NoBrowser, "no-browser", false, "do not open the dock in a browser")
	return cmd
}

func runServeCommand(flags *ServeFlags, args []string) error {
	configPath := flags.ConfigPath
	if len(args) > 0 {
		configPath = args[0]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logger := cfg.Log.NewSlogger()
	slog.SetDefault(logger)

	if cfg.Server.Metrics {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}

	var history store.Store
	if cfg.Store.DSN != "" {
		history, err = factory.NewFromDSN(cfg.Store.DSN)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = history.EnsureSchema(ctx)
		if err == nil && cfg.Store.Retention > 0 {
			_, err = history.PurgeOlderThan(ctx, time.Now().Add(-cfg.Store.Retention))
		}
		cancel()
		if err != nil {
			_ = history.Close()
			return fmt.Errorf("prepare history store: %w", err)
		}
	}

	launcherEnv, err := cfg.LauncherEnv()
	if err != nil {
		return fmt.Errorf("load launcher env: %w", err)
	}
	reg, err := launcher.New(launcher.Options{
		AppsDir:   cfg.Launcher.AppsDir,
		Platform:  cfg.Launcher.Platform,
		PortStart: cfg.Launcher.PortStart,
		PortEnd:   cfg.Launcher.PortEnd,
		StopGrace: cfg.Launcher.StopGrace,
		Env:       launcherEnv,
		Capture:   cfg.Log.Capture,
		History:   history,
		Logger:    logger,
	})
	if err != nil {
		if history != nil {
			_ = history.Close()
		}
		return err
	}

	var usage *metrics.UsageCollector
	if cfg.Usage.Enabled {
		usage = metrics.NewUsageCollector(cfg.Usage)
		if cfg.Server.Metrics {
			if err := usage.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
				return fmt.Errorf("register usage metrics: %w", err)
			}
		}
		usageCtx, usageCancel := context.WithCancel(context.Background())
		defer usageCancel()
		usage.Start(usageCtx, reg.RunningPIDs)
		defer usage.Stop()
	}

	router := server.NewRouter(reg, server.Options{
		BasePath: cfg.Server.BasePath,
		WebRoot:  cfg.Server.WebRoot,
		Metrics:  cfg.Server.Metrics,
		History:  history,
		Usage:    usage,
	})
	srv := server.NewServer(cfg.Server.Listen, router, reg, history, logger)
	if err := srv.Start(); err != nil {
		reg.Shutdown()
		if history != nil {
			_ = history.Close()
		}
		return fmt.Errorf("start server: %w", err)
	}

	if cfg.Server.BrowserEnabled() && !flags.NoBrowser {
		go func() {
			<-srv.Ready()
			url := "http://" + srv.Addr()
			if err := browser.OpenURL(url); err != nil {
				logger.Warn("could not open browser", "url", url, "error", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logger.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
