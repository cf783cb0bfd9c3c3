package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/terradock/terradock/internal/logger"
	"github.com/terradock/terradock/internal/metrics"
	"github.com/terradock/terradock/internal/ports"
)

// Config is the top-level TOML structure:
//
//	[server]
//	listen = "127.0.0.1:5500"
//	[launcher]
//	apps_dir = "apps"
//	[log.slog] / [log.capture]
//	[store]
//	dsn = "launcher.db"
//	[fetch] / [archive] / [usage]
type Config struct {
	Server   ServerConfig        `toml:"server" mapstructure:"server"`
	Launcher LauncherConfig      `toml:"launcher" mapstructure:"launcher"`
	Log      logger.Config       `toml:"log" mapstructure:"log"`
	Store    StoreConfig         `toml:"store" mapstructure:"store"`
	Fetch    FetchConfig         `toml:"fetch" mapstructure:"fetch"`
	Archive  ArchiveConfig       `toml:"archive" mapstructure:"archive"`
	Usage    metrics.UsageConfig `toml:"usage" mapstructure:"usage"`
}

type ServerConfig struct {
	Listen      string `toml:"listen" mapstructure:"listen"`
	BasePath    string `toml:"base_path" mapstructure:"base_path"`
	WebRoot     string `toml:"web_root" mapstructure:"web_root"`
	OpenBrowser *bool  `toml:"open_browser" mapstructure:"open_browser"`
	Metrics     bool   `toml:"metrics" mapstructure:"metrics"`
}

// BrowserEnabled defaults to on when the TOML leaves open_browser unset.
func (s ServerConfig) BrowserEnabled() bool {
	return s.OpenBrowser == nil || *s.OpenBrowser
}

type LauncherConfig struct {
	AppsDir   string        `toml:"apps_dir" mapstructure:"apps_dir"`
	Platform  string        `toml:"platform" mapstructure:"platform"`
	PortStart int           `toml:"port_start" mapstructure:"port_start"`
	PortEnd   int           `toml:"port_end" mapstructure:"port_end"`
	StopGrace time.Duration `toml:"stop_grace" mapstructure:"stop_grace"`
	Env       []string      `toml:"env" mapstructure:"env"`
	EnvFiles  []string      `toml:"env_files" mapstructure:"env_files"`
}

type StoreConfig struct {
	DSN       string        `toml:"dsn" mapstructure:"dsn"`
	Retention time.Duration `toml:"retention" mapstructure:"retention"`
}

type FetchConfig struct {
	Host      string        `toml:"host" mapstructure:"host"`
	RemoteDir string        `toml:"remote_dir" mapstructure:"remote_dir"`
	OutputDir string        `toml:"output_dir" mapstructure:"output_dir"`
	Timeout   time.Duration `toml:"timeout" mapstructure:"timeout"`
}

type ArchiveConfig struct {
	WorkspaceRoot string `toml:"workspace_root" mapstructure:"workspace_root"`
	ArchiveRoot   string `toml:"archive_root" mapstructure:"archive_root"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Listen:   "127.0.0.1:5500",
			BasePath: "/api",
		},
		Launcher: LauncherConfig{
			AppsDir:   "apps",
			PortStart: ports.DefaultStart,
			PortEnd:   ports.DefaultEnd,
			StopGrace: time.Second,
		},
		Log: logger.DefaultConfig(),
		Fetch: FetchConfig{
			Host:      "ftp.spatialest.com:21",
			OutputDir: "data",
			Timeout:   30 * time.Second,
		},
		Archive: ArchiveConfig{
			WorkspaceRoot: ".",
			ArchiveRoot:   "archive",
		},
	}
}

// Load reads a TOML config file and applies defaults for everything the file
// omits. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Launcher.PortStart <= 0 || c.Launcher.PortEnd <= c.Launcher.PortStart {
		return fmt.Errorf("invalid launcher port range: start %d, end %d", c.Launcher.PortStart, c.Launcher.PortEnd)
	}
	if c.Launcher.StopGrace < 0 {
		return fmt.Errorf("invalid launcher stop_grace: %s", c.Launcher.StopGrace)
	}
	if c.Launcher.AppsDir == "" {
		return fmt.Errorf("launcher apps_dir must not be empty")
	}
	return nil
}

// LauncherEnv merges the launcher env sources into K=V map form: env_files in
// order, then the inline env list overriding last. The OS environment stays
// the child's base and is composed later at launch.
func (c Config) LauncherEnv() (map[string]string, error) {
	m := make(map[string]string)
	for _, p := range c.Launcher.EnvFiles {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, err
		}
		for k, v := range pairs {
			m[k] = v
		}
	}
	for _, kv := range c.Launcher.Env {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			k := strings.TrimSpace(kv[:i])
			if k == "" {
				continue
			}
			m[k] = kv[i+1:]
		}
	}
	return m, nil
}

// LoadEnvFile parses a simple .env file and returns a slice of "KEY=VALUE" entries.
func LoadEnvFile(path string) ([]string, error) {
	m, err := loadEnvFile(path)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out, nil
}

// loadEnvFile parses a simple .env file with KEY=VALUE lines (no export, no quotes). Lines starting with # are ignored.
func loadEnvFile(path string) (map[string]string, error) {
	// Mitigate G304: sanitize user-provided path by cleaning it before use.
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			k := strings.TrimSpace(line[:i])
			v := strings.TrimSpace(line[i+1:])
			m[k] = v
		}
	}
	return m, nil
}
