package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// FuzzLoadTOML feeds random-ish fields into a tiny TOML and ensures the
// loader does not panic and either errors or yields a validated config.
func FuzzLoadTOML(f *testing.F) {
	f.Add("127.0.0.1:5500", "apps", 8000, 9000, "1s")
	f.Add("", "", 0, 0, "")
	f.Add(":9", "a b", 70000, -1, "not-a-duration")

	f.Fuzz(func(t *testing.T, listen string, appsDir string, portStart int, portEnd int, grace string) {
		b := strings.Builder{}
		b.WriteString("[server]\n")
		b.WriteString("listen = \"" + strings.ReplaceAll(listen, "\"", "") + "\"\n")
		b.WriteString("[launcher]\n")
		b.WriteString("apps_dir = \"" + strings.ReplaceAll(appsDir, "\"", "") + "\"\n")
		b.WriteString("port_start = " + strconv.Itoa(portStart) + "\n")
		b.WriteString("port_end = " + strconv.Itoa(portEnd) + "\n")
		if grace != "" {
			b.WriteString("stop_grace = \"" + strings.ReplaceAll(grace, "\"", "") + "\"\n")
		}
		tmp := filepath.Join(t.TempDir(), "fuzz.toml")
		if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
			t.Skip()
		}
		cfg, err := Load(tmp) // must not panic
		if err != nil {
			return
		}
		if cfg.Launcher.PortStart <= 0 || cfg.Launcher.PortEnd <= cfg.Launcher.PortStart {
			t.Fatalf("validation let through bad range: %d..%d", cfg.Launcher.PortStart, cfg.Launcher.PortEnd)
		}
		if cfg.Launcher.AppsDir == "" {
			t.Fatalf("validation let through empty apps_dir")
		}
	})
}
