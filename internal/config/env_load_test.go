package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	if err := os.WriteFile(dotenv, []byte("A=1\n#comment\nB=two\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	pairs, err := LoadEnvFile(dotenv)
	if err != nil {
		t.Fatalf("load env file: %v", err)
	}
	// order not guaranteed; validate contents by map
	m := make(map[string]string)
	for _, kv := range pairs {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				m[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	if m["A"] != "1" || m["B"] != "two" {
		t.Fatalf("unexpected pairs: %+v", m)
	}
}

func TestLauncherEnvMerge(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cfg.toml")
	dotenv := filepath.Join(dir, ".env")
	if err := os.WriteFile(dotenv, []byte("FILE_ONLY=fv\nSHARED=from_file\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	data := "" +
		"[launcher]\n" +
		"env_files = [\"" + dotenv + "\"]\n" +
		"env = [\"TOP=tv\", \"SHARED=from_inline\"]\n"
	if err := os.WriteFile(cfgPath, []byte(data), 0o644); err != nil {
		t.Fatalf("write cfg: %v", err)
	}
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	m, err := cfg.LauncherEnv()
	if err != nil {
		t.Fatalf("LauncherEnv: %v", err)
	}
	// Files first, then the inline list overriding last.
	if m["FILE_ONLY"] != "fv" {
		t.Fatalf("missing FILE_ONLY: %v", m["FILE_ONLY"])
	}
	if m["TOP"] != "tv" {
		t.Fatalf("missing TOP: %v", m["TOP"])
	}
	if m["SHARED"] != "from_inline" {
		t.Fatalf("inline env should win: %v", m["SHARED"])
	}
}
