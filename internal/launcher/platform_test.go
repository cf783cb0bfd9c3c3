package launcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveStartPlatformTable(t *testing.T) {
	appsDir := t.TempDir()
	for _, app := range []string{"win", "nix"} {
		if err := os.MkdirAll(filepath.Join(appsDir, app), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(appsDir, "win", "run.bat"), []byte("@echo off\r\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(appsDir, "nix", "run.sh"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		platform string
		app      string
		script   string
		argv0    string
		argv1    string
	}{
		{"windows", "win", "run.bat", "cmd", "/C"},
		{"linux", "nix", "run.sh", "sh", ""},
		{"darwin", "nix", "run.sh", "sh", ""},
	}
	for _, c := range cases {
		plan, err := resolveStart(c.platform, appsDir, c.app)
		if err != nil {
			t.Fatalf("%s: resolve: %v", c.platform, err)
		}
		if filepath.Base(plan.script) != c.script {
			t.Fatalf("%s: script %q, want %q", c.platform, plan.script, c.script)
		}
		if plan.argv[0] != c.argv0 {
			t.Fatalf("%s: argv0 %q, want %q", c.platform, plan.argv[0], c.argv0)
		}
		if c.argv1 != "" && plan.argv[1] != c.argv1 {
			t.Fatalf("%s: argv1 %q, want %q", c.platform, plan.argv[1], c.argv1)
		}
		if plan.argv[len(plan.argv)-1] != plan.script {
			t.Fatalf("%s: argv must end with the script path: %v", c.platform, plan.argv)
		}
	}
}

func TestResolveStartUnsupportedPlatform(t *testing.T) {
	_, err := resolveStart("plan9", t.TempDir(), "any")
	var up *UnsupportedPlatformError
	if !errors.As(err, &up) {
		t.Fatalf("error %T is not *UnsupportedPlatformError", err)
	}
	if up.Platform != "plan9" {
		t.Fatalf("unexpected platform in error: %q", up.Platform)
	}
	if up.Error() != "Unsupported operating system: plan9" {
		t.Fatalf("unexpected message: %q", up.Error())
	}
}

func TestResolveStartMissingScript(t *testing.T) {
	appsDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(appsDir, "ghost"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := resolveStart("linux", appsDir, "ghost")
	var nf *ScriptNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error %T is not *ScriptNotFoundError", err)
	}
	if nf.App != "ghost" || filepath.Base(nf.Path) != "run.sh" {
		t.Fatalf("unexpected error fields: %+v", nf)
	}
}

// The platform check runs before any filesystem access, so an unsupported
// platform wins over a missing app directory.
func TestUnsupportedPlatformBeatsMissingScript(t *testing.T) {
	_, err := resolveStart("freebsd", filepath.Join(t.TempDir(), "nonexistent"), "x")
	var up *UnsupportedPlatformError
	if !errors.As(err, &up) {
		t.Fatalf("error %T is not *UnsupportedPlatformError", err)
	}
}
