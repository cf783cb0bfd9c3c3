package archive

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// sessionStamp names the per-run archive sub-directory.
const sessionStamp = "20060102_150405"

// Summary reports what one archive session did.
type Summary struct {
	Dir     string   // the created session directory
	Moved   []string // items moved, workspace-relative
	Skipped []string // items that did not exist
	Errors  []string // items that failed to move, with the reason
}

// Archiver moves retired workspace items into timestamped archive sessions
// and keeps a log of every session.
type Archiver struct {
	WorkspaceRoot string
	ArchiveRoot   string
	Logger        *slog.Logger

	// now is the clock used for the session stamp; tests override it.
	now func() time.Time
}

func New(workspaceRoot, archiveRoot string, log *slog.Logger) *Archiver {
	if log == nil {
		log = slog.Default()
	}
	return &Archiver{
		WorkspaceRoot: workspaceRoot,
		ArchiveRoot:   archiveRoot,
		Logger:        log.With("component", "archive"),
		now:           time.Now,
	}
}

// Archive moves each workspace-relative item into a new timestamped session
// directory, preserving relative paths. Missing items are skipped with a
// warning; failures are collected, not fatal. The session is described in
// archive_log.txt under the archive root.
func (a *Archiver) Archive(items []string, reason string) (Summary, error) {
	var sum Summary
	if len(items) == 0 {
		return sum, fmt.Errorf("archive: no items given")
	}
	stamp := a.now().Format(sessionStamp)
	sum.Dir = filepath.Join(a.ArchiveRoot, stamp)
	if err := os.MkdirAll(sum.Dir, 0o750); err != nil {
		return sum, fmt.Errorf("create session dir: %w", err)
	}

	for _, item := range items {
		rel := filepath.Clean(item)
		if rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
			sum.Errors = append(sum.Errors, rel+": outside workspace")
			continue
		}
		src := filepath.Join(a.WorkspaceRoot, rel)
		if _, err := os.Stat(src); err != nil {
			a.Logger.Warn("item missing, skipping", "item", rel)
			sum.Skipped = append(sum.Skipped, rel)
			continue
		}
		dst := filepath.Join(sum.Dir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			sum.Errors = append(sum.Errors, rel+": "+err.Error())
			continue
		}
		if err := moveItem(src, dst); err != nil {
			a.Logger.Warn("move failed", "item", rel, "error", err)
			sum.Errors = append(sum.Errors, rel+": "+err.Error())
			continue
		}
		sum.Moved = append(sum.Moved, rel)
	}

	if err := a.appendLog(stamp, reason, sum); err != nil {
		return sum, err
	}
	a.Logger.Info("archive session complete", "dir", sum.Dir,
		"moved", len(sum.Moved), "skipped", len(sum.Skipped), "errors", len(sum.Errors))
	return sum, nil
}

// appendLog records the session in archive_log.txt under the archive root.
func (a *Archiver) appendLog(stamp, reason string, sum Summary) error {
	path := filepath.Join(a.ArchiveRoot, "archive_log.txt")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) // #nosec G304 -- path is under the configured archive root
	if err != nil {
		return fmt.Errorf("open archive log: %w", err)
	}
	defer func() { _ = f.Close() }()

	b := strings.Builder{}
	b.WriteString("=== " + stamp + " ===\n")
	if reason != "" {
		b.WriteString("reason: " + reason + "\n")
	}
	for _, m := range sum.Moved {
		b.WriteString("moved: " + m + "\n")
	}
	for _, s := range sum.Skipped {
		b.WriteString("skipped (missing): " + s + "\n")
	}
	for _, e := range sum.Errors {
		b.WriteString("error: " + e + "\n")
	}
	b.WriteString("\n")
	_, err = f.WriteString(b.String())
	return err
}

// moveItem renames src to dst, falling back to copy+remove when the rename
// crosses devices.
func moveItem(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		if err := copyDir(src, dst); err != nil {
			return err
		}
	} else {
		if err := copyFile(src, dst, info.Mode()); err != nil {
			return err
		}
	}
	return os.RemoveAll(src)
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src) // #nosec G304 -- src was stat-checked under the workspace root
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm()) // #nosec G304
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}
