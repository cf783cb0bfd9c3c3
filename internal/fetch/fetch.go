package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Extensions considered assessment data exports. Hidden and extensionless
// remote names are skipped.
var dataExtensions = map[string]bool{
	".csv":  true,
	".json": true,
	".xml":  true,
}

// FileInfo describes one downloaded file in the manifest.
type FileInfo struct {
	Name         string    `json:"name"`
	SizeBytes    int64     `json:"size_bytes"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// Manifest is written as metadata.json next to the downloaded files.
type Manifest struct {
	Source       string     `json:"source"`
	Host         string     `json:"host"`
	RemoteDir    string     `json:"remote_dir,omitempty"`
	DownloadedAt time.Time  `json:"downloaded_at"`
	Files        []FileInfo `json:"files"`
}

// Summary reports what one fetch run did.
type Summary struct {
	Downloaded int
	Skipped    int
	Bytes      int64
}

// Options configures a Fetcher. Credentials default to the FTP_USERNAME /
// FTP_PASSWORD environment variables; Dial defaults to a real FTP dial of
// Host and exists so tests can substitute a fake session.
type Options struct {
	Host      string
	Username  string
	Password  string
	RemoteDir string
	OutputDir string
	Timeout   time.Duration
	Dial      func(ctx context.Context) (Session, error)
	Logger    *slog.Logger
}

// Fetcher downloads county assessment exports from an FTP server into a
// local data directory and writes a manifest describing the run.
type Fetcher struct {
	host      string
	remoteDir string
	outputDir string
	dial      func(ctx context.Context) (Session, error)
	log       *slog.Logger
}

func New(opts Options) (*Fetcher, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("fetch: host required")
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "data"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Username == "" {
		opts.Username = os.Getenv("FTP_USERNAME")
	}
	if opts.Password == "" {
		opts.Password = os.Getenv("FTP_PASSWORD")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	dial := opts.Dial
	if dial == nil {
		dial = ftpDialer(opts.Host, opts.Username, opts.Password, opts.Timeout)
	}
	return &Fetcher{
		host:      opts.Host,
		remoteDir: opts.RemoteDir,
		outputDir: opts.OutputDir,
		dial:      dial,
		log:       opts.Logger.With("component", "fetch"),
	}, nil
}

// Run connects, downloads every data file in the remote directory, and
// writes metadata.json. A remote directory that cannot be entered falls back
// to the server root.
func (f *Fetcher) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	sess, err := f.dial(ctx)
	if err != nil {
		return sum, fmt.Errorf("connect %s: %w", f.host, err)
	}
	defer func() { _ = sess.Close() }()

	remoteDir := f.remoteDir
	if remoteDir != "" {
		if err := sess.ChangeDir(remoteDir); err != nil {
			f.log.Warn("remote dir unavailable, using server root", "dir", remoteDir, "error", err)
			remoteDir = ""
		}
	}

	entries, err := sess.List()
	if err != nil {
		return sum, fmt.Errorf("list remote files: %w", err)
	}

	if err := os.MkdirAll(f.outputDir, 0o750); err != nil {
		return sum, fmt.Errorf("create output dir: %w", err)
	}

	manifest := Manifest{
		Source:       "county property assessment export",
		Host:         f.host,
		RemoteDir:    remoteDir,
		DownloadedAt: time.Now().UTC(),
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if e.Dir || !isDataFile(e.Name) {
			sum.Skipped++
			continue
		}
		n, err := f.download(sess, e.Name)
		if err != nil {
			f.log.Warn("download failed", "file", e.Name, "error", err)
			sum.Skipped++
			continue
		}
		sum.Downloaded++
		sum.Bytes += n
		manifest.Files = append(manifest.Files, FileInfo{
			Name:         e.Name,
			SizeBytes:    n,
			DownloadedAt: time.Now().UTC(),
		})
		f.log.Info("downloaded", "file", e.Name, "bytes", n)
	}

	if err := f.writeManifest(manifest); err != nil {
		return sum, err
	}
	f.log.Info("fetch complete", "downloaded", sum.Downloaded, "skipped", sum.Skipped, "bytes", sum.Bytes)
	return sum, nil
}

func (f *Fetcher) download(sess Session, name string) (int64, error) {
	rc, err := sess.Download(name)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()
	dst := filepath.Join(f.outputDir, filepath.Base(name))
	out, err := os.Create(dst) // #nosec G304 -- dst is Base(name) under the configured output dir
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, rc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return 0, err
	}
	return n, nil
}

func (f *Fetcher) writeManifest(m Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(f.outputDir, "metadata.json"), append(b, '\n'), 0o644)
}

// isDataFile reports whether a remote name looks like an assessment export:
// not hidden, has one of the data extensions.
func isDataFile(name string) bool {
	base := filepath.Base(name)
	if base == "" || strings.HasPrefix(base, ".") {
		return false
	}
	return dataExtensions[strings.ToLower(filepath.Ext(base))]
}
