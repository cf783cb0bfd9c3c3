package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// fakeSession serves listings and file bodies from memory.
type fakeSession struct {
	entries   []Entry
	files     map[string]string
	dirErr    error
	changedTo string
	closed    bool
}

func (s *fakeSession) ChangeDir(dir string) error {
	if s.dirErr != nil {
		return s.dirErr
	}
	s.changedTo = dir
	return nil
}

func (s *fakeSession) List() ([]Entry, error) { return s.entries, nil }

func (s *fakeSession) Download(name string) (io.ReadCloser, error) {
	body, ok := s.files[name]
	if !ok {
		return nil, errors.New("550 no such file")
	}
	return io.NopCloser(bytes.NewReader([]byte(body))), nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func newFetcher(t *testing.T, sess *fakeSession, remoteDir string) (*Fetcher, string) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "data")
	f, err := New(Options{
		Host:      "ftp.example.com:21",
		RemoteDir: remoteDir,
		OutputDir: out,
		Dial:      func(context.Context) (Session, error) { return sess, nil },
	})
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	return f, out
}

func TestRunDownloadsDataFiles(t *testing.T) {
	sess := &fakeSession{
		entries: []Entry{
			{Name: "parcels.csv", Size: 11},
			{Name: "values.JSON", Size: 2},
			{Name: "survey.xml", Size: 4},
			{Name: "readme.txt"},         // wrong extension
			{Name: ".hidden.csv"},        // hidden
			{Name: "LICENSE"},            // extensionless
			{Name: "exports", Dir: true}, // directory
		},
		files: map[string]string{
			"parcels.csv": "id,value\n1,2",
			"values.JSON": "{}",
			"survey.xml":  "<a/>",
		},
	}
	f, out := newFetcher(t, sess, "county/exports")

	sum, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Downloaded != 3 || sum.Skipped != 4 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if sess.changedTo != "county/exports" {
		t.Fatalf("did not change to remote dir: %q", sess.changedTo)
	}
	if !sess.closed {
		t.Fatalf("session left open")
	}

	b, err := os.ReadFile(filepath.Join(out, "parcels.csv"))
	if err != nil || string(b) != "id,value\n1,2" {
		t.Fatalf("downloaded content wrong: %q err=%v", b, err)
	}

	mb, err := os.ReadFile(filepath.Join(out, "metadata.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var m Manifest
	if err := json.Unmarshal(mb, &m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if m.Host != "ftp.example.com:21" || m.RemoteDir != "county/exports" || len(m.Files) != 3 {
		t.Fatalf("unexpected manifest: %+v", m)
	}
}

func TestRunFallsBackToRootOnBadRemoteDir(t *testing.T) {
	sess := &fakeSession{
		entries: []Entry{{Name: "root.csv", Size: 1}},
		files:   map[string]string{"root.csv": "x"},
		dirErr:  errors.New("550 not found"),
	}
	f, out := newFetcher(t, sess, "missing")

	sum, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Downloaded != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	var m Manifest
	mb, err := os.ReadFile(filepath.Join(out, "metadata.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if err := json.Unmarshal(mb, &m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	// the manifest records where the files actually came from
	if m.RemoteDir != "" {
		t.Fatalf("manifest should record the root fallback, got %q", m.RemoteDir)
	}
}

func TestRunSkipsFailedDownloads(t *testing.T) {
	sess := &fakeSession{
		entries: []Entry{
			{Name: "good.csv", Size: 1},
			{Name: "gone.csv", Size: 1}, // listed but not retrievable
		},
		files: map[string]string{"good.csv": "x"},
	}
	f, _ := newFetcher(t, sess, "")

	sum, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Downloaded != 1 || sum.Skipped != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestRunDialFailure(t *testing.T) {
	f, err := New(Options{
		Host: "ftp.example.com:21",
		Dial: func(context.Context) (Session, error) { return nil, errors.New("connection refused") },
	})
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	if _, err := f.Run(context.Background()); err == nil {
		t.Fatalf("expected dial error")
	}
}

func TestNewRequiresHost(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("expected error for empty host")
	}
}

func TestIsDataFile(t *testing.T) {
	yes := []string{"a.csv", "b.CSV", "c.json", "d.xml", "weird.name.csv"}
	no := []string{"", ".hidden.csv", "noext", "archive.zip", "script.sh"}
	for _, n := range yes {
		if !isDataFile(n) {
			t.Fatalf("expected data file: %q", n)
		}
	}
	for _, n := range no {
		if isDataFile(n) {
			t.Fatalf("expected non-data file: %q", n)
		}
	}
}
