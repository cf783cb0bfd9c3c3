package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/terradock/terradock/internal/store"
)

// DB implements store.Store for SQLite (modernc.org/sqlite driver, CGO-free).
// Path is a filesystem path to the database file; use ":memory:" for
// in-memory.
type DB struct {
	db *sql.DB
}

// New opens a SQLite database at path.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS launch_history(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			app TEXT NOT NULL,
			pid INTEGER NOT NULL,
			port INTEGER NOT NULL,
			started_at TIMESTAMP NOT NULL,
			stopped_at TIMESTAMP NULL,
			exit_code INTEGER NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_launch_history_app ON launch_history(app);`,
		`CREATE INDEX IF NOT EXISTS idx_launch_history_stopped ON launch_history(stopped_at);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) RecordLaunch(ctx context.Context, l store.Launch) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO launch_history(app, pid, port, started_at, stopped_at, exit_code, updated_at)
		VALUES(?, ?, ?, ?, NULL, NULL, ?);`,
		l.App, l.PID, l.Port, l.StartedAt.UTC(), now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *DB) RecordExit(ctx context.Context, id int64, stoppedAt time.Time, exitCode int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE launch_history
		SET stopped_at=?, exit_code=?, updated_at=?
		WHERE id=?;`,
		stoppedAt.UTC(), exitCode, time.Now().UTC(), id)
	return err
}

func (s *DB) GetByApp(ctx context.Context, app string, limit int) ([]store.Launch, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, app, pid, port, started_at, stopped_at, exit_code, updated_at
		FROM launch_history
		WHERE app=?
		ORDER BY started_at DESC
		LIMIT ?;`, app, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanLaunches(rows)
}

func (s *DB) GetRunning(ctx context.Context) ([]store.Launch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, app, pid, port, started_at, stopped_at, exit_code, updated_at
		FROM launch_history
		WHERE stopped_at IS NULL
		ORDER BY started_at DESC;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanLaunches(rows)
}

func (s *DB) PurgeOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM launch_history
		WHERE stopped_at IS NOT NULL AND updated_at < ?;`, olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanLaunches(rows *sql.Rows) ([]store.Launch, error) {
	out := make([]store.Launch, 0)
	for rows.Next() {
		var l store.Launch
		if err := rows.Scan(&l.ID, &l.App, &l.PID, &l.Port, &l.StartedAt, &l.StoppedAt, &l.ExitCode, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
