package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/terradock/terradock/internal/store"
)

// DB implements store.Store for PostgreSQL through the pgx stdlib driver.
type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS launch_history(
			id BIGSERIAL PRIMARY KEY,
			app TEXT NOT NULL,
			pid INTEGER NOT NULL,
			port INTEGER NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			stopped_at TIMESTAMPTZ NULL,
			exit_code INTEGER NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_launch_history_app ON launch_history(app);`,
		`CREATE INDEX IF NOT EXISTS idx_launch_history_stopped ON launch_history(stopped_at);`,
	}
	for _, q := range stmts {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (p *DB) Close() error { return p.db.Close() }

func (p *DB) RecordLaunch(ctx context.Context, l store.Launch) (int64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO launch_history(app, pid, port, started_at, stopped_at, exit_code, updated_at)
		VALUES($1,$2,$3,$4,NULL,NULL,$5)
		RETURNING id;`,
		l.App, l.PID, l.Port, l.StartedAt.UTC(), time.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (p *DB) RecordExit(ctx context.Context, id int64, stoppedAt time.Time, exitCode int) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE launch_history
		SET stopped_at=$1, exit_code=$2, updated_at=$3
		WHERE id=$4;`,
		stoppedAt.UTC(), exitCode, time.Now().UTC(), id)
	return err
}

func (p *DB) GetByApp(ctx context.Context, app string, limit int) ([]store.Launch, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, app, pid, port, started_at, stopped_at, exit_code, updated_at
		FROM launch_history
		WHERE app=$1
		ORDER BY started_at DESC
		LIMIT $2;`, app, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanLaunches(rows)
}

func (p *DB) GetRunning(ctx context.Context) ([]store.Launch, error) {
	rows, err := p.db.QueryContext(ctx, `
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

func (p *DB) PurgeOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx, `
		DELETE FROM launch_history
		WHERE stopped_at IS NOT NULL AND updated_at < $1;`, olderThan.UTC())
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
