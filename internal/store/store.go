package store

import (
	"context"
	"database/sql"
	"time"
)

// Launch is one persisted launch lifecycle row. A row is inserted when a
// child spawns and completed when its exit is reaped; rows whose StoppedAt
// is not set describe children that were running when the launcher last
// wrote. Timestamps are stored in UTC.
type Launch struct {
	ID        int64
	App       string
	PID       int
	Port      int
	StartedAt time.Time
	StoppedAt sql.NullTime
	ExitCode  sql.NullInt64
	UpdatedAt time.Time
}

// Running reports whether the row has no recorded exit.
func (l Launch) Running() bool { return !l.StoppedAt.Valid }

// Store persists launch history. Implementations live in the sqlite and
// postgres subpackages; factory.NewFromDSN selects one by DSN scheme.
type Store interface {
	EnsureSchema(ctx context.Context) error
	// RecordLaunch inserts a row for a freshly spawned child and returns its id.
	RecordLaunch(ctx context.Context, l Launch) (int64, error)
	// RecordExit completes the row with the reaped exit.
	RecordExit(ctx context.Context, id int64, stoppedAt time.Time, exitCode int) error
	GetByApp(ctx context.Context, app string, limit int) ([]Launch, error)
	GetRunning(ctx context.Context) ([]Launch, error)
	// PurgeOlderThan deletes completed rows last touched before the cutoff.
	PurgeOlderThan(ctx context.Context, olderThan time.Time) (int64, error)
	Close() error
}
