package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/terradock/terradock"
	"github.com/terradock/terradock/internal/store"
)

// embedded_store: record and query launch history through the public facade.
func main() {
	dir, err := os.MkdirTemp("", "terradock-store-")
	if err != nil {
		panic(err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	st, err := terradock.NewHistoryStore("sqlite://" + filepath.Join(dir, "history.db"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	if err := st.EnsureSchema(ctx); err != nil {
		panic(err)
	}

	// Simulate one app lifecycle the way the launcher records it.
	id, err := st.RecordLaunch(ctx, store.Launch{
		App:       "viewer",
		PID:       4242,
		Port:      8003,
		StartedAt: time.Now().Add(-90 * time.Second),
	})
	if err != nil {
		panic(err)
	}
	if err := st.RecordExit(ctx, id, time.Now(), 0); err != nil {
		panic(err)
	}

	rows, err := st.GetByApp(ctx, "viewer", 10)
	if err != nil {
		panic(err)
	}
	for _, r := range rows {
		fmt.Printf("app=%s pid=%d port=%d running=%v\n", r.App, r.PID, r.Port, r.Running())
	}
}
