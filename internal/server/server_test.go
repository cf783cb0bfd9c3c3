package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestServerStartReadyShutdown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg, _ := newTestRegistry(t)
	r := NewRouter(reg, Options{BasePath: "/api"})
	s := NewServer("127.0.0.1:0", r, reg, nil, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Ready must be closed once Start returned.
	select {
	case <-s.Ready():
	default:
		t.Fatalf("ready channel not closed after Start")
	}

	resp, err := http.Get("http://" + s.Addr() + "/api/apps")
	if err != nil {
		t.Fatalf("get apps: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, err := http.Get("http://" + s.Addr() + "/api/apps"); err == nil {
		t.Fatalf("expected connection failure after shutdown")
	}
}
