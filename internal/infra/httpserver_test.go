package infra

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewHTTPServerAppliesConfig(t *testing.T) {
	cfg := &Config{Port: "9191", HTTPReadTimeout: time.Second, HTTPWriteTimeout: 2 * time.Second, HTTPIdleTimeout: 3 * time.Second}
	var buf bytes.Buffer
	srv := NewHTTPServer(cfg, http.NotFoundHandler(), zerolog.New(&buf))

	if srv.Addr() != ":9191" {
		t.Fatalf("unexpected addr %q", srv.Addr())
	}
	if srv.server.WriteTimeout != 2*time.Second || srv.server.IdleTimeout != 3*time.Second {
		t.Fatalf("timeouts not applied: %+v", srv.server)
	}
	srv.server.ErrorLog.Print("tls: handshake failure")
	if !strings.Contains(buf.String(), "handshake failure") || !strings.Contains(buf.String(), `"component":"http.Server"`) {
		t.Fatalf("server errors not routed to logger: %s", buf.String())
	}
}

func TestStartReturnsNilAfterShutdown(t *testing.T) {
	cfg := &Config{Port: "0"}
	srv := NewHTTPServer(cfg, http.NotFoundHandler(), zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()
	time.Sleep(50 * time.Millisecond)

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v after shutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Start did not return after shutdown")
	}
}
