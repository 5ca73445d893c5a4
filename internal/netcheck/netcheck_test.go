package netcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStatic(t *testing.T) {
	ctx := context.Background()

	if !Static(true).Online(ctx) {
		t.Error("Static(true) should report online")
	}
	if Static(false).Online(ctx) {
		t.Error("Static(false) should report offline")
	}
}

func TestProbeReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewProbe(srv.URL, time.Second)
	if !p.Online(context.Background()) {
		t.Error("expected probe against live server to report online")
	}
}

func TestProbeFailClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	p := NewProbe(srv.URL, 500*time.Millisecond)
	if p.Online(context.Background()) {
		t.Error("expected probe against dead server to report offline")
	}
}

func TestProbeServerErrorIsOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewProbe(srv.URL, time.Second)
	if p.Online(context.Background()) {
		t.Error("expected 5xx probe response to report offline")
	}
}
