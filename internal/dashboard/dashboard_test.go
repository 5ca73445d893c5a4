package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/campusync/campusync/internal/kv"
	"github.com/campusync/campusync/internal/store"
	"github.com/campusync/campusync/internal/syncengine"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()

	config := &Config{
		Port:   0, // Use random available port
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	}
	server := NewServer(config)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	return server
}

func TestServerStartStop(t *testing.T) {
	server := startTestServer(t)

	if addr := server.GetAddr(); addr == "" {
		t.Fatal("Server address is empty")
	}

	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestWebSocketConnection(t *testing.T) {
	server := startTestServer(t)
	defer server.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws://" + server.GetAddr() + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if count := server.ClientCount(); count != 1 {
		t.Errorf("Expected 1 client, got %d", count)
	}

	// Read welcome message
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read welcome message: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if msg.Type != MessageTypeStats {
		t.Errorf("Expected welcome message type %s, got %s", MessageTypeStats, msg.Type)
	}
}

func TestHandlerBroadcastsSyncComplete(t *testing.T) {
	server := startTestServer(t)
	defer server.Stop()

	recordStore := store.New(kv.NewMemory())
	handler := NewHandler(server, recordStore, "staff-1", "staff", log.New(os.Stderr, "[test] ", 0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws://" + server.GetAddr() + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Drain the welcome message
	if _, _, err := conn.Read(ctx); err != nil {
		t.Fatalf("Failed to read welcome message: %v", err)
	}

	handler.OnSyncResult(&syncengine.Result{
		Pushed:   map[string]int{"students": 2, "attendance": 1},
		Duration: 42 * time.Millisecond,
	})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if msg.Type != MessageTypeSyncComplete {
		t.Fatalf("Expected %s, got %s", MessageTypeSyncComplete, msg.Type)
	}

	var payload SyncCompleteData
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatalf("Failed to unmarshal payload: %v", err)
	}
	if payload.Total != 3 {
		t.Errorf("Expected total 3, got %d", payload.Total)
	}
	if payload.Duration != 42*time.Millisecond {
		t.Errorf("Expected cycle duration in payload, got %v", payload.Duration)
	}
}

func TestHandlerBroadcastsImport(t *testing.T) {
	server := startTestServer(t)
	defer server.Stop()

	recordStore := store.New(kv.NewMemory())
	handler := NewHandler(server, recordStore, "staff-1", "staff", log.New(os.Stderr, "[test] ", 0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws://" + server.GetAddr() + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Drain the welcome message
	if _, _, err := conn.Read(ctx); err != nil {
		t.Fatalf("Failed to read welcome message: %v", err)
	}

	handler.OnImport("batch2026.json", 2)

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if msg.Type != MessageTypeImport {
		t.Fatalf("Expected %s, got %s", MessageTypeImport, msg.Type)
	}

	var payload ImportData
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatalf("Failed to unmarshal payload: %v", err)
	}
	if payload.Source != "batch2026.json" || payload.Imported != 2 {
		t.Errorf("Unexpected import payload: %+v", payload)
	}
}

func TestHandlerTracksPendingStats(t *testing.T) {
	server := startTestServer(t)
	defer server.Stop()

	recordStore := store.New(kv.NewMemory())
	ctx := context.Background()

	if _, err := recordStore.Save(ctx, "staff-1", "attendance", "R001",
		map[string]any{"studentId": "R001"}, false); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := recordStore.Save(ctx, "staff-1", "students", "R001",
		map[string]any{"registerNo": "R001"}, true); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	handler := NewHandler(server, recordStore, "staff-1", "staff", log.New(os.Stderr, "[test] ", 0))
	handler.OnSyncResult(&syncengine.Result{Offline: true})

	stats := handler.GetStats()
	if stats.Online {
		t.Error("offline result should mark stats offline")
	}
	if stats.PendingByCategory["attendance"] != 1 {
		t.Errorf("Expected 1 pending attendance record, got %d", stats.PendingByCategory["attendance"])
	}
	if stats.PendingByCategory["students"] != 0 {
		t.Errorf("Synced records must not count as pending, got %d", stats.PendingByCategory["students"])
	}
	if stats.PendingTotal != 1 {
		t.Errorf("Expected pending total 1, got %d", stats.PendingTotal)
	}
}
