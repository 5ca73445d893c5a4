// Package dashboard provides event handling and message formatting for the dashboard.
package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/campusync/campusync/internal/store"
	"github.com/campusync/campusync/internal/syncengine"
)

// Handler bridges sync engine events and the WebSocket server. It
// tracks pending-record statistics and rebroadcasts them after every
// cycle.
type Handler struct {
	server      *Server
	recordStore *store.RecordStore
	owner       string
	role        string
	logger      *log.Logger

	mu    sync.Mutex
	stats StatsData
}

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, recordStore *store.RecordStore, owner, role string, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	return &Handler{
		server:      server,
		recordStore: recordStore,
		owner:       owner,
		role:        role,
		logger:      logger,
		stats: StatsData{
			PendingByCategory: make(map[string]int),
		},
	}
}

// OnSyncResult handles sync cycle completion events. Wire it to the
// daemon's OnSyncResult hook.
func (h *Handler) OnSyncResult(result *syncengine.Result) {
	if result.Offline {
		h.logger.Println("Sync skipped: offline")
		h.broadcastMessage(MessageTypeSyncSkipped, nil)

		h.mu.Lock()
		h.stats.Online = false
		h.mu.Unlock()
		h.refreshStats()
		return
	}

	h.logger.Printf("Sync complete: %d pushed, %d categories failed",
		result.Total(), len(result.FailedCategories))

	data := SyncCompleteData{
		Pushed:           result.Pushed,
		Total:            result.Total(),
		FailedCategories: result.FailedCategories,
		Duration:         result.Duration,
	}
	h.broadcastMessage(MessageTypeSyncComplete, data)

	h.mu.Lock()
	h.stats.Online = true
	h.stats.LastSync = time.Now()
	h.mu.Unlock()
	h.refreshStats()
}

// OnImport handles roster import events.
func (h *Handler) OnImport(source string, imported int) {
	h.logger.Printf("Roster import: %d students from %s", imported, source)

	h.broadcastMessage(MessageTypeImport, ImportData{
		Source:   source,
		Imported: imported,
	})
	h.refreshStats()
}

// refreshStats recounts pending records per category and broadcasts
// the result.
func (h *Handler) refreshStats() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.stats.PendingByCategory = make(map[string]int)
	h.stats.PendingTotal = 0
	for _, category := range syncengine.CategoriesForRole(h.role) {
		pending, err := h.recordStore.PendingSync(ctx, h.owner, category)
		if err != nil {
			h.logger.Printf("Failed to count pending %s records: %v", category, err)
			continue
		}
		h.stats.PendingByCategory[category] = len(pending)
		h.stats.PendingTotal += len(pending)
	}

	h.broadcastMessage(MessageTypeStats, h.stats)
}

// GetStats returns the current statistics
func (h *Handler) GetStats() StatsData {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := h.stats
	stats.PendingByCategory = make(map[string]int, len(h.stats.PendingByCategory))
	for k, v := range h.stats.PendingByCategory {
		stats.PendingByCategory[k] = v
	}
	return stats
}

func (h *Handler) broadcastMessage(msgType MessageType, data any) {
	msg := Message{
		Type:      msgType,
		Timestamp: time.Now(),
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			h.logger.Printf("Failed to marshal %s data: %v", msgType, err)
			return
		}
		msg.Data = raw
	}

	h.server.Broadcast(msg)
}
