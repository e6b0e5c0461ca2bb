// Package handlers provides the localhost REST API the UI shell talks to.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kbrou/agrisync/internal/connectivity"
	apperrors "github.com/kbrou/agrisync/internal/errors"
	syncpkg "github.com/kbrou/agrisync/internal/sync"
)

// Broadcaster pushes queue and connectivity updates to connected shells.
type Broadcaster interface {
	BroadcastConnectivityChanged(online bool)
	BroadcastQueueUpdated(pending int)
}

// SyncHandler serves sync status, manual sync, and queue management.
type SyncHandler struct {
	facade  *syncpkg.Facade
	monitor *connectivity.Monitor
	hub     Broadcaster
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(facade *syncpkg.Facade, monitor *connectivity.Monitor) *SyncHandler {
	return &SyncHandler{
		facade:  facade,
		monitor: monitor,
	}
}

// SetBroadcaster sets the WebSocket hub for update broadcasts.
func (h *SyncHandler) SetBroadcaster(hub Broadcaster) {
	h.hub = hub
}

// broadcastQueueUpdated pushes the fresh pending count, if a hub is attached.
func (h *SyncHandler) broadcastQueueUpdated() {
	if h.hub == nil {
		return
	}
	if pending, err := h.facade.PendingCount(); err == nil {
		h.hub.BroadcastQueueUpdated(pending)
	}
}

// GetStatus handles GET /api/sync/status
// Returns online flag, pending count, last-sync timestamp, in-progress flag.
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pending, err := h.facade.PendingCount()
	if err != nil {
		writeError(w, err)
		return
	}

	response := map[string]interface{}{
		"online":           h.facade.IsOnline(),
		"pending":          pending,
		"sync_in_progress": h.facade.SyncInProgress(),
	}

	if lastSync, found, err := h.facade.LastSyncAt(); err == nil && found {
		response["last_sync"] = lastSync.UnixMilli()
	}

	writeJSON(w, http.StatusOK, response)
}

// TriggerSync handles POST /api/sync/now
// Runs an explicit user-initiated sync pass and returns the SyncResult.
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := h.facade.TriggerSync(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcastQueueUpdated()
	writeJSON(w, http.StatusOK, result)
}

// GetQueue handles GET /api/sync/queue
// Returns every queued operation with its sync state and last error.
func (h *SyncHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ops, err := h.facade.ListQueue()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"operations": ops,
		"count":      len(ops),
	})
}

// ExportQueue handles GET /api/sync/queue/export
// Returns the full queue as a downloadable JSON blob for manual backup.
func (h *SyncHandler) ExportQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	blob, err := h.facade.ExportQueue()
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="sync-queue.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(blob)
}

// DeleteQueueItem handles DELETE /api/sync/queue/{id}
// Discards one queued mutation permanently.
func (h *SyncHandler) DeleteQueueItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/sync/queue/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "Operation id is required", http.StatusBadRequest)
		return
	}

	if err := h.facade.DeleteQueued(id); err != nil {
		writeError(w, err)
		return
	}

	h.broadcastQueueUpdated()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "deleted",
		"id":     id,
	})
}

// CleanupQueue handles POST /api/sync/queue/cleanup
// Purges every operation already accepted by the server.
func (h *SyncHandler) CleanupQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	removed, err := h.facade.CleanupSynced()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "cleaned",
		"removed": removed,
	})
}

// ReportConnectivity handles POST /api/connectivity
// The platform shell pushes connectivity-change notifications here.
func (h *SyncHandler) ReportConnectivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		Online *bool `json:"online"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.Online == nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.monitor.SetOnline(*request.Online)
	if h.hub != nil {
		h.hub.BroadcastConnectivityChanged(*request.Online)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"online": *request.Online,
	})
}

// writeJSON encodes a JSON response.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps application error codes to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.CodeOf(err) {
	case apperrors.ErrInvalid, apperrors.ErrInvalidResource, apperrors.ErrInvalidAction, apperrors.ErrValidation:
		status = http.StatusBadRequest
	case apperrors.ErrNotFound, apperrors.ErrOperationNotFound:
		status = http.StatusNotFound
	case apperrors.ErrNetwork:
		status = http.StatusServiceUnavailable
	case apperrors.ErrServerRejected:
		status = http.StatusBadGateway
	}
	http.Error(w, err.Error(), status)
}
