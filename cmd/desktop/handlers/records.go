package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/kbrou/agrisync/internal/models"
	syncpkg "github.com/kbrou/agrisync/internal/sync"
)

// RecordsHandler is the screens' save path: every create/update/delete of a
// syncable resource goes through the facade, which decides between a direct
// API call and the offline queue.
type RecordsHandler struct {
	facade *syncpkg.Facade
	hub    Broadcaster
}

// NewRecordsHandler creates a new RecordsHandler.
func NewRecordsHandler(facade *syncpkg.Facade) *RecordsHandler {
	return &RecordsHandler{facade: facade}
}

// SetBroadcaster sets the WebSocket hub for queue-update broadcasts.
func (h *RecordsHandler) SetBroadcaster(hub Broadcaster) {
	h.hub = hub
}

// ServeHTTP routes /api/records/{resource} and /api/records/{resource}/{id}.
//
//	POST   /api/records/{resource}      — create, body = full record
//	PUT    /api/records/{resource}/{id} — update, body = fields (id from path)
//	DELETE /api/records/{resource}/{id} — delete
func (h *RecordsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/records/")
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		http.Error(w, "Resource type is required", http.StatusBadRequest)
		return
	}

	resource := models.ResourceType(parts[0])
	id := ""
	if len(parts) == 2 {
		id = parts[1]
	}

	switch r.Method {
	case http.MethodPost:
		if id != "" {
			http.Error(w, "Create does not take an id", http.StatusBadRequest)
			return
		}
		h.save(w, r, resource, models.ActionCreate, "")

	case http.MethodPut:
		if id == "" {
			http.Error(w, "Update requires an id", http.StatusBadRequest)
			return
		}
		h.save(w, r, resource, models.ActionUpdate, id)

	case http.MethodDelete:
		if id == "" {
			http.Error(w, "Delete requires an id", http.StatusBadRequest)
			return
		}
		h.save(w, r, resource, models.ActionDelete, id)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// save builds the payload and hands the mutation to the facade.
func (h *RecordsHandler) save(w http.ResponseWriter, r *http.Request, resource models.ResourceType, action models.Action, id string) {
	payload, err := buildPayload(r.Body, action, id)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := h.facade.Save(r.Context(), resource, action, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if outcome.Queued {
		// Queued for later sync, not yet persisted remotely.
		status = http.StatusAccepted
		if h.hub != nil {
			if pending, countErr := h.facade.PendingCount(); countErr == nil {
				h.hub.BroadcastQueueUpdated(pending)
			}
		}
	}

	writeJSON(w, status, outcome)
}

// buildPayload reads the request body and, for update and delete, makes sure
// the payload carries the path id the sync engine dispatches on.
func buildPayload(body io.Reader, action models.Action, id string) (json.RawMessage, error) {
	raw, err := io.ReadAll(io.LimitReader(body, 1<<20))
	if err != nil {
		return nil, err
	}

	if action == models.ActionDelete && len(raw) == 0 {
		return json.Marshal(map[string]string{"id": id})
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	if id != "" {
		fields["id"] = id
	}
	return json.Marshal(fields)
}
