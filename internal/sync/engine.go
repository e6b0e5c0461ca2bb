// Package sync provides the offline-queue synchronization engine and the
// client facade application screens use to persist mutations.
package sync

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/kbrou/agrisync/internal/errors"
	"github.com/kbrou/agrisync/internal/logging"
	"github.com/kbrou/agrisync/internal/models"
	"github.com/kbrou/agrisync/internal/sync/queue"
)

// RemoteAPI is the slice of the central API the engine depends on.
// Implemented by api.Client; faked in tests.
type RemoteAPI interface {
	Create(ctx context.Context, resource models.ResourceType, payload json.RawMessage) error
	Update(ctx context.Context, resource models.ResourceType, id string, payload json.RawMessage) error
	Delete(ctx context.Context, resource models.ResourceType, id string) error
}

// SyncEventType identifies a sync lifecycle event.
type SyncEventType string

const (
	SyncEventStarted    SyncEventType = "started"
	SyncEventItemSynced SyncEventType = "item_synced"
	SyncEventItemFailed SyncEventType = "item_failed"
	SyncEventCompleted  SyncEventType = "completed"
)

// SyncEvent carries one lifecycle notification to the event handler.
type SyncEvent struct {
	Type   SyncEventType
	ItemID string
	Error  string
	Result *SyncResult
}

// SyncEventHandler receives engine lifecycle events, e.g. for WebSocket
// fan-out to the UI shell. Events are delivered synchronously in emission
// order; handlers must not block.
type SyncEventHandler interface {
	OnSyncEvent(event SyncEvent)
}

// ItemFailure records one failed delivery within a pass.
type ItemFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// SyncResult represents the outcome of one full sync pass. Ephemeral; never
// persisted.
type SyncResult struct {
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Failures  []ItemFailure `json:"failures,omitempty"`
	Skipped   bool          `json:"skipped"` // true when another pass was already running
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
}

// Engine drains the pending-operation queue against the remote API.
//
// A pass processes the unsynced set in insertion order with per-item
// isolation: one failure is recorded on the item and never halts the rest.
// Failed items carry no backoff or attempt cap; they are simply retried on
// the next pass.
type Engine struct {
	store *queue.Store
	api   RemoteAPI

	inFlight int32 // single-flight guard, atomic
	handler  SyncEventHandler
	now      func() time.Time
}

// NewEngine creates an Engine over the queue store and remote API.
func NewEngine(store *queue.Store, api RemoteAPI) *Engine {
	return &Engine{
		store: store,
		api:   api,
		now:   time.Now,
	}
}

// SetEventHandler registers the lifecycle event handler. A nil handler
// disables event emission.
func (e *Engine) SetEventHandler(handler SyncEventHandler) {
	e.handler = handler
}

// emitEvent delivers an event to the handler, if one is registered.
func (e *Engine) emitEvent(event SyncEvent) {
	if e.handler == nil {
		return
	}
	e.handler.OnSyncEvent(event)
}

// InProgress reports whether a pass is currently running.
func (e *Engine) InProgress() bool {
	return atomic.LoadInt32(&e.inFlight) == 1
}

// SyncAll attempts delivery of every unsynced operation, once each.
//
// If a pass is already running the call returns immediately with a
// zero-valued result marked Skipped; it never starts a second drain.
// An empty unsynced set is a no-op, not an error, and makes zero API calls.
func (e *Engine) SyncAll(ctx context.Context) (*SyncResult, error) {
	if !atomic.CompareAndSwapInt32(&e.inFlight, 0, 1) {
		return &SyncResult{Skipped: true}, nil
	}
	defer atomic.StoreInt32(&e.inFlight, 0)

	result := &SyncResult{StartTime: e.now()}
	defer func() {
		result.EndTime = e.now()
		result.Duration = result.EndTime.Sub(result.StartTime)
	}()

	ops, err := e.store.ListUnsynced()
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return result, nil
	}

	logging.Info("Sync pass started", map[string]interface{}{"pending": len(ops)})
	e.emitEvent(SyncEvent{Type: SyncEventStarted})

	for _, op := range ops {
		result.Attempted++

		if err := e.deliver(ctx, &op); err != nil {
			message := err.Error()
			result.Failed++
			result.Failures = append(result.Failures, ItemFailure{ID: op.ID, Error: message})

			// The item stays in the store, unsynced, with the error noted.
			if storeErr := e.store.Update(op.ID, models.OperationPatch{LastError: &message}); storeErr != nil {
				logging.Error("Failed to record sync error on operation", storeErr,
					map[string]interface{}{"operation_id": op.ID})
			}

			logging.ErrorWithCode("Operation sync failed", string(errors.CodeOf(err)), err,
				map[string]interface{}{"operation_id": op.ID})
			e.emitEvent(SyncEvent{Type: SyncEventItemFailed, ItemID: op.ID, Error: message})
			continue
		}

		synced := true
		noError := ""
		if storeErr := e.store.Update(op.ID, models.OperationPatch{Synced: &synced, LastError: &noError}); storeErr != nil {
			// The server accepted the mutation but we could not mark it; the
			// item will be replayed on the next pass. Surface it as a failure
			// so the caller knows the store is misbehaving.
			result.Failed++
			result.Failures = append(result.Failures, ItemFailure{ID: op.ID, Error: storeErr.Error()})
			logging.Error("Failed to mark operation synced", storeErr,
				map[string]interface{}{"operation_id": op.ID})
			continue
		}

		result.Succeeded++
		e.emitEvent(SyncEvent{Type: SyncEventItemSynced, ItemID: op.ID})
	}

	if result.Succeeded > 0 {
		if err := e.store.SetLastSyncAt(e.now()); err != nil {
			logging.Error("Failed to record last-sync timestamp", err)
		}
	}

	logging.Info("Sync pass completed", map[string]interface{}{
		"attempted": result.Attempted,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	})
	e.emitEvent(SyncEvent{Type: SyncEventCompleted, Result: result})

	return result, nil
}

// deliver dispatches one operation to the corresponding API call.
func (e *Engine) deliver(ctx context.Context, op *models.PendingOperation) error {
	return Deliver(ctx, e.api, op.ResourceType, op.Action, op.Payload)
}

// Deliver dispatches a (resource, action, payload) mutation to the remote
// API. Unknown resource types or actions are reported as per-item errors;
// the closed sets in the models package make them impossible to enqueue
// through the facade, but records written by older builds may still carry
// them.
func Deliver(ctx context.Context, client RemoteAPI, resource models.ResourceType, action models.Action, payload json.RawMessage) error {
	if !resource.IsValid() {
		return errors.New(errors.ErrInvalidResource,
			"no dispatch target for resource type "+string(resource))
	}

	switch action {
	case models.ActionCreate:
		return client.Create(ctx, resource, payload)
	case models.ActionUpdate:
		return client.Update(ctx, resource, payloadID(payload), payload)
	case models.ActionDelete:
		return client.Delete(ctx, resource, payloadID(payload))
	default:
		return errors.New(errors.ErrInvalidAction,
			"no dispatch target for action "+string(action))
	}
}

// payloadID extracts the "id" field update and delete dispatch on.
func payloadID(payload json.RawMessage) string {
	op := models.PendingOperation{Payload: payload}
	return op.PayloadID()
}
