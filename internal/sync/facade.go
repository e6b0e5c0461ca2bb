package sync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kbrou/agrisync/internal/errors"
	"github.com/kbrou/agrisync/internal/logging"
	"github.com/kbrou/agrisync/internal/models"
	"github.com/kbrou/agrisync/internal/sync/queue"
	"github.com/kbrou/agrisync/internal/uuid"
)

// ConnectivitySource exposes the current best-known connectivity state.
// Implemented by connectivity.Monitor.
type ConnectivitySource interface {
	IsOnline() bool
}

// SaveOutcome tells the caller whether the mutation reached the server now
// or was queued for a later sync pass, so screens can show the right message.
type SaveOutcome struct {
	Queued      bool   `json:"queued"`
	OperationID string `json:"operation_id,omitempty"` // set only when queued
}

// Facade is the single entry point screens use to persist a mutation without
// knowing whether the device is connected.
type Facade struct {
	monitor ConnectivitySource
	store   *queue.Store
	api     RemoteAPI
	engine  *Engine
	now     func() time.Time
}

// NewFacade wires the facade over its collaborators.
func NewFacade(monitor ConnectivitySource, store *queue.Store, api RemoteAPI, engine *Engine) *Facade {
	return &Facade{
		monitor: monitor,
		store:   store,
		api:     api,
		engine:  engine,
		now:     time.Now,
	}
}

// Save persists one mutation. Online, the remote API is called directly and
// its result returned unchanged — nothing is written to the queue. Offline,
// the mutation is appended to the queue and the outcome is marked Queued; if
// the queue write fails, the error propagates and the caller must treat the
// mutation as not enqueued.
func (f *Facade) Save(ctx context.Context, resource models.ResourceType, action models.Action, payload json.RawMessage) (*SaveOutcome, error) {
	if !resource.IsValid() {
		return nil, errors.New(errors.ErrInvalidResource,
			"unknown resource type "+string(resource))
	}
	if !action.IsValid() {
		return nil, errors.New(errors.ErrInvalidAction,
			"unknown action "+string(action))
	}

	if f.monitor.IsOnline() {
		if err := Deliver(ctx, f.api, resource, action, payload); err != nil {
			return nil, err
		}
		return &SaveOutcome{}, nil
	}

	op := models.PendingOperation{
		ID:           uuid.OperationID(string(resource), string(action), f.now()),
		ResourceType: resource,
		Action:       action,
		Payload:      payload,
		CreatedAt:    f.now().UnixMilli(),
	}

	if err := f.store.Append(op); err != nil {
		return nil, err
	}

	logging.Info("Mutation queued for later sync", map[string]interface{}{
		"operation_id": op.ID,
		"resource":     string(resource),
		"action":       string(action),
	})
	return &SaveOutcome{Queued: true, OperationID: op.ID}, nil
}

// PendingCount returns the number of unsynced operations, for badge display.
func (f *Facade) PendingCount() (int, error) {
	return f.store.PendingCount()
}

// LastSyncAt returns the timestamp of the last successful sync, or
// found=false if no pass has succeeded yet.
func (f *Facade) LastSyncAt() (time.Time, bool, error) {
	return f.store.LastSyncAt()
}

// TriggerSync runs an explicit user-initiated pass on the same engine the
// connectivity monitor drives.
func (f *Facade) TriggerSync(ctx context.Context) (*SyncResult, error) {
	return f.engine.SyncAll(ctx)
}

// SyncInProgress reports whether a pass is currently draining the queue.
func (f *Facade) SyncInProgress() bool {
	return f.engine.InProgress()
}

// ListQueue returns every queued operation, synced or not, in insertion order.
func (f *Facade) ListQueue() ([]models.PendingOperation, error) {
	return f.store.List()
}

// ExportQueue returns the full queue as a JSON blob for manual backup.
func (f *Facade) ExportQueue() ([]byte, error) {
	return f.store.Export()
}

// DeleteQueued discards one queued mutation permanently, online or not.
func (f *Facade) DeleteQueued(id string) error {
	return f.store.Remove(id)
}

// CleanupSynced purges every operation already accepted by the server and
// returns how many were removed.
func (f *Facade) CleanupSynced() (int, error) {
	return f.store.RemoveAllSynced()
}

// IsOnline exposes the monitor's current state to the UI.
func (f *Facade) IsOnline() bool {
	return f.monitor.IsOnline()
}
