// Package queue provides durable storage for pending offline operations.
//
// The store keeps the whole queue as one JSON-encoded array under a single
// key of the backing key-value store, so every mutation is a full read and
// rewrite. Queue sizes in the field stay in the tens to low hundreds of
// items, which keeps that acceptable; an in-process mutex serializes all
// mutations so an append racing a draining sync pass cannot lose a write.
package queue

import (
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/kbrou/agrisync/internal/errors"
	"github.com/kbrou/agrisync/internal/kvstore"
	"github.com/kbrou/agrisync/internal/models"
)

// Key layout in the backing store.
const (
	operationsKey = "sync_queue/operations"
	lastSyncKey   = "sync_queue/last_sync_at"
)

// Store provides CRUD over the collection of pending operations.
type Store struct {
	kv kvstore.Store
	mu sync.Mutex
}

// NewStore creates a Store over the given key-value substrate.
func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

// load reads and decodes the full collection. Callers must hold s.mu.
// A missing key decodes to an empty queue, never an error.
func (s *Store) load() ([]models.PendingOperation, error) {
	raw, found, err := s.kv.Get(operationsKey)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to read queue", err)
	}
	if !found || raw == "" {
		return []models.PendingOperation{}, nil
	}

	var ops []models.PendingOperation
	if err := json.Unmarshal([]byte(raw), &ops); err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "queue data is corrupt", err)
	}
	return ops, nil
}

// save encodes and rewrites the full collection. Callers must hold s.mu.
func (s *Store) save(ops []models.PendingOperation) error {
	data, err := json.Marshal(ops)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to encode queue", err)
	}
	if err := s.kv.Set(operationsKey, string(data)); err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to write queue", err)
	}
	return nil
}

// Append adds an operation at the end of the queue.
// If the underlying write fails the operation is NOT enqueued and the
// storage error propagates to the caller.
func (s *Store) Append(op models.PendingOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops, err := s.load()
	if err != nil {
		return err
	}

	ops = append(ops, op)
	if err := s.save(ops); err != nil {
		return err
	}

	log.Printf("[QueueStore] Enqueued %s %s operation %s", op.Action, op.ResourceType, op.ID)
	return nil
}

// List returns all records in insertion order. An empty store yields an
// empty slice, never an error.
func (s *Store) List() ([]models.PendingOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// ListUnsynced returns the records still awaiting delivery, in insertion order.
func (s *Store) ListUnsynced() ([]models.PendingOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops, err := s.load()
	if err != nil {
		return nil, err
	}

	unsynced := make([]models.PendingOperation, 0, len(ops))
	for _, op := range ops {
		if !op.Synced {
			unsynced = append(unsynced, op)
		}
	}
	return unsynced, nil
}

// PendingCount returns the number of unsynced operations.
func (s *Store) PendingCount() (int, error) {
	unsynced, err := s.ListUnsynced()
	if err != nil {
		return 0, err
	}
	return len(unsynced), nil
}

// Update applies a field-level patch to the record with the given id.
// A missing id is a no-op, not an error.
func (s *Store) Update(id string, patch models.OperationPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops, err := s.load()
	if err != nil {
		return err
	}

	for i := range ops {
		if ops[i].ID == id {
			patch.Apply(&ops[i])
			return s.save(ops)
		}
	}
	return nil
}

// Remove deletes the record with the given id. A missing id is a no-op.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops, err := s.load()
	if err != nil {
		return err
	}

	for i := range ops {
		if ops[i].ID == id {
			ops = append(ops[:i], ops[i+1:]...)
			if err := s.save(ops); err != nil {
				return err
			}
			log.Printf("[QueueStore] Removed operation %s", id)
			return nil
		}
	}
	return nil
}

// RemoveAllSynced deletes every record already accepted by the server and
// returns how many were purged.
func (s *Store) RemoveAllSynced() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops, err := s.load()
	if err != nil {
		return 0, err
	}

	kept := ops[:0]
	removed := 0
	for _, op := range ops {
		if op.Synced {
			removed++
			continue
		}
		kept = append(kept, op)
	}

	if removed == 0 {
		return 0, nil
	}
	if err := s.save(kept); err != nil {
		return 0, err
	}

	log.Printf("[QueueStore] Purged %d synced operations", removed)
	return removed, nil
}

// Clear deletes the entire collection and the last-sync timestamp.
// Used for full reset / logout.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(operationsKey); err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to clear queue", err)
	}
	if err := s.kv.Delete(lastSyncKey); err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to clear last-sync timestamp", err)
	}

	log.Printf("[QueueStore] Queue cleared")
	return nil
}

// Export returns the full queue as an indented JSON blob for manual backup.
func (s *Store) Export() ([]byte, error) {
	ops, err := s.List()
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(ops, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to encode queue export", err)
	}
	return data, nil
}

// LastSyncAt returns the last successful sync time, or found=false if no
// pass has succeeded yet. The value is stored as epoch milliseconds.
func (s *Store) LastSyncAt() (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, found, err := s.kv.Get(lastSyncKey)
	if err != nil {
		return time.Time{}, false, errors.Wrap(errors.ErrStorage, "failed to read last-sync timestamp", err)
	}
	if !found || raw == "" {
		return time.Time{}, false, nil
	}

	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, errors.Wrap(errors.ErrStorage, "last-sync timestamp is corrupt", err)
	}
	return time.UnixMilli(millis), true, nil
}

// SetLastSyncAt records the completion time of a successful pass.
func (s *Store) SetLastSyncAt(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(lastSyncKey, strconv.FormatInt(t.UnixMilli(), 10)); err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to write last-sync timestamp", err)
	}
	return nil
}
