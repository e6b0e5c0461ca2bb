// Package kvstore tests covering both the in-memory and SQLite stores.
package kvstore

import (
	"errors"
	"testing"
)

// storeFactory builds a fresh store for the shared contract tests.
type storeFactory func(t *testing.T) Store

func storeImplementations() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(t.TempDir())
			if err != nil {
				t.Fatalf("OpenSQLite failed: %v", err)
			}
			return s
		},
	}
}

// TestStoreContract runs the Store contract against every implementation.
func TestStoreContract(t *testing.T) {
	for name, factory := range storeImplementations() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()

			// Missing key: found=false, no error
			_, found, err := s.Get("missing")
			if err != nil {
				t.Fatalf("Get(missing) error: %v", err)
			}
			if found {
				t.Error("Get(missing) found = true, want false")
			}

			// Set then Get
			if err := s.Set("queue", `[{"id":"a"}]`); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			value, found, err := s.Get("queue")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if !found {
				t.Fatal("Get found = false after Set")
			}
			if value != `[{"id":"a"}]` {
				t.Errorf("Get = %q, want stored value", value)
			}

			// Overwrite
			if err := s.Set("queue", `[]`); err != nil {
				t.Fatalf("Set (overwrite) failed: %v", err)
			}
			value, _, _ = s.Get("queue")
			if value != `[]` {
				t.Errorf("Get after overwrite = %q, want %q", value, `[]`)
			}

			// Delete, and delete of a missing key is not an error
			if err := s.Delete("queue"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, found, _ := s.Get("queue"); found {
				t.Error("key still found after Delete")
			}
			if err := s.Delete("queue"); err != nil {
				t.Errorf("Delete of missing key = %v, want nil", err)
			}
		})
	}
}

// TestSQLitePersistence verifies values survive a close and reopen,
// simulating a process restart on a field device.
func TestSQLitePersistence(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	if err := s.Set("sync_queue/operations", `[{"id":"op-1"}]`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	value, found, err := reopened.Get("sync_queue/operations")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if !found {
		t.Fatal("value not found after reopen")
	}
	if value != `[{"id":"op-1"}]` {
		t.Errorf("Get after reopen = %q, want stored value", value)
	}
}

// TestMemoryFailWrites verifies the quota-failure simulation used by
// higher-level tests.
func TestMemoryFailWrites(t *testing.T) {
	s := NewMemoryStore()
	quota := errors.New("quota exceeded")
	s.FailWrites = quota

	if err := s.Set("k", "v"); !errors.Is(err, quota) {
		t.Errorf("Set = %v, want quota error", err)
	}
	if _, found, _ := s.Get("k"); found {
		t.Error("failed Set must not store the value")
	}
}

// TestMemoryClosed verifies operations fail after Close.
func TestMemoryClosed(t *testing.T) {
	s := NewMemoryStore()
	s.Close()

	if err := s.Set("k", "v"); !errors.Is(err, ErrClosed) {
		t.Errorf("Set after Close = %v, want ErrClosed", err)
	}
	if _, _, err := s.Get("k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get after Close = %v, want ErrClosed", err)
	}
}
