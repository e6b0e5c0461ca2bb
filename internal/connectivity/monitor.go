// Package connectivity tracks the device's online/offline state.
//
// The platform shell pushes connectivity-change notifications into the
// monitor; nothing is polled. On the offline-to-online edge — and only on
// that edge — the monitor fires the restore hook so the sync engine can
// drain the queue, and only when pending work exists. The monitor owns no
// retry scheduling beyond that single trigger.
package connectivity

import (
	"sync"

	"github.com/kbrou/agrisync/internal/logging"
)

// Monitor holds the current best-known connectivity state.
type Monitor struct {
	mu     sync.RWMutex
	online bool

	pendingCount func() (int, error)
	onRestore    func()
}

// NewMonitor creates a Monitor seeded from the platform's connectivity
// signal at startup. pendingCount reports outstanding queue work; it gates
// the restore trigger.
func NewMonitor(initialOnline bool, pendingCount func() (int, error)) *Monitor {
	return &Monitor{
		online:       initialOnline,
		pendingCount: pendingCount,
	}
}

// OnRestore registers the hook fired on the offline-to-online edge.
// Set once during wiring, before notifications start arriving.
func (m *Monitor) OnRestore(hook func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRestore = hook
}

// IsOnline returns the current best-known connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// SetOnline records a connectivity-change notification from the platform.
// Repeated online notifications do not re-fire the restore hook.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	hook := m.onRestore
	m.mu.Unlock()

	if wasOnline == online {
		return
	}

	logging.Info("Connectivity changed", map[string]interface{}{
		"was_online": wasOnline,
		"is_online":  online,
	})

	if !online || hook == nil {
		return
	}

	// Offline -> online edge: trigger a drain only if there is queued work.
	pending, err := m.pendingCount()
	if err != nil {
		logging.Error("Failed to read pending count on connectivity restore", err)
		return
	}
	if pending == 0 {
		return
	}

	logging.Info("Connectivity restored, triggering sync", map[string]interface{}{
		"pending": pending,
	})
	go hook()
}
