package connectivity

import (
	"sync"

	"go.uber.org/zap"
)

// Monitor keeps the binary online/offline state derived from reachability signals.
// Each genuine transition fires the reconnect or disconnect callbacks exactly once;
// repeated signals of the current state are ignored.
type Monitor struct {
	logger *zap.Logger

	mu     sync.RWMutex
	online bool

	// dispatchMu orders callback dispatch so that callbacks observe transitions
	// in the order they were reported.
	dispatchMu   sync.Mutex
	onReconnect  []func()
	onDisconnect []func()
}

// NewMonitor creates a monitor in the given initial state. No callback fires for it.
func NewMonitor(initialOnline bool, logger *zap.Logger) *Monitor {
	return &Monitor{
		logger: logger,
		online: initialOnline,
	}
}

// OnReconnect registers fn to run on every offline to online transition.
func (m *Monitor) OnReconnect(fn func()) {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()
	m.onReconnect = append(m.onReconnect, fn)
}

// OnDisconnect registers fn to run on every online to offline transition.
func (m *Monitor) OnDisconnect(fn func()) {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()
	m.onDisconnect = append(m.onDisconnect, fn)
}

// Online returns the current state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Report feeds a reachability signal and reports whether it changed the state.
// Callbacks run synchronously and must not call Report.
func (m *Monitor) Report(online bool) bool {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if !changed {
		return false
	}

	callbacks := m.onDisconnect
	if online {
		m.logger.Info("connection restored")
		callbacks = m.onReconnect
	} else {
		m.logger.Warn("connection lost, working offline")
	}
	for _, fn := range callbacks {
		fn()
	}
	return true
}
