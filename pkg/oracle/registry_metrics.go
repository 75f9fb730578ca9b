package oracle

import (
	"sync"
	"time"
)

// RegistryMetrics tracks registry activity counters
type RegistryMetrics struct {
	registered  int64
	deactivated int64
	lastUpdate  time.Time
	mu          sync.RWMutex
}

// RegistryStats represents registry statistics
type RegistryStats struct {
	ActiveOracles     int
	KnownOracles      int
	AverageReputation float64
	Registered        int64
	Deactivated       int64
	LastUpdate        time.Time
}

func (m *RegistryMetrics) incRegistered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered++
	m.lastUpdate = time.Now()
}

func (m *RegistryMetrics) incDeactivated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deactivated++
	m.lastUpdate = time.Now()
}

func (m *RegistryMetrics) stats() RegistryStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return RegistryStats{
		Registered:  m.registered,
		Deactivated: m.deactivated,
		LastUpdate:  m.lastUpdate,
	}
}
