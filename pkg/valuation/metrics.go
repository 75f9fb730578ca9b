package valuation

import (
	"sync"
	"time"
)

// LedgerMetrics tracks valuation ledger activity
type LedgerMetrics struct {
	published  int64
	lastUpdate time.Time
	mu         sync.RWMutex
}

// LedgerStats represents valuation ledger statistics
type LedgerStats struct {
	Pools      int
	Records    int
	Published  int64
	LastUpdate time.Time
}

func (m *LedgerMetrics) incPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published++
	m.lastUpdate = time.Now()
}

func (m *LedgerMetrics) stats() LedgerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return LedgerStats{
		Published:  m.published,
		LastUpdate: m.lastUpdate,
	}
}
