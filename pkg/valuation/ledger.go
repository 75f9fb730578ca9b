package valuation

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"rwa_oracle/pkg/data"
)

// Ledger keeps the per-pool valuation history plus a current-valuation slot
// for O(1) reads. History is append-only in publication order; records are
// immutable once appended.
type Ledger struct {
	history map[string][]*data.Valuation
	current map[string]*data.Valuation
	maxAge  time.Duration
	logger  *zap.Logger
	metrics *LedgerMetrics
	now     func() time.Time
	mu      sync.RWMutex
}

// NewLedger creates a new valuation ledger
func NewLedger(maxAge time.Duration, logger *zap.Logger) (*Ledger, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("max valuation age must be positive: %w", data.ErrInvalidInput)
	}

	return &Ledger{
		history: make(map[string][]*data.Valuation),
		current: make(map[string]*data.Valuation),
		maxAge:  maxAge,
		logger:  logger,
		metrics: &LedgerMetrics{},
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Publish appends a valuation record to the pool's history and overwrites
// the current slot. Out-of-order timestamps are accepted as published; the
// ledger only logs the anomaly.
func (l *Ledger) Publish(poolID string, value float64, oracleID string) (*data.Valuation, error) {
	record, err := data.NewValuation(poolID, value, oracleID)
	if err != nil {
		return nil, fmt.Errorf("publishing valuation for pool %q: %w: %v", poolID, data.ErrInvalidInput, err)
	}
	record.Timestamp = l.now()

	l.mu.Lock()
	if prev, ok := l.current[poolID]; ok && prev.Timestamp.After(record.Timestamp) {
		l.logger.Warn("Out-of-order valuation accepted",
			zap.String("poolID", poolID),
			zap.Time("previous", prev.Timestamp),
			zap.Time("published", record.Timestamp))
	}
	l.history[poolID] = append(l.history[poolID], record)
	l.current[poolID] = record
	l.mu.Unlock()

	l.metrics.incPublished()

	l.logger.Info("Valuation published",
		zap.String("poolID", poolID),
		zap.Float64("value", value),
		zap.String("oracle", oracleID))

	copied := *record
	return &copied, nil
}

// Current returns the pool's current valuation verbatim; a pool that never
// published yields the zero value.
func (l *Ledger) Current(poolID string) data.Valuation {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if record, ok := l.current[poolID]; ok {
		return *record
	}
	return data.Valuation{}
}

// Historical returns the value of the active record closest in time to the
// query timestamp. Ties go to the record appended first. Returns 0 when the
// pool has no active record.
func (l *Ledger) Historical(poolID string, at time.Time) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var (
		best     float64
		bestDist = math.MaxFloat64
		found    bool
	)
	for _, record := range l.history[poolID] {
		if !record.Active {
			continue
		}
		dist := math.Abs(record.Timestamp.Sub(at).Seconds())
		if dist < bestDist {
			best = record.Value
			bestDist = dist
			found = true
		}
	}

	if !found {
		return 0
	}
	return best
}

// History returns a copy of the pool's full valuation history in
// publication order.
func (l *Ledger) History(poolID string) []*data.Valuation {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records := l.history[poolID]
	out := make([]*data.Valuation, len(records))
	for i, record := range records {
		copied := *record
		out[i] = &copied
	}
	return out
}

// IsFresh reports whether the pool's current valuation is younger than the
// configured maximum age. A pool that never published is never fresh.
func (l *Ledger) IsFresh(poolID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	record, ok := l.current[poolID]
	if !ok || record.Timestamp.IsZero() {
		return false
	}
	return l.now().Sub(record.Timestamp) <= l.maxAge
}

// Pools returns the identifiers of every pool with at least one valuation
func (l *Ledger) Pools() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pools := make([]string, 0, len(l.current))
	for poolID := range l.current {
		pools = append(pools, poolID)
	}
	return pools
}

// SetMaxAge updates the freshness window
func (l *Ledger) SetMaxAge(maxAge time.Duration) error {
	if maxAge <= 0 {
		return fmt.Errorf("setting max valuation age: %w: must be positive", data.ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.maxAge = maxAge
	l.logger.Info("Max valuation age updated", zap.Duration("maxAge", maxAge))
	return nil
}

// MaxAge returns the current freshness window
func (l *Ledger) MaxAge() time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.maxAge
}

// GetStats returns current valuation ledger statistics
func (l *Ledger) GetStats() LedgerStats {
	l.mu.RLock()
	pools := len(l.current)
	records := 0
	for _, history := range l.history {
		records += len(history)
	}
	l.mu.RUnlock()

	stats := l.metrics.stats()
	stats.Pools = pools
	stats.Records = records
	return stats
}
