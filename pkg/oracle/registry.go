package oracle

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"rwa_oracle/pkg/data"
)

const (
	// VoteReputationBonus is credited for each accepted verification vote.
	VoteReputationBonus = 10

	// PublishReputationBonus is credited for each published valuation.
	PublishReputationBonus = 5
)

// Registry maintains the set of authorized oracle identities, their
// activation state and reputation scores. Deactivated identities stay in the
// keyed store for history but leave the iteration list.
type Registry struct {
	oracles map[string]*data.Oracle
	order   []string // iteration list of active identities, removal is swap-with-last
	logger  *zap.Logger
	metrics *RegistryMetrics
	mu      sync.RWMutex
}

// NewRegistry creates a new oracle registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		oracles: make(map[string]*data.Oracle),
		logger:  logger,
		metrics: &RegistryMetrics{},
	}
}

// Register adds a new oracle identity or reactivates a previously removed
// one. The reputation score starts at the fixed baseline either way.
func (r *Registry) Register(id string, role string) error {
	if role == "" {
		return fmt.Errorf("registering oracle %q: %w: empty role", id, data.ErrInvalidInput)
	}
	if id == "" {
		return fmt.Errorf("registering oracle: %w: empty identity", data.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.oracles[id]; ok && existing.Active {
		return fmt.Errorf("registering oracle %q: %w", id, data.ErrAlreadyActive)
	}

	oracle, err := data.NewOracle(id, role)
	if err != nil {
		return fmt.Errorf("registering oracle %q: %w", id, err)
	}

	r.oracles[id] = oracle
	r.order = append(r.order, id)
	r.metrics.incRegistered()

	r.logger.Info("Oracle registered",
		zap.String("oracleID", id),
		zap.String("role", role))

	return nil
}

// Deactivate marks an oracle inactive and removes it from the iteration
// list. The list order after removal is unspecified.
func (r *Registry) Deactivate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	oracle, ok := r.oracles[id]
	if !ok || !oracle.Active {
		return fmt.Errorf("deactivating oracle %q: %w", id, data.ErrNotFound)
	}

	oracle.Active = false

	for i, entry := range r.order {
		if entry == id {
			last := len(r.order) - 1
			r.order[i] = r.order[last]
			r.order = r.order[:last]
			break
		}
	}
	r.metrics.incDeactivated()

	r.logger.Info("Oracle deactivated", zap.String("oracleID", id))

	return nil
}

// AdjustReputation applies a delta to an active oracle's reputation. The
// score is unsigned and saturates at zero.
func (r *Registry) AdjustReputation(id string, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	oracle, ok := r.oracles[id]
	if !ok || !oracle.Active {
		return fmt.Errorf("adjusting reputation for %q: %w", id, data.ErrNotFound)
	}

	if delta < 0 && uint64(-delta) > oracle.Reputation {
		oracle.Reputation = 0
	} else {
		oracle.Reputation = uint64(int64(oracle.Reputation) + delta)
	}

	return nil
}

// SetReputation overwrites an active oracle's reputation score
func (r *Registry) SetReputation(id string, value uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	oracle, ok := r.oracles[id]
	if !ok || !oracle.Active {
		return fmt.Errorf("setting reputation for %q: %w", id, data.ErrNotFound)
	}

	oracle.Reputation = value
	return nil
}

// Touch updates an oracle's last-activity timestamp
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if oracle, ok := r.oracles[id]; ok {
		oracle.Touch()
	}
}

// IsActive reports whether the identity is a currently active oracle
func (r *Registry) IsActive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	oracle, ok := r.oracles[id]
	return ok && oracle.Active
}

// Get retrieves a copy of an oracle record, active or not
func (r *Registry) Get(id string) (*data.Oracle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	oracle, ok := r.oracles[id]
	if !ok {
		return nil, fmt.Errorf("fetching oracle %q: %w", id, data.ErrNotFound)
	}

	copied := *oracle
	return &copied, nil
}

// ListActive returns copies of all active oracles. Callers must not rely on
// the order being stable across calls.
func (r *Registry) ListActive() []*data.Oracle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make([]*data.Oracle, 0, len(r.order))
	for _, id := range r.order {
		if oracle, ok := r.oracles[id]; ok && oracle.Active {
			copied := *oracle
			active = append(active, &copied)
		}
	}

	return active
}

// ActiveCount returns the number of currently active oracles
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// DecayInactive applies a reputation penalty to every active oracle whose
// last activity is older than the window. Returns the number of oracles
// penalized.
func (r *Registry) DecayInactive(window time.Duration, penalty uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().UTC().Add(-window)
	decayed := 0
	for _, id := range r.order {
		oracle := r.oracles[id]
		if oracle.LastActiveAt.After(cutoff) {
			continue
		}
		if penalty > oracle.Reputation {
			oracle.Reputation = 0
		} else {
			oracle.Reputation -= penalty
		}
		decayed++
	}

	if decayed > 0 {
		r.logger.Info("Inactivity reputation decay applied",
			zap.Int("oracles", decayed),
			zap.Duration("window", window))
	}

	return decayed
}

// GetStats returns current registry statistics
func (r *Registry) GetStats() RegistryStats {
	r.mu.RLock()
	active := len(r.order)
	known := len(r.oracles)
	var total uint64
	for _, id := range r.order {
		total += r.oracles[id].Reputation
	}
	r.mu.RUnlock()

	stats := r.metrics.stats()
	stats.ActiveOracles = active
	stats.KnownOracles = known
	if active > 0 {
		stats.AverageReputation = float64(total) / float64(active)
	}
	return stats
}
