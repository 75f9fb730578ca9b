package pause

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"rwa_oracle/pkg/data"
)

// Gate is the per-pool circuit breaker. Mutating ledger operations check it
// before touching any state; read-only queries are never gated.
type Gate struct {
	paused map[string]bool
	logger *zap.Logger
	mu     sync.RWMutex
}

// NewGate creates a new pause gate
func NewGate(logger *zap.Logger) *Gate {
	return &Gate{
		paused: make(map[string]bool),
		logger: logger,
	}
}

// Pause closes the gate for a pool
func (g *Gate) Pause(poolID string) error {
	if poolID == "" {
		return fmt.Errorf("pausing pool: %w: empty pool", data.ErrInvalidInput)
	}

	g.mu.Lock()
	g.paused[poolID] = true
	g.mu.Unlock()

	g.logger.Warn("Pool paused", zap.String("poolID", poolID))
	return nil
}

// Unpause reopens the gate for a pool
func (g *Gate) Unpause(poolID string) error {
	if poolID == "" {
		return fmt.Errorf("unpausing pool: %w: empty pool", data.ErrInvalidInput)
	}

	g.mu.Lock()
	delete(g.paused, poolID)
	g.mu.Unlock()

	g.logger.Info("Pool unpaused", zap.String("poolID", poolID))
	return nil
}

// IsPaused reports whether a pool's gate is closed
func (g *Gate) IsPaused(poolID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.paused[poolID]
}

// Check returns ErrPoolPaused when the pool's gate is closed
func (g *Gate) Check(poolID string) error {
	if g.IsPaused(poolID) {
		return fmt.Errorf("pool %q: %w", poolID, data.ErrPoolPaused)
	}
	return nil
}
