package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"rwa_oracle/pkg/data"
)

const (
	mirrorQueueSize = 4096
	mirrorOpTimeout = 5 * time.Second
)

type mirrorOp struct {
	kind string
	run  func(ctx context.Context) error
}

// Mirror replays ledger mutations into the repository on a single background
// worker, preserving emission order. The in-memory ledgers stay the source of
// truth for guard evaluation; a failed write is logged and dropped, never
// surfaced to the operation that caused it. Close drains the queue so no
// accepted write is lost on shutdown.
type Mirror struct {
	repo   data.Repository
	queue  chan mirrorOp
	done   chan struct{}
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewMirror creates a mirror and starts its worker
func NewMirror(repo data.Repository, logger *zap.Logger) (*Mirror, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}

	m := &Mirror{
		repo:   repo,
		queue:  make(chan mirrorOp, mirrorQueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go m.worker()
	return m, nil
}

func (m *Mirror) worker() {
	defer close(m.done)
	for op := range m.queue {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorOpTimeout)
		if err := op.run(ctx); err != nil {
			m.logger.Error("Failed to mirror state",
				zap.String("op", op.kind),
				zap.Error(err))
		}
		cancel()
	}
}

// SaveOracle queues an oracle record for persistence
func (m *Mirror) SaveOracle(record *data.Oracle) {
	m.enqueue("oracle", func(ctx context.Context) error {
		return m.repo.SaveOracle(ctx, record)
	})
}

// SaveProof queues a proof record for persistence
func (m *Mirror) SaveProof(record *data.InvestmentProof) {
	m.enqueue("proof", func(ctx context.Context) error {
		return m.repo.SaveProof(ctx, record)
	})
}

// SaveValuation queues a valuation record for persistence
func (m *Mirror) SaveValuation(record *data.Valuation) {
	m.enqueue("valuation", func(ctx context.Context) error {
		return m.repo.SaveValuation(ctx, record)
	})
}

// SaveEvent queues an audit event for persistence
func (m *Mirror) SaveEvent(event *data.Event) {
	m.enqueue("event", func(ctx context.Context) error {
		return m.repo.SaveEvent(ctx, event)
	})
}

func (m *Mirror) enqueue(kind string, run func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.logger.Warn("Mirror closed, dropping write", zap.String("op", kind))
		return
	}

	select {
	case m.queue <- mirrorOp{kind: kind, run: run}:
	default:
		m.logger.Warn("Mirror queue full, dropping write", zap.String("op", kind))
	}
}

// Close stops accepting writes and blocks until the queue is drained
func (m *Mirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		<-m.done
		return
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	<-m.done
}
