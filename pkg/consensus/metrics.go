package consensus

import (
	"sync"
	"time"
)

// ConsensusMetrics tracks proof ledger activity
type ConsensusMetrics struct {
	submissions   int64
	votes         int64
	verifications int64
	challenges    int64
	lastUpdate    time.Time
	mu            sync.RWMutex
}

// NewConsensusMetrics creates a new ConsensusMetrics instance
func NewConsensusMetrics() *ConsensusMetrics {
	return &ConsensusMetrics{}
}

func (m *ConsensusMetrics) incSubmissions() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions++
	m.lastUpdate = time.Now()
}

func (m *ConsensusMetrics) incVotes() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.votes++
	m.lastUpdate = time.Now()
}

func (m *ConsensusMetrics) incVerifications() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications++
	m.lastUpdate = time.Now()
}

func (m *ConsensusMetrics) incChallenges() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges++
	m.lastUpdate = time.Now()
}

// GetStats returns the current proof ledger statistics
func (m *ConsensusMetrics) GetStats(pending, verified int) ConsensusStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return ConsensusStats{
		PendingProofs:  pending,
		VerifiedProofs: verified,
		Submissions:    m.submissions,
		Votes:          m.votes,
		Verifications:  m.verifications,
		Challenges:     m.challenges,
		LastUpdate:     m.lastUpdate,
	}
}
