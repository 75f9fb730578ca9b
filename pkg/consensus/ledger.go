package consensus

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"rwa_oracle/pkg/data"
	"rwa_oracle/pkg/oracle"
)

// Config holds the proof verification thresholds
type Config struct {
	MinVerifiers int
	VoteTimelock time.Duration
}

// ProofLedger keeps one investment proof per pool and runs the timelocked
// threshold voting that verifies it. Proofs move through
// {empty, pending, verified}; a challenge clears the collected votes while
// the proof stays pending, and a verified proof can no longer be challenged.
type ProofLedger struct {
	proofs       map[string]*data.InvestmentProof
	registry     *oracle.Registry
	minVerifiers int
	voteTimelock time.Duration
	logger       *zap.Logger
	metrics      *ConsensusMetrics
	now          func() time.Time
	mu           sync.RWMutex
}

// NewProofLedger creates a new proof ledger
func NewProofLedger(registry *oracle.Registry, cfg Config, logger *zap.Logger) (*ProofLedger, error) {
	if cfg.MinVerifiers <= 0 {
		return nil, fmt.Errorf("min verifiers must be positive: %w", data.ErrInvalidInput)
	}
	if cfg.VoteTimelock <= 0 {
		return nil, fmt.Errorf("vote timelock must be positive: %w", data.ErrInvalidInput)
	}

	return &ProofLedger{
		proofs:       make(map[string]*data.InvestmentProof),
		registry:     registry,
		minVerifiers: cfg.MinVerifiers,
		voteTimelock: cfg.VoteTimelock,
		logger:       logger,
		metrics:      NewConsensusMetrics(),
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// Submit records a new investment proof for a pool. This is a one-shot
// create: once a proof exists it can only be reset by a challenge, never
// replaced.
func (l *ProofLedger) Submit(poolID, proofHash string, amount float64, submitter string, block uint64, reportURI string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.proofs[poolID]; ok && !existing.SubmittedAt.IsZero() {
		return fmt.Errorf("submitting proof for pool %q: %w", poolID, data.ErrAlreadyExists)
	}

	proof, err := data.NewInvestmentProof(poolID, proofHash, amount, submitter, block, reportURI)
	if err != nil {
		return fmt.Errorf("submitting proof for pool %q: %w: %v", poolID, data.ErrInvalidInput, err)
	}
	proof.SubmittedAt = l.now()

	l.proofs[poolID] = proof
	l.metrics.incSubmissions()

	l.logger.Info("Investment proof submitted",
		zap.String("poolID", poolID),
		zap.String("proofHash", proofHash),
		zap.Float64("amount", amount),
		zap.String("submitter", submitter))

	return nil
}

// Vote records a verification vote from an active oracle. Crossing the
// minimum-verifier threshold flips the proof to verified as a side effect
// and records the triggering oracle as the canonical verifier. Returns true
// when this vote completed verification.
func (l *ProofLedger) Vote(poolID, voterID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	proof, ok := l.proofs[poolID]
	if !ok {
		return false, fmt.Errorf("voting on pool %q: %w", poolID, data.ErrNotFound)
	}

	if !l.registry.IsActive(voterID) {
		return false, fmt.Errorf("voting on pool %q: oracle %q: %w", poolID, voterID, data.ErrUnauthorized)
	}

	if proof.Verified {
		return false, fmt.Errorf("voting on pool %q: %w", poolID, data.ErrAlreadyVerified)
	}

	if l.now().Before(proof.SubmittedAt.Add(l.voteTimelock)) {
		return false, fmt.Errorf("voting on pool %q: %w", poolID, data.ErrTimelockActive)
	}

	if proof.HasVoted(voterID) {
		return false, fmt.Errorf("voting on pool %q: oracle %q: %w", poolID, voterID, data.ErrAlreadyVoted)
	}

	proof.Voters[voterID] = true
	proof.VoteCount++
	l.metrics.incVotes()

	if proof.VoteCount >= l.minVerifiers {
		proof.Verified = true
		proof.Verifier = voterID
		l.metrics.incVerifications()

		l.logger.Info("Investment proof verified",
			zap.String("poolID", poolID),
			zap.String("verifier", voterID),
			zap.Int("votes", proof.VoteCount))

		return true, nil
	}

	l.logger.Debug("Verification vote recorded",
		zap.String("poolID", poolID),
		zap.String("voter", voterID),
		zap.Int("votes", proof.VoteCount),
		zap.Int("required", l.minVerifiers))

	return false, nil
}

// Challenge disputes an unverified proof and clears every collected vote,
// restarting the voting round. The original submission fields are left
// untouched and the proof remains pending. A verified proof cannot be
// challenged.
func (l *ProofLedger) Challenge(poolID, challengerID, reason string) error {
	if reason == "" {
		return fmt.Errorf("challenging pool %q: %w: empty reason", poolID, data.ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	proof, ok := l.proofs[poolID]
	if !ok {
		return fmt.Errorf("challenging pool %q: %w", poolID, data.ErrNotFound)
	}

	if proof.Verified {
		return fmt.Errorf("challenging pool %q: %w", poolID, data.ErrCannotChallengeVerified)
	}

	cleared := proof.VoteCount
	proof.ResetVotes()
	l.metrics.incChallenges()

	l.logger.Warn("Investment proof challenged",
		zap.String("poolID", poolID),
		zap.String("challenger", challengerID),
		zap.String("reason", reason),
		zap.Int("votesCleared", cleared))

	return nil
}

// CanVote reports whether the identity is currently eligible to vote on the
// pool's proof. The predicate mirrors the guards inside Vote.
func (l *ProofLedger) CanVote(poolID, voterID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	proof, ok := l.proofs[poolID]
	if !ok || proof.Verified {
		return false
	}
	if l.now().Before(proof.SubmittedAt.Add(l.voteTimelock)) {
		return false
	}
	if proof.HasVoted(voterID) {
		return false
	}
	return l.registry.IsActive(voterID)
}

// Summary returns the condensed view of a pool's proof
func (l *ProofLedger) Summary(poolID string) (ProofSummary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	proof, ok := l.proofs[poolID]
	if !ok {
		return ProofSummary{}, fmt.Errorf("fetching proof for pool %q: %w", poolID, data.ErrNotFound)
	}

	return summaryOf(proof), nil
}

// Detail returns the full view of a pool's proof
func (l *ProofLedger) Detail(poolID string) (ProofDetail, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	proof, ok := l.proofs[poolID]
	if !ok {
		return ProofDetail{}, fmt.Errorf("fetching proof for pool %q: %w", poolID, data.ErrNotFound)
	}

	return ProofDetail{
		ProofSummary: summaryOf(proof),
		Submitter:    proof.Submitter,
		Block:        proof.Block,
		ReportURI:    proof.ReportURI,
		VoteCount:    proof.VoteCount,
	}, nil
}

// Progress reports the current and required vote counts for a pool's proof
func (l *ProofLedger) Progress(poolID string) (VoteProgress, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	proof, ok := l.proofs[poolID]
	if !ok {
		return VoteProgress{}, fmt.Errorf("fetching progress for pool %q: %w", poolID, data.ErrNotFound)
	}

	return VoteProgress{Current: proof.VoteCount, Required: l.minVerifiers}, nil
}

// Record returns a copy of the raw proof record for persistence
func (l *ProofLedger) Record(poolID string) (*data.InvestmentProof, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	proof, ok := l.proofs[poolID]
	if !ok {
		return nil, fmt.Errorf("fetching proof for pool %q: %w", poolID, data.ErrNotFound)
	}

	copied := *proof
	copied.Voters = make(map[string]bool, len(proof.Voters))
	for id, voted := range proof.Voters {
		copied.Voters[id] = voted
	}
	return &copied, nil
}

// SetMinVerifiers updates the verification threshold. Existing pending
// proofs are not re-evaluated; the new value applies from the next vote on.
func (l *ProofLedger) SetMinVerifiers(n int) error {
	if n <= 0 {
		return fmt.Errorf("setting min verifiers: %w: must be positive", data.ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.minVerifiers = n
	l.logger.Info("Minimum verifiers updated", zap.Int("minVerifiers", n))
	return nil
}

// SetVoteTimelock updates the submission-to-vote delay, applied from the
// next guard evaluation on.
func (l *ProofLedger) SetVoteTimelock(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("setting vote timelock: %w: must be positive", data.ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.voteTimelock = d
	l.logger.Info("Vote timelock updated", zap.Duration("timelock", d))
	return nil
}

// MinVerifiers returns the current verification threshold
func (l *ProofLedger) MinVerifiers() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.minVerifiers
}

// VoteTimelock returns the current submission-to-vote delay
func (l *ProofLedger) VoteTimelock() time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.voteTimelock
}

// GetStats returns current proof ledger statistics
func (l *ProofLedger) GetStats() ConsensusStats {
	l.mu.RLock()
	pending, verified := 0, 0
	for _, proof := range l.proofs {
		if proof.Verified {
			verified++
		} else {
			pending++
		}
	}
	l.mu.RUnlock()

	return l.metrics.GetStats(pending, verified)
}

func summaryOf(proof *data.InvestmentProof) ProofSummary {
	return ProofSummary{
		PoolID:      proof.PoolID,
		ProofHash:   proof.ProofHash,
		Amount:      proof.Amount,
		SubmittedAt: proof.SubmittedAt,
		Verified:    proof.Verified,
		Verifier:    proof.Verifier,
	}
}
