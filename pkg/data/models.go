package data

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Error variables for consistent error handling across the ledgers
var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrNotFound                = errors.New("record not found")
	ErrAlreadyExists           = errors.New("proof already exists")
	ErrAlreadyVoted            = errors.New("oracle already voted")
	ErrAlreadyActive           = errors.New("oracle already active")
	ErrAlreadyVerified         = errors.New("proof already verified")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrPoolPaused              = errors.New("pool is paused")
	ErrTimelockActive          = errors.New("vote timelock active")
	ErrCannotChallengeVerified = errors.New("cannot challenge verified proof")
)

const (
	// BaselineReputation is the score every oracle starts with.
	BaselineReputation uint64 = 100

	// DefaultConfidence is assigned to valuations published through the core.
	DefaultConfidence float64 = 95

	// DefaultValuationSource labels valuations published by registered oracles.
	DefaultValuationSource = "oracle"
)

// Oracle represents a registered validator identity.
type Oracle struct {
	ID           string    `json:"id"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	Reputation   uint64    `json:"reputation"`
	RegisteredAt time.Time `json:"registered_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// NewOracle creates a new Oracle instance with validation
func NewOracle(id string, role string) (*Oracle, error) {
	if id == "" {
		return nil, errors.New("oracle ID cannot be empty")
	}
	if role == "" {
		return nil, errors.New("role cannot be empty")
	}

	now := time.Now().UTC()
	return &Oracle{
		ID:           id,
		Role:         role,
		Active:       true,
		Reputation:   BaselineReputation,
		RegisteredAt: now,
		LastActiveAt: now,
	}, nil
}

// Touch updates the oracle's last activity timestamp
func (o *Oracle) Touch() {
	o.LastActiveAt = time.Now().UTC()
}

// InvestmentProof records the claim that an investment event occurred for a
// pool, together with the attestation votes collected so far. There is at
// most one proof per pool; a challenge resets the votes but never deletes
// the record.
type InvestmentProof struct {
	ID          string          `json:"id"`
	PoolID      string          `json:"pool_id"`
	ProofHash   string          `json:"proof_hash"`
	Amount      float64         `json:"amount"`
	SubmittedAt time.Time       `json:"submitted_at"`
	Block       uint64          `json:"block"`
	Submitter   string          `json:"submitter"`
	ReportURI   string          `json:"report_uri,omitempty"`
	Verified    bool            `json:"verified"`
	Verifier    string          `json:"verifier,omitempty"`
	VoteCount   int             `json:"vote_count"`
	Voters      map[string]bool `json:"voters"`
}

// NewInvestmentProof creates a new InvestmentProof instance with validation
func NewInvestmentProof(poolID, proofHash string, amount float64, submitter string, block uint64, reportURI string) (*InvestmentProof, error) {
	if poolID == "" {
		return nil, errors.New("pool ID cannot be empty")
	}
	if proofHash == "" {
		return nil, errors.New("proof hash cannot be empty")
	}
	if amount <= 0 {
		return nil, errors.New("amount must be positive")
	}

	return &InvestmentProof{
		ID:          uuid.New().String(),
		PoolID:      poolID,
		ProofHash:   proofHash,
		Amount:      amount,
		SubmittedAt: time.Now().UTC(),
		Block:       block,
		Submitter:   submitter,
		ReportURI:   reportURI,
		Voters:      make(map[string]bool),
	}, nil
}

// HasVoted reports whether the given oracle already voted on this proof
func (p *InvestmentProof) HasVoted(oracleID string) bool {
	return p.Voters[oracleID]
}

// ResetVotes clears the collected votes after a successful challenge.
// The submission fields are left untouched.
func (p *InvestmentProof) ResetVotes() {
	p.VoteCount = 0
	p.Voters = make(map[string]bool)
}

// Valuation represents a single point in a pool's valuation history.
// Records are immutable once appended; publication order defines the
// history order.
type Valuation struct {
	ID         string    `json:"id"`
	PoolID     string    `json:"pool_id"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
	Oracle     string    `json:"oracle"`
	Active     bool      `json:"active"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
}

// NewValuation creates a new Valuation instance with validation
func NewValuation(poolID string, value float64, oracleID string) (*Valuation, error) {
	if poolID == "" {
		return nil, errors.New("pool ID cannot be empty")
	}
	if oracleID == "" {
		return nil, errors.New("oracle ID cannot be empty")
	}
	if value <= 0 {
		return nil, errors.New("value must be positive")
	}

	return &Valuation{
		ID:         uuid.New().String(),
		PoolID:     poolID,
		Value:      value,
		Timestamp:  time.Now().UTC(),
		Oracle:     oracleID,
		Active:     true,
		Confidence: DefaultConfidence,
		Source:     DefaultValuationSource,
	}, nil
}

// Event is the structured audit record emitted by every mutating operation.
// The shape is stable; external indexers rely on it.
type Event struct {
	ID     string            `json:"id"`
	Type   string            `json:"type"`
	PoolID string            `json:"pool_id,omitempty"`
	Actor  string            `json:"actor"`
	Fields map[string]string `json:"fields,omitempty"`
	At     time.Time         `json:"at"`
}

// NewEvent creates a new audit event
func NewEvent(eventType, poolID, actor string, fields map[string]string) *Event {
	return &Event{
		ID:     uuid.New().String(),
		Type:   eventType,
		PoolID: poolID,
		Actor:  actor,
		Fields: fields,
		At:     time.Now().UTC(),
	}
}

// Audit event types
const (
	EventOracleRegistered   = "oracle.registered"
	EventOracleDeactivated  = "oracle.deactivated"
	EventProofSubmitted     = "proof.submitted"
	EventProofVoted         = "proof.voted"
	EventProofVerified      = "proof.verified"
	EventProofChallenged    = "proof.challenged"
	EventValuationPublished = "valuation.published"
	EventPoolPaused         = "pool.paused"
	EventPoolUnpaused       = "pool.unpaused"
	EventConfigUpdated      = "config.updated"
)
