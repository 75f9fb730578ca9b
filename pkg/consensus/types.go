package consensus

import (
	"time"
)

// ProofSummary is the condensed view of an investment proof
type ProofSummary struct {
	PoolID      string
	ProofHash   string
	Amount      float64
	SubmittedAt time.Time
	Verified    bool
	Verifier    string
}

// ProofDetail adds the submission context and vote state to the summary
type ProofDetail struct {
	ProofSummary
	Submitter string
	Block     uint64
	ReportURI string
	VoteCount int
}

// VoteProgress reports how far a proof is from verification
type VoteProgress struct {
	Current  int
	Required int
}

// ConsensusStats represents proof ledger statistics
type ConsensusStats struct {
	PendingProofs  int
	VerifiedProofs int
	Submissions    int64
	Votes          int64
	Verifications  int64
	Challenges     int64
	LastUpdate     time.Time
}
