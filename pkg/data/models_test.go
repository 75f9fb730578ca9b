package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOracle(t *testing.T) {
	oracle, err := NewOracle("oracle-1", "verifier")
	require.NoError(t, err)

	assert.True(t, oracle.Active)
	assert.Equal(t, BaselineReputation, oracle.Reputation)
	assert.Equal(t, "verifier", oracle.Role)
	assert.False(t, oracle.RegisteredAt.IsZero())
	assert.Equal(t, oracle.RegisteredAt, oracle.LastActiveAt)

	_, err = NewOracle("", "verifier")
	assert.Error(t, err)

	_, err = NewOracle("oracle-1", "")
	assert.Error(t, err)
}

func TestNewInvestmentProof(t *testing.T) {
	proof, err := NewInvestmentProof("pool-1", "0xabc", 1000, "submitter-1", 42, "ipfs://report")
	require.NoError(t, err)

	assert.NotEmpty(t, proof.ID)
	assert.False(t, proof.Verified)
	assert.Zero(t, proof.VoteCount)
	assert.NotNil(t, proof.Voters)
	assert.False(t, proof.SubmittedAt.IsZero())

	cases := []struct {
		name      string
		pool      string
		proofHash string
		amount    float64
	}{
		{"empty pool", "", "0xabc", 1000},
		{"empty hash", "pool-1", "", 1000},
		{"zero amount", "pool-1", "0xabc", 0},
		{"negative amount", "pool-1", "0xabc", -5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewInvestmentProof(tc.pool, tc.proofHash, tc.amount, "s", 0, "")
			assert.Error(t, err)
		})
	}
}

func TestInvestmentProofResetVotes(t *testing.T) {
	proof, err := NewInvestmentProof("pool-1", "0xabc", 1000, "submitter-1", 0, "")
	require.NoError(t, err)

	proof.Voters["oracle-1"] = true
	proof.Voters["oracle-2"] = true
	proof.VoteCount = 2

	proof.ResetVotes()

	assert.Zero(t, proof.VoteCount)
	assert.Empty(t, proof.Voters)
	assert.False(t, proof.HasVoted("oracle-1"))
	assert.False(t, proof.SubmittedAt.IsZero(), "submission fields must survive a reset")
}

func TestNewValuation(t *testing.T) {
	v, err := NewValuation("pool-1", 105.5, "oracle-1")
	require.NoError(t, err)

	assert.Equal(t, DefaultConfidence, v.Confidence)
	assert.Equal(t, DefaultValuationSource, v.Source)
	assert.True(t, v.Active)
	assert.False(t, v.Timestamp.IsZero())

	_, err = NewValuation("pool-1", 0, "oracle-1")
	assert.Error(t, err)

	_, err = NewValuation("", 100, "oracle-1")
	assert.Error(t, err)

	_, err = NewValuation("pool-1", 100, "")
	assert.Error(t, err)
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(EventProofSubmitted, "pool-1", "submitter-1", map[string]string{"amount": "1000"})

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, EventProofSubmitted, e.Type)
	assert.Equal(t, "pool-1", e.PoolID)
	assert.Equal(t, "1000", e.Fields["amount"])
	assert.False(t, e.At.IsZero())
}
