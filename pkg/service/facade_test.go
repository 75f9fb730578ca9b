package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rwa_oracle/pkg/consensus"
	"rwa_oracle/pkg/data"
	"rwa_oracle/pkg/oracle"
	"rwa_oracle/pkg/pause"
	"rwa_oracle/pkg/security"
	"rwa_oracle/pkg/valuation"
)

type facadeFixture struct {
	facade   *Facade
	access   *security.StaticAccess
	registry *oracle.Registry
}

func newTestFacade(t *testing.T, minVerifiers int, timelock time.Duration) *facadeFixture {
	t.Helper()

	logger := zap.NewNop()
	access := security.NewStaticAccess()
	gate := pause.NewGate(logger)
	registry := oracle.NewRegistry(logger)

	proofs, err := consensus.NewProofLedger(registry, consensus.Config{
		MinVerifiers: minVerifiers,
		VoteTimelock: timelock,
	}, logger)
	require.NoError(t, err)

	valuations, err := valuation.NewLedger(24*time.Hour, logger)
	require.NoError(t, err)

	facade, err := NewFacade(access, gate, registry, proofs, valuations, NewEventLog(logger), nil, logger)
	require.NoError(t, err)

	return &facadeFixture{
		facade:   facade,
		access:   access,
		registry: registry,
	}
}

// registerOracle grants the oracle role and admits the identity as admin
func (fx *facadeFixture) registerOracle(t *testing.T, id string) {
	t.Helper()
	fx.access.Grant("admin", security.RoleAdmin)
	fx.access.Grant(id, security.RoleOracle)
	require.NoError(t, fx.facade.RegisterOracle("admin", id, "oracle"))
}

func TestFacadeConstruction(t *testing.T) {
	logger := zap.NewNop()
	registry := oracle.NewRegistry(logger)
	proofs, err := consensus.NewProofLedger(registry, consensus.Config{
		MinVerifiers: 2,
		VoteTimelock: time.Hour,
	}, logger)
	require.NoError(t, err)
	valuations, err := valuation.NewLedger(time.Hour, logger)
	require.NoError(t, err)

	t.Run("requires access controller", func(t *testing.T) {
		_, err := NewFacade(nil, pause.NewGate(logger), registry, proofs, valuations, NewEventLog(logger), nil, logger)
		assert.Error(t, err)
	})

	t.Run("requires all components", func(t *testing.T) {
		_, err := NewFacade(security.NewStaticAccess(), nil, registry, proofs, valuations, NewEventLog(logger), nil, logger)
		assert.Error(t, err)
	})
}

func TestFacadeAuthorization(t *testing.T) {
	fx := newTestFacade(t, 2, time.Hour)

	t.Run("rejects empty caller", func(t *testing.T) {
		err := fx.facade.RegisterOracle("", "oracle-1", "oracle")
		assert.ErrorIs(t, err, data.ErrInvalidInput)
	})

	t.Run("rejects caller without role", func(t *testing.T) {
		err := fx.facade.RegisterOracle("nobody", "oracle-1", "oracle")
		assert.ErrorIs(t, err, data.ErrUnauthorized)

		err = fx.facade.SubmitProof("nobody", "pool-1", "hash", 1000, 1, "")
		assert.ErrorIs(t, err, data.ErrUnauthorized)

		_, err = fx.facade.VoteOnProof("nobody", "pool-1")
		assert.ErrorIs(t, err, data.ErrUnauthorized)

		err = fx.facade.PausePool("nobody", "pool-1")
		assert.ErrorIs(t, err, data.ErrUnauthorized)
	})

	t.Run("role grants are per operation", func(t *testing.T) {
		fx.access.Grant("submitter-1", security.RoleSubmitter)

		err := fx.facade.SubmitProof("submitter-1", "pool-1", "hash", 1000, 1, "")
		assert.NoError(t, err)

		// submitter role does not cover administrative calls
		err = fx.facade.SetMinVerifiers("submitter-1", 5)
		assert.ErrorIs(t, err, data.ErrUnauthorized)
	})
}

func TestFacadeVerificationScenario(t *testing.T) {
	fx := newTestFacade(t, 2, time.Nanosecond)

	fx.registerOracle(t, "oracle-a")
	fx.registerOracle(t, "oracle-b")
	fx.registerOracle(t, "oracle-c")
	fx.access.Grant("submitter-1", security.RoleSubmitter)

	require.NoError(t, fx.facade.SubmitProof("submitter-1", "pool-x", "0xproof", 1000, 42, "ipfs://report"))
	time.Sleep(time.Millisecond)

	verified, err := fx.facade.VoteOnProof("oracle-a", "pool-x")
	require.NoError(t, err)
	assert.False(t, verified)

	progress, err := fx.facade.VoteProgress("pool-x")
	require.NoError(t, err)
	assert.Equal(t, 1, progress.Current)
	assert.Equal(t, 2, progress.Required)

	verified, err = fx.facade.VoteOnProof("oracle-b", "pool-x")
	require.NoError(t, err)
	assert.True(t, verified)

	summary, err := fx.facade.ProofSummary("pool-x")
	require.NoError(t, err)
	assert.True(t, summary.Verified)
	assert.Equal(t, "oracle-b", summary.Verifier)

	// the threshold has been reached, further votes are rejected
	_, err = fx.facade.VoteOnProof("oracle-c", "pool-x")
	assert.ErrorIs(t, err, data.ErrAlreadyVerified)

	t.Run("voters earned reputation", func(t *testing.T) {
		voter, err := fx.registry.Get("oracle-a")
		require.NoError(t, err)
		assert.Equal(t, data.BaselineReputation+oracle.VoteReputationBonus, voter.Reputation)

		bystander, err := fx.registry.Get("oracle-c")
		require.NoError(t, err)
		assert.Equal(t, data.BaselineReputation, bystander.Reputation)
	})

	t.Run("events were recorded", func(t *testing.T) {
		types := make([]string, 0)
		for _, event := range fx.facade.RecentEvents(0) {
			types = append(types, event.Type)
		}
		assert.Contains(t, types, data.EventProofSubmitted)
		assert.Contains(t, types, data.EventProofVoted)
		assert.Contains(t, types, data.EventProofVerified)
	})
}

func TestFacadePauseGating(t *testing.T) {
	fx := newTestFacade(t, 2, time.Nanosecond)

	fx.registerOracle(t, "oracle-a")
	fx.access.Grant("submitter-1", security.RoleSubmitter)
	fx.access.Grant("responder", security.RoleEmergency)

	require.NoError(t, fx.facade.PausePool("responder", "pool-x"))
	assert.True(t, fx.facade.IsPaused("pool-x"))

	t.Run("mutations fail while paused", func(t *testing.T) {
		err := fx.facade.SubmitProof("submitter-1", "pool-x", "hash", 1000, 1, "")
		assert.ErrorIs(t, err, data.ErrPoolPaused)

		_, err = fx.facade.PublishValuation("oracle-a", "pool-x", 100)
		assert.ErrorIs(t, err, data.ErrPoolPaused)
	})

	t.Run("other pools are unaffected", func(t *testing.T) {
		err := fx.facade.SubmitProof("submitter-1", "pool-y", "hash", 1000, 1, "")
		assert.NoError(t, err)
	})

	t.Run("reads stay open", func(t *testing.T) {
		assert.NotPanics(t, func() {
			fx.facade.CurrentValuation("pool-x")
			fx.facade.IsFresh("pool-x")
		})
	})

	t.Run("unpause reopens the gate", func(t *testing.T) {
		require.NoError(t, fx.facade.UnpausePool("responder", "pool-x"))
		err := fx.facade.SubmitProof("submitter-1", "pool-x", "hash", 1000, 1, "")
		assert.NoError(t, err)
	})

	t.Run("global pause blocks every pool", func(t *testing.T) {
		fx.access.SetPaused(true)
		defer fx.access.SetPaused(false)

		err := fx.facade.SubmitProof("submitter-1", "pool-z", "hash", 1000, 1, "")
		assert.ErrorIs(t, err, data.ErrPoolPaused)
	})

	t.Run("pause requires emergency role", func(t *testing.T) {
		err := fx.facade.PausePool("oracle-a", "pool-x")
		assert.ErrorIs(t, err, data.ErrUnauthorized)
	})
}

func TestFacadePublishValuation(t *testing.T) {
	fx := newTestFacade(t, 2, time.Hour)
	fx.registerOracle(t, "oracle-a")

	t.Run("publishes and credits reputation", func(t *testing.T) {
		record, err := fx.facade.PublishValuation("oracle-a", "pool-x", 250)
		require.NoError(t, err)
		assert.Equal(t, 250.0, record.Value)
		assert.Equal(t, data.DefaultConfidence, record.Confidence)

		current := fx.facade.CurrentValuation("pool-x")
		assert.Equal(t, 250.0, current.Value)
		assert.True(t, fx.facade.IsFresh("pool-x"))

		publisher, err := fx.registry.Get("oracle-a")
		require.NoError(t, err)
		assert.Equal(t, data.BaselineReputation+oracle.PublishReputationBonus, publisher.Reputation)
	})

	t.Run("rejects deactivated oracle", func(t *testing.T) {
		fx.registerOracle(t, "oracle-b")
		require.NoError(t, fx.facade.DeactivateOracle("admin", "oracle-b"))

		_, err := fx.facade.PublishValuation("oracle-b", "pool-x", 300)
		assert.ErrorIs(t, err, data.ErrUnauthorized)
	})

	t.Run("rejects non-positive value", func(t *testing.T) {
		_, err := fx.facade.PublishValuation("oracle-a", "pool-x", 0)
		assert.ErrorIs(t, err, data.ErrInvalidInput)
	})
}

func TestFacadeChallenge(t *testing.T) {
	fx := newTestFacade(t, 3, time.Nanosecond)

	fx.registerOracle(t, "oracle-a")
	fx.registerOracle(t, "oracle-b")
	fx.access.Grant("submitter-1", security.RoleSubmitter)

	require.NoError(t, fx.facade.SubmitProof("submitter-1", "pool-x", "hash", 500, 1, ""))
	time.Sleep(time.Millisecond)

	_, err := fx.facade.VoteOnProof("oracle-a", "pool-x")
	require.NoError(t, err)

	t.Run("challenge clears collected votes", func(t *testing.T) {
		require.NoError(t, fx.facade.ChallengeProof("oracle-b", "pool-x", "stale documents"))

		progress, err := fx.facade.VoteProgress("pool-x")
		require.NoError(t, err)
		assert.Equal(t, 0, progress.Current)

		// the cleared voter may vote again
		_, err = fx.facade.VoteOnProof("oracle-a", "pool-x")
		assert.NoError(t, err)
	})

	t.Run("challenge requires a reason", func(t *testing.T) {
		err := fx.facade.ChallengeProof("oracle-b", "pool-x", "")
		assert.ErrorIs(t, err, data.ErrInvalidInput)
	})
}

func TestFacadeAdminConfig(t *testing.T) {
	fx := newTestFacade(t, 2, time.Hour)
	fx.access.Grant("admin", security.RoleAdmin)

	t.Run("updates thresholds", func(t *testing.T) {
		require.NoError(t, fx.facade.SetMinVerifiers("admin", 5))
		require.NoError(t, fx.facade.SetVoteTimelock("admin", 2*time.Hour))
		require.NoError(t, fx.facade.SetMaxValuationAge("admin", 48*time.Hour))
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		assert.ErrorIs(t, fx.facade.SetMinVerifiers("admin", 0), data.ErrInvalidInput)
		assert.ErrorIs(t, fx.facade.SetVoteTimelock("admin", 0), data.ErrInvalidInput)
		assert.ErrorIs(t, fx.facade.SetMaxValuationAge("admin", -time.Hour), data.ErrInvalidInput)
	})

	t.Run("overrides reputation", func(t *testing.T) {
		fx.registerOracle(t, "oracle-a")
		require.NoError(t, fx.facade.SetOracleReputation("admin", "oracle-a", 7))

		record, err := fx.facade.GetOracle("oracle-a")
		require.NoError(t, err)
		assert.Equal(t, uint64(7), record.Reputation)
	})

	t.Run("emits config events", func(t *testing.T) {
		count := 0
		for _, event := range fx.facade.RecentEvents(0) {
			if event.Type == data.EventConfigUpdated {
				count++
			}
		}
		assert.GreaterOrEqual(t, count, 4)
	})
}

func TestEventLog(t *testing.T) {
	logger := zap.NewNop()

	t.Run("append and recent", func(t *testing.T) {
		log := NewEventLog(logger)
		log.Append(data.NewEvent(data.EventPoolPaused, "pool-1", "responder", nil))
		log.Append(data.NewEvent(data.EventPoolUnpaused, "pool-1", "responder", nil))

		events := log.Recent(1)
		require.Len(t, events, 1)
		assert.Equal(t, data.EventPoolUnpaused, events[0].Type)
		assert.Equal(t, 2, log.Len())
	})

	t.Run("recent returns copies", func(t *testing.T) {
		log := NewEventLog(logger)
		log.Append(data.NewEvent(data.EventPoolPaused, "pool-1", "responder", nil))

		events := log.Recent(0)
		events[0].Actor = "tampered"

		assert.Equal(t, "responder", log.Recent(0)[0].Actor)
	})

}
