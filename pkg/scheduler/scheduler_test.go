package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rwa_oracle/pkg/config"
	"rwa_oracle/pkg/oracle"
	"rwa_oracle/pkg/valuation"
)

func newTestScheduler(t *testing.T) (*Scheduler, *oracle.Registry, *valuation.Ledger) {
	t.Helper()

	logger := zap.NewNop()
	registry := oracle.NewRegistry(logger)
	valuations, err := valuation.NewLedger(time.Hour, logger)
	require.NoError(t, err)

	cfg := &config.SchedConfig{
		FreshnessAuditSpec:  "0 */5 * * * *",
		ReputationDecaySpec: "0 0 * * * *",
		InactivityWindow:    24 * time.Hour,
		InactivityPenalty:   5,
	}

	sched, err := NewScheduler(registry, valuations, cfg, logger)
	require.NoError(t, err)
	return sched, registry, valuations
}

func TestNewScheduler(t *testing.T) {
	t.Run("requires components", func(t *testing.T) {
		logger := zap.NewNop()
		valuations, err := valuation.NewLedger(time.Hour, logger)
		require.NoError(t, err)

		_, err = NewScheduler(nil, valuations, &config.SchedConfig{}, logger)
		assert.Error(t, err)

		_, err = NewScheduler(oracle.NewRegistry(logger), valuations, nil, logger)
		assert.Error(t, err)
	})
}

func TestSchedulerStartStop(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	require.NoError(t, sched.Start())
	defer sched.Stop()

	jobs := sched.ListJobs()
	assert.Len(t, jobs, 2)

	job, err := sched.GetJob("freshness-audit")
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, job.Status)

	_, err = sched.GetJob("unknown")
	assert.Error(t, err)

	metrics := sched.GetMetrics()
	assert.Equal(t, int64(2), metrics.JobsScheduled)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	logger := zap.NewNop()
	registry := oracle.NewRegistry(logger)
	valuations, err := valuation.NewLedger(time.Hour, logger)
	require.NoError(t, err)

	sched, err := NewScheduler(registry, valuations, &config.SchedConfig{
		FreshnessAuditSpec:  "not a cron spec",
		ReputationDecaySpec: "0 0 * * * *",
	}, logger)
	require.NoError(t, err)

	assert.Error(t, sched.Start())
}

func TestFreshnessAudit(t *testing.T) {
	sched, _, valuations := newTestScheduler(t)

	t.Run("clean when all pools fresh", func(t *testing.T) {
		_, err := valuations.Publish("pool-1", 100, "oracle-a")
		require.NoError(t, err)

		require.NoError(t, sched.runFreshnessAudit())
		assert.Equal(t, 0, sched.GetMetrics().StalePools)
	})

	t.Run("counts stale pools", func(t *testing.T) {
		// shrink the window so the record published above is already stale
		require.NoError(t, valuations.SetMaxAge(time.Nanosecond))
		time.Sleep(time.Millisecond)

		require.NoError(t, sched.runFreshnessAudit())
		assert.Equal(t, 1, sched.GetMetrics().StalePools)
	})
}

func TestReputationDecay(t *testing.T) {
	sched, registry, _ := newTestScheduler(t)

	require.NoError(t, registry.Register("oracle-a", "oracle"))
	require.NoError(t, registry.Register("oracle-b", "oracle"))

	t.Run("no decay inside the window", func(t *testing.T) {
		require.NoError(t, sched.runReputationDecay())
		assert.Equal(t, 0, sched.GetMetrics().DecayedCount)
	})

	t.Run("penalizes inactive oracles", func(t *testing.T) {
		sched.config.InactivityWindow = 100 * time.Millisecond
		time.Sleep(200 * time.Millisecond)
		registry.Touch("oracle-b")

		require.NoError(t, sched.runReputationDecay())
		assert.Equal(t, 1, sched.GetMetrics().DecayedCount)

		decayed, err := registry.Get("oracle-a")
		require.NoError(t, err)
		assert.Equal(t, uint64(95), decayed.Reputation)

		active, err := registry.Get("oracle-b")
		require.NoError(t, err)
		assert.Equal(t, uint64(100), active.Reputation)
	})
}

func TestJobExecutionUpdatesStatus(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	job := &Job{Name: "test", Status: JobStatusPending, RunFn: func() error { return nil }}
	sched.jobs["test"] = job

	sched.executeJob(job)

	snapshot, err := sched.GetJob("test")
	require.NoError(t, err)
	assert.Equal(t, JobStatusComplete, snapshot.Status)
	assert.False(t, snapshot.LastRun.IsZero())
	assert.Equal(t, int64(1), sched.GetMetrics().JobsCompleted)

	t.Run("failure is recorded", func(t *testing.T) {
		failing := &Job{Name: "failing", Status: JobStatusPending, RunFn: func() error {
			return assert.AnError
		}}
		sched.jobs["failing"] = failing

		sched.executeJob(failing)

		snapshot, err := sched.GetJob("failing")
		require.NoError(t, err)
		assert.Equal(t, JobStatusFailed, snapshot.Status)
		assert.Equal(t, int64(1), sched.GetMetrics().JobsFailed)
	})
}
