package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"rwa_oracle/pkg/config"
	"rwa_oracle/pkg/oracle"
	"rwa_oracle/pkg/valuation"
)

// JobStatus represents the last known state of a maintenance job
type JobStatus string

const (
	JobStatusPending  JobStatus = "pending"
	JobStatusRunning  JobStatus = "running"
	JobStatusComplete JobStatus = "complete"
	JobStatusFailed   JobStatus = "failed"
)

// Job is a registered maintenance job
type Job struct {
	Name     string
	Schedule string
	LastRun  time.Time
	Status   JobStatus
	Error    error
	CronID   cron.EntryID
	RunFn    func() error
}

// Scheduler runs the periodic maintenance jobs of the consensus core:
// the valuation freshness audit and the oracle inactivity reputation decay.
type Scheduler struct {
	cron       *cron.Cron
	registry   *oracle.Registry
	valuations *valuation.Ledger
	config     *config.SchedConfig
	jobs       map[string]*Job
	logger     *zap.Logger
	metrics    *SchedulerMetrics
	mu         sync.RWMutex
}

// SchedulerMetrics tracks maintenance job executions
type SchedulerMetrics struct {
	JobsScheduled int64
	JobsCompleted int64
	JobsFailed    int64
	StalePools    int
	DecayedCount  int
	LastUpdate    time.Time
	mu            sync.RWMutex
}

// NewScheduler creates a maintenance scheduler
func NewScheduler(registry *oracle.Registry, valuations *valuation.Ledger, cfg *config.SchedConfig, logger *zap.Logger) (*Scheduler, error) {
	if registry == nil || valuations == nil {
		return nil, fmt.Errorf("registry and valuation ledger are required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("scheduler config is required")
	}

	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		registry:   registry,
		valuations: valuations,
		config:     cfg,
		jobs:       make(map[string]*Job),
		logger:     logger,
		metrics:    &SchedulerMetrics{},
	}, nil
}

// Start registers the maintenance jobs and begins the cron loop
func (s *Scheduler) Start() error {
	if err := s.scheduleJob("freshness-audit", s.config.FreshnessAuditSpec, s.runFreshnessAudit); err != nil {
		return fmt.Errorf("scheduling freshness audit: %w", err)
	}
	if err := s.scheduleJob("reputation-decay", s.config.ReputationDecaySpec, s.runReputationDecay); err != nil {
		return fmt.Errorf("scheduling reputation decay: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Maintenance scheduler started",
		zap.String("freshnessAudit", s.config.FreshnessAuditSpec),
		zap.String("reputationDecay", s.config.ReputationDecaySpec))
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping maintenance scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) scheduleJob(name, spec string, runFn func() error) error {
	job := &Job{
		Name:     name,
		Schedule: spec,
		Status:   JobStatusPending,
		RunFn:    runFn,
	}

	cronID, err := s.cron.AddFunc(spec, func() { s.executeJob(job) })
	if err != nil {
		return fmt.Errorf("adding cron entry for %s: %w", name, err)
	}
	job.CronID = cronID

	s.mu.Lock()
	s.jobs[name] = job
	s.mu.Unlock()

	s.metrics.mu.Lock()
	s.metrics.JobsScheduled++
	s.metrics.mu.Unlock()

	return nil
}

func (s *Scheduler) executeJob(job *Job) {
	s.mu.Lock()
	job.Status = JobStatusRunning
	job.LastRun = time.Now()
	s.mu.Unlock()

	err := job.RunFn()

	s.mu.Lock()
	if err != nil {
		job.Status = JobStatusFailed
		job.Error = err
	} else {
		job.Status = JobStatusComplete
		job.Error = nil
	}
	s.mu.Unlock()

	s.metrics.mu.Lock()
	if err != nil {
		s.metrics.JobsFailed++
	} else {
		s.metrics.JobsCompleted++
	}
	s.metrics.LastUpdate = time.Now()
	s.metrics.mu.Unlock()

	if err != nil {
		s.logger.Error("Maintenance job failed",
			zap.String("job", job.Name),
			zap.Error(err))
	}
}

// runFreshnessAudit logs every pool whose current valuation fell outside the
// freshness window. The audit only observes; it never mutates ledger state.
func (s *Scheduler) runFreshnessAudit() error {
	stale := make([]string, 0)
	for _, poolID := range s.valuations.Pools() {
		if !s.valuations.IsFresh(poolID) {
			stale = append(stale, poolID)
		}
	}

	s.metrics.mu.Lock()
	s.metrics.StalePools = len(stale)
	s.metrics.mu.Unlock()

	if len(stale) > 0 {
		s.logger.Warn("Pools with stale valuations",
			zap.Strings("pools", stale),
			zap.Duration("maxAge", s.valuations.MaxAge()))
	} else {
		s.logger.Debug("Freshness audit clean")
	}
	return nil
}

// runReputationDecay penalizes oracles that have been inactive for longer
// than the configured window
func (s *Scheduler) runReputationDecay() error {
	decayed := s.registry.DecayInactive(s.config.InactivityWindow, s.config.InactivityPenalty)

	s.metrics.mu.Lock()
	s.metrics.DecayedCount = decayed
	s.metrics.mu.Unlock()

	if decayed > 0 {
		s.logger.Info("Applied inactivity reputation decay",
			zap.Int("oracles", decayed),
			zap.Duration("window", s.config.InactivityWindow))
	}
	return nil
}

// GetJob returns a snapshot of a registered job
func (s *Scheduler) GetJob(name string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[name]
	if !ok {
		return Job{}, fmt.Errorf("job not found: %s", name)
	}
	return *job, nil
}

// ListJobs returns snapshots of all registered jobs
func (s *Scheduler) ListJobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	return jobs
}

// GetMetrics returns current scheduler metrics
func (s *Scheduler) GetMetrics() SchedulerMetrics {
	s.metrics.mu.RLock()
	defer s.metrics.mu.RUnlock()

	return SchedulerMetrics{
		JobsScheduled: s.metrics.JobsScheduled,
		JobsCompleted: s.metrics.JobsCompleted,
		JobsFailed:    s.metrics.JobsFailed,
		StalePools:    s.metrics.StalePools,
		DecayedCount:  s.metrics.DecayedCount,
		LastUpdate:    s.metrics.LastUpdate,
	}
}
