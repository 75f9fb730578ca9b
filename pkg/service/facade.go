package service

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"rwa_oracle/pkg/consensus"
	"rwa_oracle/pkg/data"
	"rwa_oracle/pkg/oracle"
	"rwa_oracle/pkg/pause"
	"rwa_oracle/pkg/security"
	"rwa_oracle/pkg/valuation"
)

// Facade is the operation surface of the consensus core. Every mutating
// entry point runs the same pipeline: authorization, pause check, ledger
// operation, registry side effects, event emission. A single mutex
// serializes mutations; all guards run before any state is touched, so a
// failed call leaves no partial changes behind.
type Facade struct {
	access     security.AccessController
	gate       *pause.Gate
	registry   *oracle.Registry
	proofs     *consensus.ProofLedger
	valuations *valuation.Ledger
	events     *EventLog
	mirror     *Mirror
	logger     *zap.Logger
	mu         sync.Mutex
}

// NewFacade wires the core components behind one operation surface. mirror
// may be nil for runs without persistence.
func NewFacade(
	access security.AccessController,
	gate *pause.Gate,
	registry *oracle.Registry,
	proofs *consensus.ProofLedger,
	valuations *valuation.Ledger,
	events *EventLog,
	mirror *Mirror,
	logger *zap.Logger,
) (*Facade, error) {
	if access == nil {
		return nil, fmt.Errorf("access controller is required")
	}
	if gate == nil || registry == nil || proofs == nil || valuations == nil {
		return nil, fmt.Errorf("all core components are required")
	}
	if events == nil {
		return nil, fmt.Errorf("event log is required")
	}

	return &Facade{
		access:     access,
		gate:       gate,
		registry:   registry,
		proofs:     proofs,
		valuations: valuations,
		events:     events,
		mirror:     mirror,
		logger:     logger,
	}, nil
}

// emit records an audit event and queues it for persistence
func (f *Facade) emit(event *data.Event) {
	f.events.Append(event)
	if f.mirror != nil {
		f.mirror.SaveEvent(event)
	}
}

// mirrorOracle queues the oracle's current registry record for persistence
func (f *Facade) mirrorOracle(oracleID string) {
	if f.mirror == nil {
		return
	}
	record, err := f.registry.Get(oracleID)
	if err != nil {
		return
	}
	f.mirror.SaveOracle(record)
}

// mirrorProof queues the pool's current proof record for persistence
func (f *Facade) mirrorProof(poolID string) {
	if f.mirror == nil {
		return
	}
	record, err := f.proofs.Record(poolID)
	if err != nil {
		return
	}
	f.mirror.SaveProof(record)
}

// RegisterOracle admits a new oracle identity at baseline reputation
func (f *Facade) RegisterOracle(caller, oracleID, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.authorize(security.RoleAdmin, caller); err != nil {
		return err
	}

	if err := f.registry.Register(oracleID, role); err != nil {
		return err
	}

	f.mirrorOracle(oracleID)
	f.emit(data.NewEvent(data.EventOracleRegistered, "", caller, map[string]string{
		"oracle": oracleID,
		"role":   role,
	}))
	return nil
}

// DeactivateOracle retires an oracle identity. Its record survives for audit
func (f *Facade) DeactivateOracle(caller, oracleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.authorize(security.RoleAdmin, caller); err != nil {
		return err
	}

	if err := f.registry.Deactivate(oracleID); err != nil {
		return err
	}

	f.mirrorOracle(oracleID)
	f.emit(data.NewEvent(data.EventOracleDeactivated, "", caller, map[string]string{
		"oracle": oracleID,
	}))
	return nil
}

// SubmitProof records the one-shot investment proof for a pool
func (f *Facade) SubmitProof(caller, poolID, proofHash string, amount float64, block uint64, reportURI string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.authorize(security.RoleSubmitter, caller); err != nil {
		return err
	}
	if err := f.checkPause(poolID); err != nil {
		return err
	}

	if err := f.proofs.Submit(poolID, proofHash, amount, caller, block, reportURI); err != nil {
		return err
	}

	f.mirrorProof(poolID)
	f.emit(data.NewEvent(data.EventProofSubmitted, poolID, caller, map[string]string{
		"proofHash": proofHash,
		"amount":    strconv.FormatFloat(amount, 'f', -1, 64),
		"block":     strconv.FormatUint(block, 10),
	}))
	return nil
}

// VoteOnProof casts a verification vote. Returns true when this vote crosses
// the threshold and flips the proof to verified.
func (f *Facade) VoteOnProof(caller, poolID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.authorize(security.RoleOracle, caller); err != nil {
		return false, err
	}
	if err := f.checkPause(poolID); err != nil {
		return false, err
	}

	verified, err := f.proofs.Vote(poolID, caller)
	if err != nil {
		return false, err
	}

	if err := f.registry.AdjustReputation(caller, oracle.VoteReputationBonus); err != nil {
		f.logger.Warn("Failed to credit voter reputation",
			zap.String("oracleID", caller),
			zap.Error(err))
	}
	f.registry.Touch(caller)

	f.mirrorProof(poolID)
	f.mirrorOracle(caller)
	f.emit(data.NewEvent(data.EventProofVoted, poolID, caller, nil))
	if verified {
		f.emit(data.NewEvent(data.EventProofVerified, poolID, caller, map[string]string{
			"verifier": caller,
		}))
	}
	return verified, nil
}

// ChallengeProof resets an unverified proof's vote collection
func (f *Facade) ChallengeProof(caller, poolID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.authorize(security.RoleOracle, caller); err != nil {
		return err
	}
	if err := f.checkPause(poolID); err != nil {
		return err
	}

	if err := f.proofs.Challenge(poolID, caller, reason); err != nil {
		return err
	}

	f.mirrorProof(poolID)
	f.emit(data.NewEvent(data.EventProofChallenged, poolID, caller, map[string]string{
		"reason": reason,
	}))
	return nil
}

// PublishValuation appends a valuation record and updates the current slot
func (f *Facade) PublishValuation(caller, poolID string, value float64) (*data.Valuation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.authorize(security.RoleOracle, caller); err != nil {
		return nil, err
	}
	if !f.registry.IsActive(caller) {
		return nil, fmt.Errorf("oracle %s is not active: %w", caller, data.ErrUnauthorized)
	}
	if err := f.checkPause(poolID); err != nil {
		return nil, err
	}

	record, err := f.valuations.Publish(poolID, value, caller)
	if err != nil {
		return nil, err
	}

	if err := f.registry.AdjustReputation(caller, oracle.PublishReputationBonus); err != nil {
		f.logger.Warn("Failed to credit publisher reputation",
			zap.String("oracleID", caller),
			zap.Error(err))
	}
	f.registry.Touch(caller)

	if f.mirror != nil {
		copied := *record
		f.mirror.SaveValuation(&copied)
	}
	f.mirrorOracle(caller)
	f.emit(data.NewEvent(data.EventValuationPublished, poolID, caller, map[string]string{
		"value": strconv.FormatFloat(value, 'f', -1, 64),
	}))
	return record, nil
}

// PausePool closes the mutation gate for a pool
func (f *Facade) PausePool(caller, poolID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.authorize(security.RoleEmergency, caller); err != nil {
		return err
	}

	if err := f.gate.Pause(poolID); err != nil {
		return err
	}

	f.emit(data.NewEvent(data.EventPoolPaused, poolID, caller, nil))
	return nil
}

// UnpausePool reopens the mutation gate for a pool
func (f *Facade) UnpausePool(caller, poolID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.authorize(security.RoleEmergency, caller); err != nil {
		return err
	}

	if err := f.gate.Unpause(poolID); err != nil {
		return err
	}

	f.emit(data.NewEvent(data.EventPoolUnpaused, poolID, caller, nil))
	return nil
}

// SetMinVerifiers updates the verification threshold for future guard checks
func (f *Facade) SetMinVerifiers(caller string, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.authorize(security.RoleAdmin, caller); err != nil {
		return err
	}

	if err := f.proofs.SetMinVerifiers(n); err != nil {
		return err
	}

	f.emit(data.NewEvent(data.EventConfigUpdated, "", caller, map[string]string{
		"minVerifiers": strconv.Itoa(n),
	}))
	return nil
}

// SetVoteTimelock updates the vote timelock for future guard checks
func (f *Facade) SetVoteTimelock(caller string, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.authorize(security.RoleAdmin, caller); err != nil {
		return err
	}

	if err := f.proofs.SetVoteTimelock(d); err != nil {
		return err
	}

	f.emit(data.NewEvent(data.EventConfigUpdated, "", caller, map[string]string{
		"voteTimelock": d.String(),
	}))
	return nil
}

// SetMaxValuationAge updates the freshness window
func (f *Facade) SetMaxValuationAge(caller string, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.authorize(security.RoleAdmin, caller); err != nil {
		return err
	}

	if err := f.valuations.SetMaxAge(d); err != nil {
		return err
	}

	f.emit(data.NewEvent(data.EventConfigUpdated, "", caller, map[string]string{
		"maxValuationAge": d.String(),
	}))
	return nil
}

// SetOracleReputation administratively overrides an oracle's reputation
func (f *Facade) SetOracleReputation(caller, oracleID string, value uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.authorize(security.RoleAdmin, caller); err != nil {
		return err
	}

	if err := f.registry.SetReputation(oracleID, value); err != nil {
		return err
	}

	f.mirrorOracle(oracleID)
	f.emit(data.NewEvent(data.EventConfigUpdated, "", caller, map[string]string{
		"oracle":     oracleID,
		"reputation": strconv.FormatUint(value, 10),
	}))
	return nil
}

// Read surface. Queries are never gated by pause or roles.

// ProofSummary returns the condensed proof view for a pool
func (f *Facade) ProofSummary(poolID string) (consensus.ProofSummary, error) {
	return f.proofs.Summary(poolID)
}

// ProofDetail returns the full proof view for a pool
func (f *Facade) ProofDetail(poolID string) (consensus.ProofDetail, error) {
	return f.proofs.Detail(poolID)
}

// VoteProgress returns current votes against the required threshold
func (f *Facade) VoteProgress(poolID string) (consensus.VoteProgress, error) {
	return f.proofs.Progress(poolID)
}

// CanVote reports whether the identity could vote on the pool's proof now
func (f *Facade) CanVote(poolID, oracleID string) bool {
	return f.proofs.CanVote(poolID, oracleID)
}

// CurrentValuation returns the pool's current slot, zero-valued if unset
func (f *Facade) CurrentValuation(poolID string) data.Valuation {
	return f.valuations.Current(poolID)
}

// HistoricalValuation returns the active record value nearest to at
func (f *Facade) HistoricalValuation(poolID string, at time.Time) float64 {
	return f.valuations.Historical(poolID, at)
}

// ValuationHistory returns the pool's full publication sequence
func (f *Facade) ValuationHistory(poolID string) []*data.Valuation {
	return f.valuations.History(poolID)
}

// IsFresh reports whether the pool's current valuation is within the window
func (f *Facade) IsFresh(poolID string) bool {
	return f.valuations.IsFresh(poolID)
}

// IsPaused reports the pool's gate state
func (f *Facade) IsPaused(poolID string) bool {
	return f.gate.IsPaused(poolID)
}

// GetOracle returns a copy of the oracle's registry record
func (f *Facade) GetOracle(oracleID string) (*data.Oracle, error) {
	return f.registry.Get(oracleID)
}

// ListActiveOracles returns the current active subset
func (f *Facade) ListActiveOracles() []*data.Oracle {
	return f.registry.ListActive()
}

// RecentEvents returns up to n most recent audit events
func (f *Facade) RecentEvents(n int) []*data.Event {
	return f.events.Recent(n)
}

// Stats aggregates the per-component statistics surfaces
func (f *Facade) Stats() Stats {
	return Stats{
		Registry:  f.registry.GetStats(),
		Consensus: f.proofs.GetStats(),
		Valuation: f.valuations.GetStats(),
	}
}

// Stats bundles the subsystem statistics for operators
type Stats struct {
	Registry  oracle.RegistryStats
	Consensus consensus.ConsensusStats
	Valuation valuation.LedgerStats
}

func (f *Facade) authorize(role security.Role, caller string) error {
	if caller == "" {
		return fmt.Errorf("caller is required: %w", data.ErrInvalidInput)
	}
	if !f.access.HasRole(role, caller) {
		return fmt.Errorf("caller %s lacks role %s: %w", caller, role, data.ErrUnauthorized)
	}
	return nil
}

func (f *Facade) checkPause(poolID string) error {
	if f.access.IsPaused() {
		return fmt.Errorf("system paused: %w", data.ErrPoolPaused)
	}
	return f.gate.Check(poolID)
}
