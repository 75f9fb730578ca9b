package security

import (
	"sync"
)

// Role labels used by the consensus facade's authorization checks
type Role string

const (
	RoleSubmitter Role = "submitter"
	RoleOracle    Role = "oracle"
	RoleAdmin     Role = "administrator"
	RoleEmergency Role = "emergency"
)

// AccessController is the external access collaborator consumed by the
// consensus facade. Implementations decide who may call what; the core only
// asks.
type AccessController interface {
	HasRole(role Role, caller string) bool
	IsPaused() bool
}

// StaticAccess is an AccessController backed by an explicit grant table.
// Suitable for embedding setups and tests.
type StaticAccess struct {
	grants map[string]map[Role]bool
	paused bool
	mu     sync.RWMutex
}

var _ AccessController = (*StaticAccess)(nil)

// NewStaticAccess creates an empty grant table
func NewStaticAccess() *StaticAccess {
	return &StaticAccess{
		grants: make(map[string]map[Role]bool),
	}
}

// Grant assigns roles to a caller
func (s *StaticAccess) Grant(caller string, roles ...Role) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grants[caller] == nil {
		s.grants[caller] = make(map[Role]bool)
	}
	for _, role := range roles {
		s.grants[caller][role] = true
	}
}

// Revoke removes roles from a caller
func (s *StaticAccess) Revoke(caller string, roles ...Role) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, role := range roles {
		delete(s.grants[caller], role)
	}
}

// HasRole reports whether the caller holds the role
func (s *StaticAccess) HasRole(role Role, caller string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grants[caller][role]
}

// SetPaused toggles the global pause flag
func (s *StaticAccess) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
}

// IsPaused reports the global pause flag
func (s *StaticAccess) IsPaused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

// MultiAccess combines several controllers into one. A role is granted when
// any member grants it; the system is paused when any member reports paused.
// Used to run token-admitted callers alongside a statically seeded grant
// table.
type MultiAccess struct {
	controllers []AccessController
}

var _ AccessController = (*MultiAccess)(nil)

// NewMultiAccess creates a controller consulting the given members in order
func NewMultiAccess(controllers ...AccessController) *MultiAccess {
	return &MultiAccess{controllers: controllers}
}

// HasRole reports whether any member grants the role to the caller
func (m *MultiAccess) HasRole(role Role, caller string) bool {
	for _, controller := range m.controllers {
		if controller.HasRole(role, caller) {
			return true
		}
	}
	return false
}

// IsPaused reports whether any member holds the system paused
func (m *MultiAccess) IsPaused() bool {
	for _, controller := range m.controllers {
		if controller.IsPaused() {
			return true
		}
	}
	return false
}
