// Package lease implements the time-based exclusive control tokens (C7)
// that gate intent admission: acquire/renew/release/expiry with a
// single-controller-per-entity invariant.
package lease

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/annel0/tickworld/internal/clock"
)

const DefaultDurationMS int64 = 30_000

// Lease is a time-bounded exclusive-control token binding one controller
// to one entity.
type Lease struct {
	LeaseID      string
	EntityID     string
	ControllerID string
	AcquiredAtMS int64
	ExpiresAtMS  int64
}

func (l Lease) IsExpired(nowMS int64) bool {
	return nowMS >= l.ExpiresAtMS
}

// Manager owns the lease table: lease_id->Lease and entity_id->lease_id.
type Manager struct {
	mu          sync.Mutex
	clock       clock.Clock
	durationMS  int64
	leases      map[string]Lease
	entityLease map[string]string
}

func NewManager(clk clock.Clock, durationMS int64) *Manager {
	if durationMS <= 0 {
		durationMS = DefaultDurationMS
	}
	return &Manager{
		clock:       clk,
		durationMS:  durationMS,
		leases:      make(map[string]Lease),
		entityLease: make(map[string]string),
	}
}

// Acquire returns a fresh or renewed Lease, or an error describing why
// acquisition failed (a different controller already holds the entity).
func (m *Manager) Acquire(entityID, controllerID string) (Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.NowMS()

	if leaseID, ok := m.entityLease[entityID]; ok {
		existing := m.leases[leaseID]
		if !existing.IsExpired(now) {
			if existing.ControllerID == controllerID {
				return m.renewLocked(leaseID, now), nil
			}
			return Lease{}, fmt.Errorf("entity already leased by %s", existing.ControllerID)
		}
		m.removeLocked(leaseID)
	}

	l := Lease{
		LeaseID:      uuid.NewString(),
		EntityID:     entityID,
		ControllerID: controllerID,
		AcquiredAtMS: now,
		ExpiresAtMS:  now + m.durationMS,
	}
	m.leases[l.LeaseID] = l
	m.entityLease[entityID] = l.LeaseID
	return l, nil
}

// Renew extends an existing lease's expiry, failing if it's gone or
// expired (an expired lease found here is swept on the spot).
func (m *Manager) Renew(leaseID string) (Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leases[leaseID]
	if !ok {
		return Lease{}, fmt.Errorf("lease not found")
	}
	now := m.clock.NowMS()
	if l.IsExpired(now) {
		m.removeLocked(leaseID)
		return Lease{}, fmt.Errorf("lease expired")
	}
	return m.renewLocked(leaseID, now), nil
}

func (m *Manager) renewLocked(leaseID string, now int64) Lease {
	l := m.leases[leaseID]
	l.ExpiresAtMS = now + m.durationMS
	m.leases[leaseID] = l
	return l
}

// Release removes a lease best-effort, reporting whether anything was
// removed.
func (m *Manager) Release(leaseID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.leases[leaseID]; !ok {
		return false
	}
	m.removeLocked(leaseID)
	return true
}

func (m *Manager) removeLocked(leaseID string) {
	l, ok := m.leases[leaseID]
	if !ok {
		return
	}
	delete(m.leases, leaseID)
	if m.entityLease[l.EntityID] == leaseID {
		delete(m.entityLease, l.EntityID)
	}
}

// GetLease returns a lease by id, sweeping it first if expired.
func (m *Manager) GetLease(leaseID string) (Lease, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leases[leaseID]
	if !ok {
		return Lease{}, false
	}
	if l.IsExpired(m.clock.NowMS()) {
		m.removeLocked(leaseID)
		return Lease{}, false
	}
	return l, true
}

// GetLeaseForEntity returns the live lease for an entity, if any.
func (m *Manager) GetLeaseForEntity(entityID string) (Lease, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	leaseID, ok := m.entityLease[entityID]
	if !ok {
		return Lease{}, false
	}
	l := m.leases[leaseID]
	if l.IsExpired(m.clock.NowMS()) {
		m.removeLocked(leaseID)
		return Lease{}, false
	}
	return l, true
}

// IsValidLease is the precondition checked before admitting any intent or
// streaming any observation.
func (m *Manager) IsValidLease(leaseID, entityID string) bool {
	l, ok := m.GetLease(leaseID)
	return ok && l.EntityID == entityID
}

// CleanupExpired sweeps all expired leases, invoked from the tick-complete
// hook. Returns the number evicted.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.NowMS()
	var expired []string
	for id, l := range m.leases {
		if l.IsExpired(now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		m.removeLocked(id)
	}
	return len(expired)
}
