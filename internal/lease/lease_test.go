package lease

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/annel0/tickworld/internal/clock"
)

func TestAcquireThenRejectDifferentController(t *testing.T) {
	fake := clock.NewFake(0)
	m := NewManager(fake, 1000)

	_, err := m.Acquire("e1", "alice")
	require.NoError(t, err)

	_, err = m.Acquire("e1", "bob")
	require.Error(t, err)
}

func TestAcquireIsIdempotentForSameController(t *testing.T) {
	fake := clock.NewFake(0)
	m := NewManager(fake, 1000)

	first, err := m.Acquire("e1", "alice")
	require.NoError(t, err)
	fake.Advance(500)
	second, err := m.Acquire("e1", "alice")
	require.NoError(t, err)

	require.Equal(t, first.LeaseID, second.LeaseID)
	require.Greater(t, second.ExpiresAtMS, first.ExpiresAtMS)
}

func TestExpiredLeaseCanBeReacquiredByAnyone(t *testing.T) {
	fake := clock.NewFake(0)
	m := NewManager(fake, 100)

	first, err := m.Acquire("e1", "alice")
	require.NoError(t, err)
	fake.Advance(200)

	second, err := m.Acquire("e1", "bob")
	require.NoError(t, err)
	require.NotEqual(t, first.LeaseID, second.LeaseID)
}

func TestRenewExtendsExpiry(t *testing.T) {
	fake := clock.NewFake(0)
	m := NewManager(fake, 1000)
	l, err := m.Acquire("e1", "alice")
	require.NoError(t, err)

	fake.Advance(500)
	renewed, err := m.Renew(l.LeaseID)
	require.NoError(t, err)
	require.Greater(t, renewed.ExpiresAtMS, l.ExpiresAtMS)
}

func TestReleaseFreesEntityImmediately(t *testing.T) {
	fake := clock.NewFake(0)
	m := NewManager(fake, 1000)
	l, err := m.Acquire("e1", "alice")
	require.NoError(t, err)

	require.True(t, m.Release(l.LeaseID))
	_, ok := m.GetLeaseForEntity("e1")
	require.False(t, ok)

	_, err = m.Acquire("e1", "bob")
	require.NoError(t, err)
}

func TestIsValidLeaseRejectsWrongEntity(t *testing.T) {
	fake := clock.NewFake(0)
	m := NewManager(fake, 1000)
	l, err := m.Acquire("e1", "alice")
	require.NoError(t, err)

	require.True(t, m.IsValidLease(l.LeaseID, "e1"))
	require.False(t, m.IsValidLease(l.LeaseID, "e2"))
}

func TestCleanupExpiredSweepsOnlyExpired(t *testing.T) {
	fake := clock.NewFake(0)
	m := NewManager(fake, 100)
	_, err := m.Acquire("e1", "alice")
	require.NoError(t, err)
	_, err = m.Acquire("e2", "bob")
	require.NoError(t, err)

	fake.Advance(50)
	_, err = m.Renew(func() string { l, _ := m.GetLeaseForEntity("e2"); return l.LeaseID }())
	require.NoError(t, err)

	fake.Advance(75)
	evicted := m.CleanupExpired()
	require.Equal(t, 1, evicted)
	_, ok := m.GetLeaseForEntity("e2")
	require.True(t, ok)
}
