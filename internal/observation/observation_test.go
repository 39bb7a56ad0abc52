package observation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/annel0/tickworld/internal/clock"
	"github.com/annel0/tickworld/internal/geometry"
	"github.com/annel0/tickworld/internal/lease"
	"github.com/annel0/tickworld/internal/worldstate"
)

func TestStreamObservationsRejectsInvalidLease(t *testing.T) {
	world := worldstate.NewWorld(10, 10)
	leases := lease.NewManager(clock.NewFake(0), 1000)
	svc := NewService(world, leases, 5)

	_, err := svc.StreamObservations("e1", "bogus-lease")
	require.Error(t, err)
}

func TestBroadcastDeliversToSubscriber(t *testing.T) {
	world := worldstate.NewWorld(10, 10)
	require.NoError(t, world.AddEntity(worldstate.Entity{EntityID: "e1", Position: geometry.Position{X: 5, Y: 5}}))
	fake := clock.NewFake(0)
	leases := lease.NewManager(fake, 1000)
	l, err := leases.Acquire("e1", "controller-1")
	require.NoError(t, err)

	svc := NewService(world, leases, 3)
	sub, err := svc.StreamObservations("e1", l.LeaseID)
	require.NoError(t, err)

	svc.Broadcast(7, 100)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	obs, err := sub.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(7), obs.TickID)
	require.Equal(t, "e1", obs.Self.EntityID)
}

func TestBroadcastDropsExpiredLeaseSubscriber(t *testing.T) {
	world := worldstate.NewWorld(10, 10)
	require.NoError(t, world.AddEntity(worldstate.Entity{EntityID: "e1", Position: geometry.Position{X: 5, Y: 5}}))
	fake := clock.NewFake(0)
	leases := lease.NewManager(fake, 100)
	l, err := leases.Acquire("e1", "controller-1")
	require.NoError(t, err)

	svc := NewService(world, leases, 3)
	_, err = svc.StreamObservations("e1", l.LeaseID)
	require.NoError(t, err)
	require.Equal(t, 1, svc.SubscriberCount())

	fake.Advance(200)
	svc.Broadcast(1, 100)
	require.Equal(t, 0, svc.SubscriberCount())
}

func TestMailboxDropsOldestWhenFull(t *testing.T) {
	sub := newSubscriber("e1", "lease-1")
	for i := 0; i < defaultMailboxSize+2; i++ {
		sub.deliver(Observation{TickID: int64(i)})
	}
	ctx := context.Background()
	obs, err := sub.Next(ctx)
	require.NoError(t, err)
	require.Greater(t, obs.TickID, int64(0), "oldest entries should have been dropped")
}
