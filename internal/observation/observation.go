// Package observation implements the agent observation and viewer
// fan-out (C8): a bounded per-subscriber mailbox of per-tick snapshots,
// gated by lease validity, plus chunk-subscription diffing for viewers.
package observation

import (
	"context"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/annel0/tickworld/internal/geometry"
	"github.com/annel0/tickworld/internal/lease"
	"github.com/annel0/tickworld/internal/logging"
	"github.com/annel0/tickworld/internal/worldstate"
)

// defaultMailboxSize bounds how many pending snapshots a subscriber can
// accumulate before the oldest is dropped in favor of the newest.
const defaultMailboxSize = 4

// Observation is a single agent's per-tick snapshot: every other entity is
// visible, with no line-of-sight filtering.
type Observation struct {
	TickID          int64
	DeadlineMS      int64
	Self            worldstate.Entity
	VisibleEntities []worldstate.Entity
	VisibleTiles    []worldstate.Tile
}

// Subscriber holds one agent's bounded mailbox of pending observations.
type Subscriber struct {
	EntityID string
	LeaseID  string
	mailbox  chan Observation
}

func newSubscriber(entityID, leaseID string) *Subscriber {
	return &Subscriber{
		EntityID: entityID,
		LeaseID:  leaseID,
		mailbox:  make(chan Observation, defaultMailboxSize),
	}
}

// deliver enqueues obs, dropping the oldest pending snapshot if the
// subscriber's mailbox is full rather than blocking the broadcaster.
func (s *Subscriber) deliver(obs Observation) {
	select {
	case s.mailbox <- obs:
	default:
		select {
		case <-s.mailbox:
		default:
		}
		select {
		case s.mailbox <- obs:
		default:
		}
	}
}

// Next blocks until an observation is available or ctx is cancelled.
func (s *Subscriber) Next(ctx context.Context) (Observation, error) {
	select {
	case obs := <-s.mailbox:
		return obs, nil
	case <-ctx.Done():
		return Observation{}, ctx.Err()
	}
}

// Service fans out per-tick observations to subscribed agents, gated by
// lease validity at subscribe time and on every broadcast.
type Service struct {
	world      *worldstate.World
	leases     *lease.Manager
	tileRadius int

	mu          sync.Mutex
	subscribers map[string]*Subscriber

	log *logging.Logger
}

func NewService(world *worldstate.World, leases *lease.Manager, tileRadius int) *Service {
	return &Service{
		world:       world,
		leases:      leases,
		tileRadius:  tileRadius,
		subscribers: make(map[string]*Subscriber),
		log:         logging.GetComponentLogger("observation"),
	}
}

// StreamObservations validates the lease and, on success, registers a new
// subscriber for entityID, returning it for the caller to pull from until
// ctx is cancelled or the lease expires. Mirrors the logical RPC's
// PERMISSION_DENIED contract via grpc/status for transport-agnostic reuse.
func (s *Service) StreamObservations(entityID, leaseID string) (*Subscriber, error) {
	if !s.leases.IsValidLease(leaseID, entityID) {
		return nil, status.Error(codes.PermissionDenied, "invalid lease")
	}
	sub := newSubscriber(entityID, leaseID)
	s.mu.Lock()
	s.subscribers[entityID] = sub
	s.mu.Unlock()
	s.log.Info("observation stream started for entity=%s", entityID)
	return sub, nil
}

// EndStream deregisters entityID's subscriber, called when the caller's
// context is done or the lease is found to have expired mid-stream.
func (s *Service) EndStream(entityID string) {
	s.mu.Lock()
	delete(s.subscribers, entityID)
	s.mu.Unlock()
	s.log.Info("observation stream ended for entity=%s", entityID)
}

// Broadcast generates and delivers one observation per active subscriber,
// called at the start of each tick (on_tick_start), before the intent
// deadline, so agents see deadlineMS and can submit in time. Subscribers
// whose lease has expired are dropped rather than delivered to.
func (s *Service) Broadcast(tickID, deadlineMS int64) {
	s.mu.Lock()
	targets := make([]*Subscriber, 0, len(s.subscribers))
	for entityID, sub := range s.subscribers {
		if !s.leases.IsValidLease(sub.LeaseID, entityID) {
			delete(s.subscribers, entityID)
			continue
		}
		targets = append(targets, sub)
	}
	s.mu.Unlock()

	for _, sub := range targets {
		obs, ok := s.generate(sub.EntityID, tickID, deadlineMS)
		if !ok {
			continue
		}
		sub.deliver(obs)
	}
}

func (s *Service) generate(entityID string, tickID, deadlineMS int64) (Observation, bool) {
	self, err := s.world.GetEntity(entityID)
	if err != nil {
		return Observation{}, false
	}

	all := s.world.AllEntities()
	visible := make([]worldstate.Entity, 0, len(all))
	for id, e := range all {
		if id != entityID {
			visible = append(visible, e)
		}
	}

	tiles := s.nearbyTiles(self.Position, s.tileRadius)

	return Observation{
		TickID:          tickID,
		DeadlineMS:      deadlineMS,
		Self:            self,
		VisibleEntities: visible,
		VisibleTiles:    tiles,
	}, true
}

func (s *Service) nearbyTiles(center geometry.Position, radius int) []worldstate.Tile {
	var tiles []worldstate.Tile
	for dx := -radius; dx <= radius; dx++ {
		for dy := -radius; dy <= radius; dy++ {
			p := geometry.Position{X: center.X + dx, Y: center.Y + dy}
			if !s.world.InBounds(p) {
				continue
			}
			tiles = append(tiles, s.world.GetTile(p))
		}
	}
	return tiles
}

// SubscriberCount reports active agent subscriptions, for metrics.
func (s *Service) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}
