// Package rpcapi defines the logical RPC surface (§6): request/response
// shapes and a Service implementation wiring the world, lease manager,
// open tick context, observation service, and discovery registry behind
// a transport-agnostic interface. Wire encoding is out of scope; any gRPC
// transport binds these methods to generated stubs at the edge.
package rpcapi

import (
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/annel0/tickworld/internal/actions"
	"github.com/annel0/tickworld/internal/geometry"
	"github.com/annel0/tickworld/internal/lease"
	"github.com/annel0/tickworld/internal/logging"
	"github.com/annel0/tickworld/internal/observation"
	"github.com/annel0/tickworld/internal/tickscheduler"
	"github.com/annel0/tickworld/internal/worldstate"
)

// ControllableEntity is one entry of ListControllableEntities' response.
type ControllableEntity struct {
	EntityID       string
	EntityType     string
	Tags           []string
	SpawnTick      int64
	HasActiveLease bool
}

type AcquireLeaseRequest struct {
	EntityID     string
	ControllerID string
}

type LeaseResponse struct {
	Success     bool
	Reason      string
	LeaseID     string
	ExpiresAtMS int64
}

type RenewLeaseRequest struct {
	LeaseID string
}

type ReleaseLeaseRequest struct {
	LeaseID string
}

type ReleaseLeaseResponse struct {
	Success bool
}

// SubmitIntentRequest carries exactly one of the three intent families,
// selected by Kind.
type SubmitIntentRequest struct {
	LeaseID  string
	EntityID string
	TickID   int64
	Kind     IntentKind
	Move     geometry.Direction
	Collect  actions.CollectIntent
	Eat      actions.EatIntent
}

type IntentKind int

const (
	IntentMove IntentKind = iota
	IntentCollect
	IntentEat
)

type SubmitIntentResponse struct {
	Accepted bool
	Reason   string
}

// TickEvent announces a new admission window to StreamTicks subscribers.
type TickEvent struct {
	TickID           int64
	TickStartMS      int64
	IntentDeadlineMS int64
	TickDurationMS   int64
	WorldVersion     int64
}

// tickMailboxSize bounds pending tick events per StreamTicks subscriber.
const tickMailboxSize = 4

// TickSubscriber is a bounded per-caller mailbox of tick events, the
// StreamTicks analogue of observation.Subscriber.
type TickSubscriber struct {
	mailbox chan TickEvent
}

func (t *TickSubscriber) deliver(ev TickEvent) {
	select {
	case t.mailbox <- ev:
	default:
		select {
		case <-t.mailbox:
		default:
		}
		select {
		case t.mailbox <- ev:
		default:
		}
	}
}

// Next returns the next tick event, blocking until one arrives.
func (t *TickSubscriber) Next() TickEvent {
	return <-t.mailbox
}

// Service is the logical RPC surface implementation. Discovery's spawn-tick
// tracking lives here directly since it has no other natural home.
type Service struct {
	world     *worldstate.World
	leases    *lease.Manager
	scheduler *tickscheduler.Scheduler
	obs       *observation.Service
	log       *logging.Logger

	mu         sync.Mutex
	spawnTicks map[string]int64
	currentCtx *tickscheduler.TickContext
	tickSubs   map[*TickSubscriber]struct{}
}

func NewService(world *worldstate.World, leases *lease.Manager, scheduler *tickscheduler.Scheduler, obs *observation.Service) *Service {
	return &Service{
		world:      world,
		leases:     leases,
		scheduler:  scheduler,
		obs:        obs,
		spawnTicks: make(map[string]int64),
		tickSubs:   make(map[*TickSubscriber]struct{}),
		log:        logging.GetComponentLogger("rpcapi"),
	}
}

// StreamTicks registers a new subscriber for tick-open announcements.
func (s *Service) StreamTicks() *TickSubscriber {
	sub := &TickSubscriber{mailbox: make(chan TickEvent, tickMailboxSize)}
	s.mu.Lock()
	s.tickSubs[sub] = struct{}{}
	s.mu.Unlock()
	return sub
}

// EndTickStream deregisters a StreamTicks subscriber.
func (s *Service) EndTickStream(sub *TickSubscriber) {
	s.mu.Lock()
	delete(s.tickSubs, sub)
	s.mu.Unlock()
}

// BroadcastTickOpen fans TickEvent out to every StreamTicks subscriber.
// Wired as a scheduler OnTickStart hook.
func (s *Service) BroadcastTickOpen(ev TickEvent) {
	s.mu.Lock()
	subs := make([]*TickSubscriber, 0, len(s.tickSubs))
	for sub := range s.tickSubs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()
	for _, sub := range subs {
		sub.deliver(ev)
	}
}

// RegisterEntitySpawn records the tick an entity was created, for
// ListControllableEntities' spawn_tick field. Call this alongside
// world.AddEntity.
func (s *Service) RegisterEntitySpawn(entityID string, spawnTick int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawnTicks[entityID] = spawnTick
}

// SetActiveTickContext installs the context submitted intents are admitted
// into; the loop driving the scheduler calls this after each Open().
func (s *Service) SetActiveTickContext(ctx *tickscheduler.TickContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentCtx = ctx
}

func (s *Service) ListControllableEntities() []ControllableEntity {
	all := s.world.AllEntities()
	s.mu.Lock()
	spawnTicks := make(map[string]int64, len(s.spawnTicks))
	for k, v := range s.spawnTicks {
		spawnTicks[k] = v
	}
	s.mu.Unlock()

	out := make([]ControllableEntity, 0, len(all))
	for id, e := range all {
		_, hasLease := s.leases.GetLeaseForEntity(id)
		out = append(out, ControllableEntity{
			EntityID:       id,
			EntityType:     e.EntityType,
			Tags:           e.Tags,
			SpawnTick:      spawnTicks[id],
			HasActiveLease: hasLease,
		})
	}
	return out
}

func (s *Service) AcquireLease(req AcquireLeaseRequest) LeaseResponse {
	if req.EntityID == "" {
		return LeaseResponse{Reason: "entity_id required"}
	}
	if req.ControllerID == "" {
		return LeaseResponse{Reason: "controller_id required"}
	}
	if _, err := s.world.GetEntity(req.EntityID); err != nil {
		return LeaseResponse{Reason: "entity not found"}
	}

	l, err := s.leases.Acquire(req.EntityID, req.ControllerID)
	if err != nil {
		return LeaseResponse{Reason: err.Error()}
	}
	return LeaseResponse{Success: true, LeaseID: l.LeaseID, ExpiresAtMS: l.ExpiresAtMS}
}

func (s *Service) RenewLease(req RenewLeaseRequest) LeaseResponse {
	if req.LeaseID == "" {
		return LeaseResponse{Reason: "lease_id required"}
	}
	l, err := s.leases.Renew(req.LeaseID)
	if err != nil {
		return LeaseResponse{Reason: err.Error()}
	}
	return LeaseResponse{Success: true, LeaseID: l.LeaseID, ExpiresAtMS: l.ExpiresAtMS}
}

func (s *Service) ReleaseLease(req ReleaseLeaseRequest) ReleaseLeaseResponse {
	if req.LeaseID == "" {
		return ReleaseLeaseResponse{}
	}
	return ReleaseLeaseResponse{Success: s.leases.Release(req.LeaseID)}
}

// SubmitIntent validates the caller's lease and tick_id, then admits the
// carried intent into the currently open tick window. Reason tags follow
// the external surface's vocabulary: invalid_lease, no_tick_in_progress,
// wrong_tick, late_or_duplicate, and unknown_action for an unrecognised Kind.
func (s *Service) SubmitIntent(req SubmitIntentRequest) SubmitIntentResponse {
	if !s.leases.IsValidLease(req.LeaseID, req.EntityID) {
		return SubmitIntentResponse{Reason: "invalid_lease"}
	}

	s.mu.Lock()
	ctx := s.currentCtx
	s.mu.Unlock()
	if ctx == nil {
		return SubmitIntentResponse{Reason: "no_tick_in_progress"}
	}
	if req.TickID != s.world.Tick() {
		return SubmitIntentResponse{Reason: "wrong_tick"}
	}

	var accepted bool
	switch req.Kind {
	case IntentMove:
		accepted = ctx.SubmitMoveIntent(req.EntityID, req.Move)
	case IntentCollect:
		accepted = ctx.SubmitCollectIntent(req.Collect)
	case IntentEat:
		accepted = ctx.SubmitEatIntent(req.Eat)
	default:
		return SubmitIntentResponse{Reason: "unknown_action"}
	}
	if !accepted {
		return SubmitIntentResponse{Reason: "late_or_duplicate"}
	}
	return SubmitIntentResponse{Accepted: true}
}

// StreamObservations exposes observation.Service.StreamObservations under
// this package's error convention (grpc/status, for a transport binding to
// translate directly into a stream rejection).
func (s *Service) StreamObservations(entityID, leaseID string) (*observation.Subscriber, error) {
	sub, err := s.obs.StreamObservations(entityID, leaseID)
	if err != nil {
		return nil, status.Error(codes.PermissionDenied, err.Error())
	}
	return sub, nil
}
