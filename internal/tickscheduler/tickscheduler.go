// Package tickscheduler implements the tick state machine (C6): a fixed
// period opens an admission window, closes it, integrates movement then
// actions, broadcasts the result, and repeats.
package tickscheduler

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/annel0/tickworld/internal/actions"
	"github.com/annel0/tickworld/internal/chunkindex"
	"github.com/annel0/tickworld/internal/clock"
	"github.com/annel0/tickworld/internal/geometry"
	"github.com/annel0/tickworld/internal/logging"
	"github.com/annel0/tickworld/internal/movement"
	"github.com/annel0/tickworld/internal/worldstate"
)

var tracer = otel.Tracer("tickworld/tickscheduler")

// Phase names the scheduler's state machine position within one cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseOpen
	PhaseClosed
	PhaseIntegrating
	PhaseBroadcast
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseOpen:
		return "open"
	case PhaseClosed:
		return "closed"
	case PhaseIntegrating:
		return "integrating"
	case PhaseBroadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}

// Config fixes the cadence and admission deadline of every cycle.
type Config struct {
	TickDurationMS   int64
	IntentDeadlineMS int64 // relative to OPEN start; must be <= TickDurationMS
	RegenRate        int   // actions.ProcessRegeneration cadence, in ticks
}

// TickResult is everything an observer needs to fan out one completed cycle.
type TickResult struct {
	Tick              int64
	MoveResults       []movement.MoveResult
	CollectResults    []actions.CollectResult
	EatResults        []actions.EatResult
	ObjectChanges     []actions.ObjectChange
	RejectedLateCount int
}

// window accumulates one cycle's admitted intents. A fresh window is
// installed at the start of OPEN and frozen for INTEGRATING.
type window struct {
	openedAtMS int64

	moveOrder    []string
	moveIntents  map[string]geometry.Direction
	collectOrder []string
	collectInt   map[string]actions.CollectIntent
	eatOrder     []string
	eatIntents   map[string]actions.EatIntent

	lateRejections int
}

func newWindow(openedAtMS int64) *window {
	return &window{
		openedAtMS:  openedAtMS,
		moveIntents: make(map[string]geometry.Direction),
		collectInt:  make(map[string]actions.CollectIntent),
		eatIntents:  make(map[string]actions.EatIntent),
	}
}

// TickContext is the per-cycle admission surface handed to intent
// submitters during OPEN. Each family accepts at most one intent per
// entity; the first submission is kept and any later one is rejected.
type TickContext struct {
	mu     sync.Mutex
	w      *window
	clk    clock.Clock
	cfg    Config
	closed bool
}

func (tc *TickContext) admit(nowMS int64) bool {
	if tc.closed {
		return false
	}
	if nowMS-tc.w.openedAtMS >= tc.cfg.IntentDeadlineMS {
		tc.w.lateRejections++
		return false
	}
	return true
}

// SubmitMoveIntent admits a direction for entityID if the window is open
// and the deadline hasn't been reached.
func (tc *TickContext) SubmitMoveIntent(entityID string, dir geometry.Direction) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if !tc.admit(tc.clk.NowMS()) {
		return false
	}
	if _, exists := tc.w.moveIntents[entityID]; exists {
		return false
	}
	tc.w.moveOrder = append(tc.w.moveOrder, entityID)
	tc.w.moveIntents[entityID] = dir
	return true
}

func (tc *TickContext) SubmitCollectIntent(intent actions.CollectIntent) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if !tc.admit(tc.clk.NowMS()) {
		return false
	}
	if _, exists := tc.w.collectInt[intent.EntityID]; exists {
		return false
	}
	tc.w.collectOrder = append(tc.w.collectOrder, intent.EntityID)
	tc.w.collectInt[intent.EntityID] = intent
	return true
}

func (tc *TickContext) SubmitEatIntent(intent actions.EatIntent) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if !tc.admit(tc.clk.NowMS()) {
		return false
	}
	if _, exists := tc.w.eatIntents[intent.EntityID]; exists {
		return false
	}
	tc.w.eatOrder = append(tc.w.eatOrder, intent.EntityID)
	tc.w.eatIntents[intent.EntityID] = intent
	return true
}

// close freezes the context so no further submissions are admitted,
// returning the window for integration.
func (tc *TickContext) close() *window {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.closed = true
	return tc.w
}

// Scheduler drives the IDLE->OPEN->CLOSED->INTEGRATING->BROADCAST cycle
// against one world+chunk index pair.
type Scheduler struct {
	world    *worldstate.World
	index    *chunkindex.Index
	resolver *movement.Resolver
	actor    *actions.Integrator
	clk      clock.Clock
	cfg      Config
	log      *logging.Logger

	mu    sync.Mutex
	phase Phase
	ctx   *TickContext

	onTickStart    []func(tick int64)
	onTickComplete []func(TickResult)
}

func NewScheduler(world *worldstate.World, index *chunkindex.Index, clk clock.Clock, cfg Config) *Scheduler {
	return &Scheduler{
		world:    world,
		index:    index,
		resolver: movement.NewResolver(world, index),
		actor:    actions.NewIntegrator(world, index),
		clk:      clk,
		cfg:      cfg,
		log:      logging.GetComponentLogger("tickscheduler"),
		phase:    PhaseIdle,
	}
}

// OnTickStart registers a hook invoked at the beginning of OPEN, before any
// intent is admitted.
func (s *Scheduler) OnTickStart(fn func(tick int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTickStart = append(s.onTickStart, fn)
}

// OnTickComplete registers a hook invoked after BROADCAST, once per cycle.
func (s *Scheduler) OnTickComplete(fn func(TickResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTickComplete = append(s.onTickComplete, fn)
}

func (s *Scheduler) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Open begins OPEN for the current tick, returning the context submitters
// use to admit intents until the deadline.
func (s *Scheduler) Open() *TickContext {
	s.mu.Lock()
	tick := s.world.Tick()
	s.phase = PhaseOpen
	s.ctx = &TickContext{w: newWindow(s.clk.NowMS()), clk: s.clk, cfg: s.cfg}
	hooks := append([]func(tick int64){}, s.onTickStart...)
	ctx := s.ctx
	s.mu.Unlock()

	for _, h := range hooks {
		h(tick)
	}
	return ctx
}

// RunCycle closes admission, integrates movement then actions, fires
// on-tick-complete hooks with the integrated tick's result, and then advances
// the tick counter. Intended to be called once
// the intent deadline has elapsed for the context returned by Open.
func (s *Scheduler) RunCycle() TickResult {
	s.mu.Lock()
	s.phase = PhaseClosed
	ctx := s.ctx
	s.mu.Unlock()

	w := ctx.close()

	s.mu.Lock()
	s.phase = PhaseIntegrating
	s.mu.Unlock()

	_, span := tracer.Start(context.Background(), "tick.integrate")
	span.SetAttributes(attribute.Int64("tick.id", s.world.Tick()))

	moveResults := s.resolver.Process(w.moveIntents, w.moveOrder)
	collectResults, collectChanges := s.actor.ProcessCollect(w.collectInt, w.collectOrder)
	eatResults := s.actor.ProcessEat(w.eatIntents, w.eatOrder)
	regenChanges := s.actor.ProcessRegeneration(s.world.Tick(), s.cfg.RegenRate)
	span.End()

	tick := s.world.Tick()

	s.mu.Lock()
	s.phase = PhaseBroadcast
	hooks := append([]func(TickResult){}, s.onTickComplete...)
	s.mu.Unlock()

	result := TickResult{
		Tick:              tick,
		MoveResults:       moveResults,
		CollectResults:    collectResults,
		EatResults:        eatResults,
		ObjectChanges:     append(collectChanges, regenChanges...),
		RejectedLateCount: w.lateRejections,
	}

	for _, h := range hooks {
		h(result)
	}
	s.world.AdvanceTick()

	s.mu.Lock()
	s.phase = PhaseIdle
	s.mu.Unlock()

	if s.log != nil {
		s.log.Debug("tick %d complete: %d moves, %d collects, %d eats, %d late-rejected",
			tick, len(moveResults), len(collectResults), len(eatResults), result.RejectedLateCount)
	}
	return result
}
