// Package movement implements the claim/resolve/enact conflict resolution
// pipeline (C4): validate each submitted direction against the store, then
// settle swaps, cycles, same-destination races, and non-mover occupancy in
// a fixed, test-pinned order.
package movement

import (
	"sort"

	"github.com/annel0/tickworld/internal/chunkindex"
	"github.com/annel0/tickworld/internal/geometry"
	"github.com/annel0/tickworld/internal/worldstate"
)

// FailureReason tags why a claim was rejected or lost conflict resolution.
type FailureReason string

const (
	ReasonNone                    FailureReason = ""
	ReasonSwapConflict            FailureReason = "swap_conflict"
	ReasonCycleConflict           FailureReason = "cycle_conflict"
	ReasonSameDestinationConflict FailureReason = "same_destination_conflict"
	ReasonDestinationOccupied     FailureReason = "destination_occupied"
)

// MoveClaim is a validated intent ready for conflict resolution.
type MoveClaim struct {
	EntityID  string
	From, To  geometry.Position
	Direction geometry.Direction
	failed    bool
	reason    FailureReason
}

// MoveResult is the outcome of one submitted move intent, emitted in
// insertion order for every intent that passed Phase A validation.
type MoveResult struct {
	EntityID string
	Success  bool
	From, To geometry.Position
	Reason   FailureReason
}

// Resolver runs the movement phase against a world+chunk index pair.
type Resolver struct {
	world *worldstate.World
	index *chunkindex.Index
}

func NewResolver(world *worldstate.World, index *chunkindex.Index) *Resolver {
	return &Resolver{world: world, index: index}
}

// Process runs Phase A (validate), Phase B (resolve), and Phase C (enact)
// for the given entity->direction intents collected during one tick's
// admission window. intentOrder fixes the insertion order of the returned
// results (map iteration order is not deterministic in Go).
func (r *Resolver) Process(intents map[string]geometry.Direction, intentOrder []string) []MoveResult {
	claims := r.validate(intents, intentOrder)
	r.resolve(claims)
	return r.enact(claims)
}

// validate runs Phase A. Rejected intents are silently dropped: no claim,
// no result.
func (r *Resolver) validate(intents map[string]geometry.Direction, order []string) []*MoveClaim {
	var claims []*MoveClaim
	for _, entityID := range order {
		dir, ok := intents[entityID]
		if !ok {
			continue
		}
		e, err := r.world.GetEntity(entityID)
		if err != nil {
			continue
		}
		from := e.Position
		to := from.Offset(dir)

		if !r.world.InBounds(to) {
			continue
		}
		if !r.world.IsWalkable(to) {
			continue
		}
		if d1, d2, isDiagonal := dir.Components(); isDiagonal {
			if !r.world.IsWalkable(from.Offset(d1)) || !r.world.IsWalkable(from.Offset(d2)) {
				continue
			}
		}
		claims = append(claims, &MoveClaim{EntityID: entityID, From: from, To: to, Direction: dir})
	}
	return claims
}

// resolve runs Phase B's four rules in the exact order the spec pins so
// that implementations agree on failure reasons, not just final positions.
func (r *Resolver) resolve(claims []*MoveClaim) {
	byEntity := make(map[string]*MoveClaim, len(claims))
	for _, c := range claims {
		byEntity[c.EntityID] = c
	}

	// Rule 1: swap detection (pairwise mutual displacement).
	for _, c := range claims {
		if c.failed {
			continue
		}
		for _, other := range claims {
			if other == c || other.failed {
				continue
			}
			if other.From == c.To && other.To == c.From {
				c.failed, c.reason = true, ReasonSwapConflict
				other.failed, other.reason = true, ReasonSwapConflict
			}
		}
	}

	// Rule 2: cycle detection for cycles of length > 2, walked by index
	// over entity ids (not object references) per the redesign note.
	r.detectCycles(claims, byEntity)

	// Rule 3: same-destination race, lexicographic entity_id tie-break.
	destClaims := make(map[geometry.Position][]*MoveClaim)
	for _, c := range claims {
		if c.failed {
			continue
		}
		destClaims[c.To] = append(destClaims[c.To], c)
	}
	winners := make(map[geometry.Position]*MoveClaim)
	for dest, group := range destClaims {
		if len(group) == 1 {
			winners[dest] = group[0]
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].EntityID < group[j].EntityID })
		winners[dest] = group[0]
		for _, loser := range group[1:] {
			loser.failed, loser.reason = true, ReasonSameDestinationConflict
		}
	}

	// Rule 4: non-mover occupancy. A winner whose destination holds an
	// entity that isn't itself a mover this tick loses the destination;
	// rivals it already beat in rule 3 are not revived ("conflicts first,
	// physics last").
	for dest, winner := range winners {
		occupant, ok := r.world.GetEntityAt(dest)
		if !ok {
			continue
		}
		if _, occupantIsMover := byEntity[occupant.EntityID]; occupantIsMover {
			continue
		}
		winner.failed, winner.reason = true, ReasonDestinationOccupied
	}
}

func (r *Resolver) detectCycles(claims []*MoveClaim, byEntity map[string]*MoveClaim) {
	posToEntity := make(map[geometry.Position]string, len(claims))
	for _, c := range claims {
		if !c.failed {
			posToEntity[c.From] = c.EntityID
		}
	}

	visitedGlobal := make(map[string]bool, len(claims))
	for _, start := range claims {
		if start.failed || visitedGlobal[start.EntityID] {
			continue
		}
		var chain []string
		chainIndex := make(map[string]int)
		current := start.EntityID
		for {
			if visitedGlobal[current] {
				break
			}
			if idx, seen := chainIndex[current]; seen {
				cycle := chain[idx:]
				if len(cycle) > 2 {
					for _, id := range cycle {
						c := byEntity[id]
						c.failed, c.reason = true, ReasonCycleConflict
					}
				}
				break
			}
			chainIndex[current] = len(chain)
			chain = append(chain, current)

			c, ok := byEntity[current]
			if !ok || c.failed {
				break
			}
			nextEntity, ok := posToEntity[c.To]
			if !ok {
				break
			}
			next, ok := byEntity[nextEntity]
			if !ok || next.failed {
				break
			}
			current = nextEntity
		}
		for _, id := range chain {
			visitedGlobal[id] = true
		}
	}
}

// enact applies every successful claim to the store and chunk index,
// building the result vector in the original intent order.
func (r *Resolver) enact(claims []*MoveClaim) []MoveResult {
	results := make([]MoveResult, 0, len(claims))
	for _, c := range claims {
		if c.failed {
			results = append(results, MoveResult{EntityID: c.EntityID, Success: false, From: c.From, To: c.From, Reason: c.reason})
			continue
		}
		if err := r.world.UpdateEntityPosition(c.EntityID, c.To); err != nil {
			results = append(results, MoveResult{EntityID: c.EntityID, Success: false, From: c.From, To: c.From, Reason: ReasonDestinationOccupied})
			continue
		}
		r.index.UpdateEntityPosition(c.EntityID, c.From, c.To)
		results = append(results, MoveResult{EntityID: c.EntityID, Success: true, From: c.From, To: c.To})
	}
	return results
}
