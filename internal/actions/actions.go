// Package actions implements the post-movement action integrators (C5):
// collect, eat, and bush regeneration.
package actions

import (
	"sort"
	"strconv"

	"github.com/annel0/tickworld/internal/chunkindex"
	"github.com/annel0/tickworld/internal/worldstate"
)

// CollectIntent requests collection from an object at the entity's
// position (ObjectID empty) or a specific object (ObjectID set).
type CollectIntent struct {
	EntityID string
	ObjectID string // optional
	ItemType string // default "berry"
	Amount   int    // default 1
}

// EatIntent requests consuming items from the entity's own inventory.
type EatIntent struct {
	EntityID string
	ItemType string
	Amount   int
}

type CollectResult struct {
	EntityID       string
	Success        bool
	ObjectID       string
	ItemType       string
	Amount         int
	FailureReason  string
}

type EatResult struct {
	EntityID      string
	Success       bool
	ItemType      string
	Amount        int
	FailureReason string
}

// ObjectChange records one field mutation on a WorldObject, for fan-out.
type ObjectChange struct {
	ObjectID string
	Field    string
	OldValue string
	NewValue string
}

const berryCountKey = "berry_count"
const maxBerriesKey = "max_berries"
const defaultMaxBerries = "5"

// Integrator runs the action phases against a world+chunk index pair.
type Integrator struct {
	world *worldstate.World
	index *chunkindex.Index
}

func NewIntegrator(world *worldstate.World, index *chunkindex.Index) *Integrator {
	return &Integrator{world: world, index: index}
}

// ProcessCollect groups intents by target object, then within each group
// processes claimants in lexicographic entity_id order, depleting
// berry_count and crediting inventories. order fixes intent iteration.
func (in *Integrator) ProcessCollect(intents map[string]CollectIntent, order []string) ([]CollectResult, []ObjectChange) {
	var results []CollectResult
	var changes []ObjectChange

	objectCollectors := make(map[string][]CollectIntent)

	for _, entityID := range order {
		intent, ok := intents[entityID]
		if !ok {
			continue
		}
		entity, err := in.world.GetEntity(entityID)
		if err != nil {
			results = append(results, CollectResult{EntityID: entityID, FailureReason: "entity_not_found"})
			continue
		}

		var targetObjectID string
		if intent.ObjectID != "" {
			obj, err := in.world.GetObject(intent.ObjectID)
			if err != nil {
				results = append(results, CollectResult{EntityID: entityID, FailureReason: "object_not_found"})
				continue
			}
			if obj.Position != entity.Position {
				results = append(results, CollectResult{EntityID: entityID, ObjectID: intent.ObjectID, FailureReason: "object_not_at_position"})
				continue
			}
			targetObjectID = intent.ObjectID
		} else {
			objs := in.world.GetObjectsAt(entity.Position)
			found := ""
			for _, o := range objs {
				if o.ObjectType == "bush" {
					found = o.ObjectID
					break
				}
			}
			if found == "" {
				results = append(results, CollectResult{EntityID: entityID, FailureReason: "no_collectible_object"})
				continue
			}
			targetObjectID = found
		}
		objectCollectors[targetObjectID] = append(objectCollectors[targetObjectID], intent)
	}

	// Deterministic object processing order for test reproducibility.
	objectIDs := make([]string, 0, len(objectCollectors))
	for id := range objectCollectors {
		objectIDs = append(objectIDs, id)
	}
	sort.Strings(objectIDs)

	for _, objectID := range objectIDs {
		collectors := objectCollectors[objectID]
		obj, err := in.world.GetObject(objectID)
		if err != nil {
			continue
		}
		berryCount := atoi(obj.GetState(berryCountKey, "0"))

		sort.Slice(collectors, func(i, j int) bool { return collectors[i].EntityID < collectors[j].EntityID })

		for _, intent := range collectors {
			if berryCount <= 0 {
				results = append(results, CollectResult{EntityID: intent.EntityID, ObjectID: objectID, FailureReason: "no_berries"})
				continue
			}
			itemType := intent.ItemType
			if itemType == "" {
				itemType = "berry"
			}
			amount := intent.Amount
			if amount <= 0 {
				amount = 1
			}
			collectAmount := min(amount, berryCount)
			oldCount := berryCount
			berryCount -= collectAmount

			entity, err := in.world.GetEntity(intent.EntityID)
			if err != nil {
				continue
			}
			_ = in.world.UpdateEntityInventory(intent.EntityID, entity.Inventory.Add(itemType, collectAmount))

			results = append(results, CollectResult{
				EntityID: intent.EntityID, Success: true, ObjectID: objectID,
				ItemType: itemType, Amount: collectAmount,
			})
			changes = append(changes, ObjectChange{ObjectID: objectID, Field: berryCountKey, OldValue: itoa(oldCount), NewValue: itoa(berryCount)})
		}

		_ = in.world.UpdateObject(obj.WithState(berryCountKey, itoa(berryCount)))
		in.index.TouchObjectChunk(objectID)
	}

	return results, changes
}

// ProcessEat decrements inventory for each intent, in order.
func (in *Integrator) ProcessEat(intents map[string]EatIntent, order []string) []EatResult {
	var results []EatResult
	for _, entityID := range order {
		intent, ok := intents[entityID]
		if !ok {
			continue
		}
		entity, err := in.world.GetEntity(entityID)
		if err != nil {
			results = append(results, EatResult{EntityID: entityID, ItemType: intent.ItemType, FailureReason: "entity_not_found"})
			continue
		}
		if !entity.Inventory.Has(intent.ItemType, intent.Amount) {
			results = append(results, EatResult{EntityID: entityID, ItemType: intent.ItemType, FailureReason: "insufficient_items"})
			continue
		}
		newInv, err := entity.Inventory.Remove(intent.ItemType, intent.Amount)
		if err != nil {
			results = append(results, EatResult{EntityID: entityID, ItemType: intent.ItemType, FailureReason: "insufficient_items"})
			continue
		}
		_ = in.world.UpdateEntityInventory(entityID, newInv)
		results = append(results, EatResult{EntityID: entityID, Success: true, ItemType: intent.ItemType, Amount: intent.Amount})
	}
	return results
}

// ProcessRegeneration runs on ticks where tick % regenRate == 0 (including
// tick 0): every bush below its max_berries gains one berry.
func (in *Integrator) ProcessRegeneration(tick int64, regenRate int) []ObjectChange {
	var changes []ObjectChange
	if regenRate <= 0 || tick%int64(regenRate) != 0 {
		return changes
	}

	objects := in.world.AllObjects()
	ids := make([]string, 0, len(objects))
	for id, o := range objects {
		if o.ObjectType == "bush" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		obj := objects[id]
		berryCount := atoi(obj.GetState(berryCountKey, "0"))
		maxBerries := atoi(obj.GetState(maxBerriesKey, defaultMaxBerries))
		if berryCount >= maxBerries {
			continue
		}
		newCount := berryCount + 1
		_ = in.world.UpdateObject(obj.WithState(berryCountKey, itoa(newCount)))
		in.index.TouchObjectChunk(id)
		changes = append(changes, ObjectChange{ObjectID: id, Field: berryCountKey, OldValue: itoa(berryCount), NewValue: itoa(newCount)})
	}
	return changes
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
