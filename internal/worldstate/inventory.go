package worldstate

import "github.com/pkg/errors"

// ErrInsufficientItems is returned by Inventory.Remove when the inventory
// holds fewer than the requested count of an item type.
var ErrInsufficientItems = errors.New("insufficient items")

// Inventory is an immutable item_type -> count mapping. The zero value is
// a valid empty inventory.
type Inventory struct {
	counts map[string]int
}

// Count returns the quantity held of item, 0 if absent.
func (inv Inventory) Count(item string) int {
	if inv.counts == nil {
		return 0
	}
	return inv.counts[item]
}

// Has reports whether the inventory holds at least n of item.
func (inv Inventory) Has(item string, n int) bool {
	return inv.Count(item) >= n
}

// Add returns a new inventory with n more of item. n must be positive;
// callers adding zero are expected to no-op at a higher layer.
func (inv Inventory) Add(item string, n int) Inventory {
	next := inv.clone()
	next.counts[item] += n
	return next
}

// Remove returns a new inventory with n fewer of item, or the original
// inventory and ErrInsufficientItems if it holds less than n.
func (inv Inventory) Remove(item string, n int) (Inventory, error) {
	if inv.Count(item) < n {
		return inv, ErrInsufficientItems
	}
	next := inv.clone()
	next.counts[item] -= n
	if next.counts[item] == 0 {
		delete(next.counts, item)
	}
	return next, nil
}

func (inv Inventory) clone() Inventory {
	next := make(map[string]int, len(inv.counts)+1)
	for k, v := range inv.counts {
		next[k] = v
	}
	return Inventory{counts: next}
}

// Items returns a copy of the item_type -> count mapping.
func (inv Inventory) Items() map[string]int {
	out := make(map[string]int, len(inv.counts))
	for k, v := range inv.counts {
		out[k] = v
	}
	return out
}
