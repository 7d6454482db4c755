package battle

import (
	"sort"
	"sync"
)

// OrderPreview produces the turn-order ranking shown to players: all
// living combatants by raw speed descending, ties broken by
// CompareCombatants. This is a display ranking, independent of the live
// gauges. The result is memoized until the roster changes.
type OrderPreview struct {
	mu     sync.Mutex
	roster Roster
	slots  *SlotTable
	cached []Combatant
	valid  bool
}

// NewOrderPreview creates a preview for the given roster.
func NewOrderPreview(roster Roster, slots *SlotTable) *OrderPreview {
	return &OrderPreview{roster: roster, slots: slots}
}

// Order returns the speed ranking, recomputing when forced, when the
// cache was invalidated, or when a cached combatant has left the roster.
// The returned slice is a copy.
func (p *OrderPreview) Order(force bool) []Combatant {
	p.mu.Lock()
	defer p.mu.Unlock()

	if force || !p.valid || !p.cacheStillValid() {
		p.recompute()
	}
	out := make([]Combatant, len(p.cached))
	copy(out, p.cached)
	return out
}

// Invalidate drops the cached ordering. Called on roster mutation:
// spawn, despawn, death, or speed change.
func (p *OrderPreview) Invalidate() {
	p.mu.Lock()
	p.valid = false
	p.mu.Unlock()
}

// cacheStillValid checks every cached combatant is still in the roster.
func (p *OrderPreview) cacheStillValid() bool {
	if p.roster == nil {
		return false
	}
	present := make(map[int64]bool)
	for _, c := range p.roster.Combatants() {
		if c != nil {
			present[c.ID()] = true
		}
	}
	for _, c := range p.cached {
		if !present[c.ID()] {
			return false
		}
	}
	return true
}

func (p *OrderPreview) recompute() {
	p.cached = nil
	p.valid = true
	if p.roster == nil {
		return
	}
	var living []Combatant
	for _, c := range p.roster.Combatants() {
		if c != nil && c.IsAlive() {
			living = append(living, c)
		}
	}
	sort.SliceStable(living, func(i, j int) bool {
		si, sj := living[i].Speed(), living[j].Speed()
		if si != sj {
			return si > sj
		}
		return CompareCombatants(living[i], living[j], p.slots)
	})
	p.cached = living
}
