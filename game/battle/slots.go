package battle

// TeamSize is the maximum number of spawn slots per team.
const TeamSize = 3

// NoSlot is the sentinel returned for combatants without a resolvable
// spawn slot. Callers treat it as "sorts last".
const NoSlot = -1

type slotEntry struct {
	team Team
	slot int
}

// SlotTable maps combatant IDs to their team and spawn slot. It is
// populated once per combatant at spawn time and never rewritten:
// a slot is stable for the combatant's lifetime.
type SlotTable struct {
	byID map[int64]slotEntry
}

// NewSlotTable creates an empty SlotTable.
func NewSlotTable() *SlotTable {
	return &SlotTable{byID: make(map[int64]slotEntry)}
}

// Assign records the spawn slot for a combatant. Out-of-range slots are
// recorded as NoSlot rather than rejected; a combatant that already has
// an entry keeps its original assignment.
func (t *SlotTable) Assign(c Combatant, slot int) {
	if c == nil {
		return
	}
	if _, ok := t.byID[c.ID()]; ok {
		return
	}
	if slot < 0 || slot >= TeamSize {
		slot = NoSlot
	}
	t.byID[c.ID()] = slotEntry{team: c.Team(), slot: slot}
}

// Slot returns the spawn slot for a combatant, or NoSlot when the
// combatant was never assigned one.
func (t *SlotTable) Slot(c Combatant) int {
	if c == nil {
		return NoSlot
	}
	e, ok := t.byID[c.ID()]
	if !ok {
		return NoSlot
	}
	return e.slot
}

// Remove drops a combatant's entry, for battle teardown.
func (t *SlotTable) Remove(id int64) {
	delete(t.byID, id)
}

// Clear empties the table for a new battle.
func (t *SlotTable) Clear() {
	t.byID = make(map[int64]slotEntry)
}
