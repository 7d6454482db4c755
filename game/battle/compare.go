package battle

// CompareCombatants is the deterministic tie-break: it reports whether a
// orders strictly before b. Allies order before enemies; within a team,
// lower spawn slot first; a combatant with a resolvable slot orders
// before one without; creation ID is the final fallback. The result is a
// strict weak ordering, so it can back both pairwise selection and a
// general sort.
func CompareCombatants(a, b Combatant, slots *SlotTable) bool {
	if a == nil || b == nil || a == b {
		return false
	}
	if a.IsAlly() != b.IsAlly() {
		return a.IsAlly()
	}

	sa, sb := NoSlot, NoSlot
	if slots != nil {
		sa = slots.Slot(a)
		sb = slots.Slot(b)
	}
	switch {
	case sa != NoSlot && sb != NoSlot:
		if sa != sb {
			return sa < sb
		}
	case sa != NoSlot:
		return true
	case sb != NoSlot:
		return false
	}

	return a.ID() < b.ID()
}
