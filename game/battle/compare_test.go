package battle

import "testing"

func TestCompareAllyBeforeEnemy(t *testing.T) {
	slots := NewSlotTable()
	a := makeAlly(1, "A", 10, 100)
	e := makeEnemy(2, "E", 10, 100)
	slots.Assign(a, 0)
	slots.Assign(e, 0)

	if !CompareCombatants(a, e, slots) {
		t.Error("ally should order before enemy")
	}
	if CompareCombatants(e, a, slots) {
		t.Error("enemy should not order before ally")
	}
}

func TestCompareLowerSlotFirst(t *testing.T) {
	slots := NewSlotTable()
	e1 := makeEnemy(5, "E1", 10, 100)
	e2 := makeEnemy(4, "E2", 10, 100)
	slots.Assign(e1, 0)
	slots.Assign(e2, 1)

	// Slot beats the ID fallback even though e2 has the lower ID.
	if !CompareCombatants(e1, e2, slots) {
		t.Error("slot 0 should order before slot 1")
	}
	if CompareCombatants(e2, e1, slots) {
		t.Error("slot 1 should not order before slot 0")
	}
}

func TestCompareResolvableSlotBeforeMissing(t *testing.T) {
	slots := NewSlotTable()
	in := makeEnemy(1, "In", 10, 100)
	out := makeEnemy(2, "Out", 10, 100)
	slots.Assign(in, 2)

	if !CompareCombatants(in, out, slots) {
		t.Error("combatant with a slot should order before one without")
	}
	if CompareCombatants(out, in, slots) {
		t.Error("slotless combatant should not order first")
	}
}

func TestCompareIDFallback(t *testing.T) {
	a := makeAlly(3, "X", 10, 100)
	b := makeAlly(7, "Y", 10, 100)

	// No slot table at all: creation order decides.
	if !CompareCombatants(a, b, nil) {
		t.Error("lower ID should order first")
	}
	if CompareCombatants(b, a, nil) {
		t.Error("higher ID should not order first")
	}
}

func TestCompareIsIrreflexive(t *testing.T) {
	slots := NewSlotTable()
	a := makeAlly(1, "A", 10, 100)
	slots.Assign(a, 0)

	if CompareCombatants(a, a, slots) {
		t.Error("a combatant must not order before itself")
	}
	if CompareCombatants(nil, a, slots) || CompareCombatants(a, nil, slots) {
		t.Error("nil operands must not order before anything")
	}
}

// Equal slots on opposite teams must fall through to the team rule, and
// equal everything must fall to IDs, never report both a<b and b<a.
func TestCompareAsymmetry(t *testing.T) {
	slots := NewSlotTable()
	combos := []Combatant{
		makeAlly(1, "A0", 10, 100),
		makeAlly(2, "A1", 10, 100),
		makeEnemy(3, "E0", 10, 100),
		makeEnemy(4, "E1", 10, 100),
	}
	slots.Assign(combos[0], 0)
	slots.Assign(combos[1], 1)
	slots.Assign(combos[2], 0)
	slots.Assign(combos[3], 1)

	for _, x := range combos {
		for _, y := range combos {
			if x == y {
				continue
			}
			if CompareCombatants(x, y, slots) && CompareCombatants(y, x, slots) {
				t.Errorf("ordering not asymmetric for %s/%s", x.Name(), y.Name())
			}
		}
	}
}
