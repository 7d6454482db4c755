package battle

import "testing"

func TestSlotAssignAndLookup(t *testing.T) {
	slots := NewSlotTable()
	a := makeAlly(1, "A", 10, 100)
	slots.Assign(a, 2)

	if got := slots.Slot(a); got != 2 {
		t.Errorf("slot = %d, want 2", got)
	}
}

func TestSlotUnknownIsNoSlot(t *testing.T) {
	slots := NewSlotTable()
	stranger := makeAlly(9, "S", 10, 100)

	if got := slots.Slot(stranger); got != NoSlot {
		t.Errorf("slot = %d, want NoSlot", got)
	}
	if got := slots.Slot(nil); got != NoSlot {
		t.Errorf("nil slot = %d, want NoSlot", got)
	}
}

func TestSlotOutOfRangeIgnored(t *testing.T) {
	slots := NewSlotTable()
	a := makeAlly(1, "A", 10, 100)
	slots.Assign(a, TeamSize)
	if got := slots.Slot(a); got != NoSlot {
		t.Errorf("slot = %d, want NoSlot for out-of-range assign", got)
	}
	slots.Assign(a, -1)
	if got := slots.Slot(a); got != NoSlot {
		t.Errorf("slot = %d, want NoSlot for negative assign", got)
	}
}

func TestSlotReassignIgnored(t *testing.T) {
	slots := NewSlotTable()
	a := makeAlly(1, "A", 10, 100)
	slots.Assign(a, 0)
	slots.Assign(a, 2)
	if got := slots.Slot(a); got != 0 {
		t.Errorf("slot = %d, want original 0", got)
	}
}

func TestSlotRemove(t *testing.T) {
	slots := NewSlotTable()
	a := makeAlly(1, "A", 10, 100)
	slots.Assign(a, 1)
	slots.Remove(a.ID())
	if got := slots.Slot(a); got != NoSlot {
		t.Errorf("slot = %d, want NoSlot after remove", got)
	}
}
