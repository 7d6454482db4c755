package battle

import (
	"context"
	"math/rand"
	"testing"
	"time"
)

// runScripted drives an instance to completion, answering every input
// request with the scripted chooser. Returns the outcome and the events
// seen, in order.
func runScripted(t *testing.T, inst *BattleInstance, choose func(*EventInputRequest) *ActionInput) (string, []BattleEvent) {
	t.Helper()
	done := make(chan string, 1)
	go func() { done <- inst.Run(context.Background()) }()

	var events []BattleEvent
	for evt := range inst.Events() {
		events = append(events, evt)
		if req, ok := evt.(*EventInputRequest); ok && choose != nil {
			if input := choose(req); input != nil {
				inst.SubmitInput(input)
			}
		}
	}
	select {
	case outcome := <-done:
		return outcome, events
	case <-time.After(5 * time.Second):
		t.Fatal("battle did not finish")
		return "", nil
	}
}

// attackFirstEnemy scripts the party to always attack the first living
// monster.
func attackFirstEnemy(inst *BattleInstance) func(*EventInputRequest) *ActionInput {
	return func(req *EventInputRequest) *ActionInput {
		for _, e := range inst.Enemies() {
			if e.IsAlive() {
				return &ActionInput{
					ActorID:    req.Actor.ID,
					ActionType: ActionAttack,
					TargetIDs:  []int64{e.ID()},
				}
			}
		}
		return &ActionInput{ActorID: req.Actor.ID, ActionType: ActionGuard}
	}
}

func TestInstanceVictory(t *testing.T) {
	inst := NewBattleInstance(InstanceConfig{
		BattleID:     "test-victory",
		RNG:          rand.New(rand.NewSource(1)),
		InputTimeout: time.Second,
	})
	if _, err := inst.SpawnAlly(PartyConfig{Name: "Hero", Stats: Stats{MaxHP: 300, Attack: 40, Defense: 20, Speed: 30}}); err != nil {
		t.Fatal(err)
	}
	if _, err := inst.SpawnMonster(MonsterConfig{Name: "Slime", Stats: Stats{MaxHP: 60, Attack: 5, Defense: 0, Speed: 10}}); err != nil {
		t.Fatal(err)
	}

	outcome, events := runScripted(t, inst, attackFirstEnemy(inst))
	if outcome != OutcomeVictory {
		t.Fatalf("outcome = %q, want victory", outcome)
	}
	if inst.Outcome() != OutcomeVictory {
		t.Errorf("Outcome() = %q, want victory", inst.Outcome())
	}

	if len(events) == 0 {
		t.Fatal("no events")
	}
	if _, ok := events[0].(*EventBattleStart); !ok {
		t.Errorf("first event = %T, want battle_start", events[0])
	}
	end, ok := events[len(events)-1].(*EventBattleEnd)
	if !ok {
		t.Fatalf("last event = %T, want battle_end", events[len(events)-1])
	}
	if end.Outcome != OutcomeVictory || end.BattleID != "test-victory" {
		t.Errorf("end event = %+v", end)
	}
	if end.Turns < 1 {
		t.Errorf("turns = %d, want at least 1", end.Turns)
	}
}

func TestInstanceDefeat(t *testing.T) {
	inst := NewBattleInstance(InstanceConfig{
		BattleID:     "test-defeat",
		RNG:          rand.New(rand.NewSource(2)),
		InputTimeout: time.Second,
	})
	if _, err := inst.SpawnAlly(PartyConfig{Name: "Frail", Stats: Stats{MaxHP: 30, Attack: 1, Defense: 0, Speed: 5}}); err != nil {
		t.Fatal(err)
	}
	if _, err := inst.SpawnMonster(MonsterConfig{Name: "Ogre", Stats: Stats{MaxHP: 500, Attack: 50, Defense: 30, Speed: 20}}); err != nil {
		t.Fatal(err)
	}

	guard := func(req *EventInputRequest) *ActionInput {
		return &ActionInput{ActorID: req.Actor.ID, ActionType: ActionGuard}
	}
	outcome, _ := runScripted(t, inst, guard)
	if outcome != OutcomeDefeat {
		t.Fatalf("outcome = %q, want defeat", outcome)
	}
}

func TestInstanceInputTimeoutAborts(t *testing.T) {
	inst := NewBattleInstance(InstanceConfig{
		BattleID:     "test-timeout",
		RNG:          rand.New(rand.NewSource(3)),
		InputTimeout: 20 * time.Millisecond,
	})
	if _, err := inst.SpawnAlly(PartyConfig{Name: "AFK", Stats: Stats{MaxHP: 100, Attack: 10, Defense: 5, Speed: 30}}); err != nil {
		t.Fatal(err)
	}
	if _, err := inst.SpawnMonster(MonsterConfig{Name: "Slime", Stats: Stats{MaxHP: 100, Attack: 5, Defense: 0, Speed: 10}}); err != nil {
		t.Fatal(err)
	}

	outcome, _ := runScripted(t, inst, nil)
	if outcome != OutcomeAborted {
		t.Fatalf("outcome = %q, want aborted", outcome)
	}
}

func TestInstanceCancelAborts(t *testing.T) {
	inst := NewBattleInstance(InstanceConfig{
		BattleID:     "test-cancel",
		RNG:          rand.New(rand.NewSource(4)),
		InputTimeout: time.Minute,
	})
	if _, err := inst.SpawnAlly(PartyConfig{Name: "Hero", Stats: Stats{MaxHP: 100, Attack: 10, Defense: 5, Speed: 30}}); err != nil {
		t.Fatal(err)
	}
	if _, err := inst.SpawnMonster(MonsterConfig{Name: "Slime", Stats: Stats{MaxHP: 100, Attack: 5, Defense: 0, Speed: 10}}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan string, 1)
	go func() { done <- inst.Run(ctx) }()

	go func() {
		for range inst.Events() {
		}
	}()
	cancel()

	select {
	case outcome := <-done:
		if outcome != OutcomeAborted {
			t.Fatalf("outcome = %q, want aborted", outcome)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("battle did not abort on cancel")
	}
}

func TestInstanceIllegalInputBecomesGuard(t *testing.T) {
	inst := NewBattleInstance(InstanceConfig{
		BattleID:     "test-illegal",
		RNG:          rand.New(rand.NewSource(5)),
		InputTimeout: time.Second,
	})
	hero, err := inst.SpawnAlly(PartyConfig{Name: "Hero", Stats: Stats{MaxHP: 300, Attack: 30, Defense: 20, Speed: 40}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := inst.SpawnMonster(MonsterConfig{Name: "Slime", Stats: Stats{MaxHP: 40, Attack: 1, Defense: 0, Speed: 5}}); err != nil {
		t.Fatal(err)
	}

	sent := false
	chooser := func(req *EventInputRequest) *ActionInput {
		if !sent {
			sent = true
			// Unknown skill against a bogus target.
			return &ActionInput{ActorID: req.Actor.ID, ActionType: ActionSkill, SkillID: 999, TargetIDs: []int64{12345}}
		}
		return attackFirstEnemy(inst)(req)
	}

	outcome, events := runScripted(t, inst, chooser)
	if outcome != OutcomeVictory {
		t.Fatalf("outcome = %q, want victory", outcome)
	}

	// The illegal first input must have resolved as a guard.
	foundGuard := false
	for _, evt := range events {
		if res, ok := evt.(*EventActionResult); ok && res.Subject.ID == hero.ID() && res.Type == ActionGuard {
			foundGuard = true
			break
		}
	}
	if !foundGuard {
		t.Error("illegal input was not converted to guard")
	}
}

func TestInstanceSpawnLimits(t *testing.T) {
	inst := NewBattleInstance(InstanceConfig{BattleID: "test-limits"})
	cfg := PartyConfig{Name: "H", Stats: Stats{MaxHP: 10, Attack: 1, Defense: 1, Speed: 1}}
	for i := 0; i < TeamSize; i++ {
		if _, err := inst.SpawnAlly(cfg); err != nil {
			t.Fatalf("spawn %d: %v", i, err)
		}
	}
	if _, err := inst.SpawnAlly(cfg); err == nil {
		t.Error("fourth ally spawn should fail")
	}

	// Slots follow spawn order per team; IDs are battle-global.
	allies := inst.Allies()
	for i, a := range allies {
		if got := inst.Slots().Slot(a); got != i {
			t.Errorf("ally %d slot = %d", i, got)
		}
	}
	if allies[0].ID() == allies[1].ID() {
		t.Error("IDs must be unique")
	}
}
