package battle

// Action types.
const (
	ActionAttack = iota
	ActionSkill
	ActionGuard
)

// Action represents one turn's choice, by player input or monster AI.
type Action struct {
	Type      int
	SkillID   int
	TargetIDs []int64
}

// ActionOutcome describes the effect of an action on one target.
type ActionOutcome struct {
	Target  Combatant
	Damage  int // positive=damage, negative=heal
	Guarded bool
	HPAfter int
}

// Skill is a static ability definition. Heal skills target the actor's
// own team; damage skills target the opposing team.
type Skill struct {
	ID         int
	Name       string
	Power      int
	Heals      bool
	TargetsAll bool
}

// skillTable is the static skill set. ID 0 is reserved (no skill).
var skillTable = map[int]Skill{
	1: {ID: 1, Name: "Claw Flurry", Power: 30},
	2: {ID: 2, Name: "Ember Burst", Power: 18, TargetsAll: true},
	3: {ID: 3, Name: "Mend", Power: 40, Heals: true},
	4: {ID: 4, Name: "Venom Spit", Power: 24},
}

// SkillByID returns the skill definition, or false for unknown IDs.
func SkillByID(id int) (Skill, bool) {
	s, ok := skillTable[id]
	return s, ok
}

// baseDamage computes raw attack damage before guard reduction.
func baseDamage(attacker, target Combatant, power int) int {
	dmg := attacker.Attack()*4 + power*2 - target.Defense()*2
	if dmg < 1 {
		dmg = 1
	}
	return dmg
}

// ResolveAction applies an action and returns the per-target outcomes.
// Dead or unknown targets are skipped, not errors: the roster may have
// changed between choice and resolution.
func ResolveAction(actor Combatant, act *Action, roster Roster) []ActionOutcome {
	if actor == nil || act == nil || roster == nil {
		return nil
	}

	if act.Type == ActionGuard {
		actor.SetGuarding(true)
		return nil
	}

	byID := make(map[int64]Combatant)
	for _, c := range roster.Combatants() {
		if c != nil {
			byID[c.ID()] = c
		}
	}

	power := 0
	heals := false
	if act.Type == ActionSkill {
		sk, ok := SkillByID(act.SkillID)
		if !ok {
			return nil
		}
		power = sk.Power
		heals = sk.Heals
	}

	var outcomes []ActionOutcome
	for _, id := range act.TargetIDs {
		target, ok := byID[id]
		if !ok {
			continue
		}
		if heals {
			if target.IsDead() {
				continue
			}
			target.SetHP(target.HP() + power)
			outcomes = append(outcomes, ActionOutcome{
				Target:  target,
				Damage:  -power,
				HPAfter: target.HP(),
			})
			continue
		}
		if target.IsDead() {
			continue
		}
		dmg := baseDamage(actor, target, power)
		guarded := target.IsGuarding()
		if guarded {
			dmg /= 2
			if dmg < 1 {
				dmg = 1
			}
		}
		target.SetHP(target.HP() - dmg)
		outcomes = append(outcomes, ActionOutcome{
			Target:  target,
			Damage:  dmg,
			Guarded: guarded,
			HPAfter: target.HP(),
		})
	}
	return outcomes
}

// LegalActions enumerates every action a combatant could take against the
// given opposing and allied pools. Used by the monster AI and by input
// validation.
func LegalActions(actor Combatant, allies, enemies []Combatant) []Action {
	var actions []Action

	aliveIDs := func(pool []Combatant) []int64 {
		var ids []int64
		for _, c := range pool {
			if c != nil && c.IsAlive() {
				ids = append(ids, c.ID())
			}
		}
		return ids
	}

	for _, id := range aliveIDs(enemies) {
		actions = append(actions, Action{Type: ActionAttack, TargetIDs: []int64{id}})
	}

	for _, skillID := range actor.SkillIDs() {
		sk, ok := SkillByID(skillID)
		if !ok {
			continue
		}
		pool := enemies
		if sk.Heals {
			pool = allies
		}
		ids := aliveIDs(pool)
		if len(ids) == 0 {
			continue
		}
		if sk.TargetsAll {
			actions = append(actions, Action{Type: ActionSkill, SkillID: skillID, TargetIDs: ids})
			continue
		}
		for _, id := range ids {
			actions = append(actions, Action{Type: ActionSkill, SkillID: skillID, TargetIDs: []int64{id}})
		}
	}

	actions = append(actions, Action{Type: ActionGuard})
	return actions
}
