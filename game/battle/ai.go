package battle

import "math/rand"

// ChooseMonsterAction picks a monster's turn action uniformly at random
// from the legal set. Guard is excluded while any attack option exists
// so battles always make forward progress.
func ChooseMonsterAction(actor Combatant, allies, enemies []Combatant, rng *rand.Rand) *Action {
	legal := LegalActions(actor, allies, enemies)
	if len(legal) == 0 {
		return &Action{Type: ActionGuard}
	}

	offensive := legal[:0:0]
	for _, a := range legal {
		if a.Type != ActionGuard {
			offensive = append(offensive, a)
		}
	}
	if len(offensive) > 0 {
		legal = offensive
	}

	pick := legal[rng.Intn(len(legal))]
	return &pick
}
