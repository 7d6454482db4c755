package ws

import (
	"context"
	"encoding/json"

	"github.com/harutoki/beastline/server/game/battle"
	"github.com/harutoki/beastline/server/game/player"
)

// RegisterGameHandlers wires the non-battle message types.
func RegisterGameHandlers(r *Router, bm *BattleSessionManager) {
	r.On("ping", handlePing)
	r.On("battle_state", bm.HandleBattleState)
}

func handlePing(_ context.Context, s *player.PlayerSession, raw json.RawMessage) error {
	var req struct {
		ClientTS int64 `json:"client_ts"`
	}
	_ = json.Unmarshal(raw, &req)
	s.SendHeartbeatPong(req.ClientTS)
	return nil
}

// HandleBattleState replies with a full snapshot of the account's running
// battle, used after reconnects.
func (bm *BattleSessionManager) HandleBattleState(_ context.Context, s *player.PlayerSession, _ json.RawMessage) error {
	inst := bm.InstanceFor(s.AccountID)
	if inst == nil {
		s.Send(&player.Packet{Type: "battle_state", Payload: json.RawMessage(`{"active":false}`)})
		return nil
	}

	type stateResp struct {
		Active     bool                       `json:"active"`
		BattleID   string                     `json:"battle_id"`
		Turn       int                        `json:"turn"`
		Combatants []battle.CombatantSnapshot `json:"combatants"`
	}
	resp := stateResp{
		Active:   true,
		BattleID: inst.BattleID(),
		Turn:     inst.Scheduler().TurnCount(),
	}
	for _, c := range inst.Combatants() {
		resp.Combatants = append(resp.Combatants, battle.SnapshotCombatant(c, inst.Slots()))
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	s.Send(&player.Packet{Type: "battle_state", Payload: payload})
	return nil
}
