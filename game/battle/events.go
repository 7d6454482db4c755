package battle

// BattleEvent is emitted by BattleInstance for the WS layer to consume.
type BattleEvent interface {
	EventType() string
}

// CombatantRef identifies a combatant in event payloads.
type CombatantRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Team string `json:"team"`
	Slot int    `json:"slot"`
}

// CombatantSnapshot is a full snapshot of a combatant's state.
type CombatantSnapshot struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Team  string  `json:"team"`
	Slot  int     `json:"slot"`
	HP    int     `json:"hp"`
	MaxHP int     `json:"max_hp"`
	Gauge float64 `json:"gauge"`
	Speed float64 `json:"speed"`
	Alive bool    `json:"alive"`
}

func SnapshotCombatant(c Combatant, slots *SlotTable) CombatantSnapshot {
	return CombatantSnapshot{
		ID:    c.ID(),
		Name:  c.Name(),
		Team:  c.Team().String(),
		Slot:  slots.Slot(c),
		HP:    c.HP(),
		MaxHP: c.MaxHP(),
		Gauge: c.Gauge(),
		Speed: c.Speed(),
		Alive: c.IsAlive(),
	}
}

func RefCombatant(c Combatant, slots *SlotTable) CombatantRef {
	return CombatantRef{ID: c.ID(), Name: c.Name(), Team: c.Team().String(), Slot: slots.Slot(c)}
}

// --- Concrete event types ---

type EventBattleStart struct {
	BattleID string              `json:"battle_id"`
	Allies   []CombatantSnapshot `json:"allies"`
	Enemies  []CombatantSnapshot `json:"enemies"`
}

func (EventBattleStart) EventType() string { return "battle_start" }

type EventTurnReady struct {
	Turn    int            `json:"turn"`
	Actor   CombatantRef   `json:"actor"`
	Gauge   float64        `json:"gauge"`
	Preview []CombatantRef `json:"preview"`
}

func (EventTurnReady) EventType() string { return "turn_ready" }

type EventInputRequest struct {
	Actor   CombatantRef `json:"actor"`
	Skills  []int        `json:"skills,omitempty"`
	Timeout int          `json:"timeout_ms"`
}

func (EventInputRequest) EventType() string { return "input_request" }

type ActionResultTarget struct {
	Target  CombatantRef `json:"target"`
	Damage  int          `json:"damage"` // positive=damage, negative=heal
	Guarded bool         `json:"guarded"`
	HPAfter int          `json:"hp_after"`
}

type EventActionResult struct {
	Subject CombatantRef         `json:"subject"`
	Type    int                  `json:"type"`
	SkillID int                  `json:"skill_id,omitempty"`
	Targets []ActionResultTarget `json:"targets"`
}

func (EventActionResult) EventType() string { return "action_result" }

type EventGaugeUpdate struct {
	Gauges map[int64]float64 `json:"gauges"`
}

func (EventGaugeUpdate) EventType() string { return "gauge_update" }

type EventBattleEnd struct {
	BattleID string `json:"battle_id"`
	Outcome  string `json:"outcome"`
	Turns    int    `json:"turns"`
}

func (EventBattleEnd) EventType() string { return "battle_end" }
