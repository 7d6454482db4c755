package battle

// Team identifies which side a combatant fights for.
type Team int

const (
	TeamAlly Team = iota
	TeamEnemy
)

func (t Team) String() string {
	if t == TeamAlly {
		return "ally"
	}
	return "enemy"
}

// Stats holds the combat-relevant attributes of a combatant.
// Speed doubles as the per-pass action gauge increment.
type Stats struct {
	MaxHP   int
	Attack  int
	Defense int
	Speed   float64
}

// Combatant represents any entity participating in battle.
// The action gauge is owned by the turn scheduler: only it calls
// AddGauge and ResetGauge.
type Combatant interface {
	// ID is the battle-local creation sequence number, assigned at spawn.
	// It is the final tie-break fallback and must be unique per battle.
	ID() int64
	Name() string
	Team() Team
	IsAlly() bool

	Speed() float64
	Gauge() float64
	AddGauge(delta float64)
	ResetGauge(carry float64)

	HP() int
	MaxHP() int
	SetHP(v int)
	IsAlive() bool
	IsDead() bool

	Attack() int
	Defense() int

	IsGuarding() bool
	SetGuarding(v bool)

	// SkillIDs lists the skills this combatant may use, beyond the basic attack.
	SkillIDs() []int
}

// ---------------------------------------------------------------------------
//  baseCombatant: shared implementation for party members and monsters
// ---------------------------------------------------------------------------

type baseCombatant struct {
	id       int64
	name     string
	hp       int
	gauge    float64
	guarding bool
	stats    Stats
	skills   []int
}

func (b *baseCombatant) ID() int64      { return b.id }
func (b *baseCombatant) Name() string   { return b.name }
func (b *baseCombatant) Speed() float64 { return b.stats.Speed }
func (b *baseCombatant) Gauge() float64 { return b.gauge }

// AddGauge raises the action gauge. A dead combatant's gauge never moves.
func (b *baseCombatant) AddGauge(delta float64) {
	if b.hp <= 0 || delta <= 0 {
		return
	}
	b.gauge += delta
}

// ResetGauge sets the gauge to the given carry-over, clamped at zero.
func (b *baseCombatant) ResetGauge(carry float64) {
	if carry < 0 {
		carry = 0
	}
	b.gauge = carry
}

func (b *baseCombatant) HP() int    { return b.hp }
func (b *baseCombatant) MaxHP() int { return b.stats.MaxHP }

func (b *baseCombatant) SetHP(v int) {
	if v > b.stats.MaxHP {
		v = b.stats.MaxHP
	}
	if v < 0 {
		v = 0
	}
	b.hp = v
}

func (b *baseCombatant) IsAlive() bool { return b.hp > 0 }
func (b *baseCombatant) IsDead() bool  { return b.hp <= 0 }

func (b *baseCombatant) Attack() int  { return b.stats.Attack }
func (b *baseCombatant) Defense() int { return b.stats.Defense }

func (b *baseCombatant) IsGuarding() bool   { return b.guarding }
func (b *baseCombatant) SetGuarding(v bool) { b.guarding = v }

func (b *baseCombatant) SkillIDs() []int {
	out := make([]int, len(b.skills))
	copy(out, b.skills)
	return out
}

// ---------------------------------------------------------------------------
//  PartyMember
// ---------------------------------------------------------------------------

// PartyMember represents a player-controlled combatant on the ally team.
type PartyMember struct {
	baseCombatant
	heroID int
}

// PartyConfig holds the data needed to construct a PartyMember.
type PartyConfig struct {
	HeroID int
	Name   string
	Stats  Stats
	Skills []int
}

// NewPartyMember creates a PartyMember at full HP with an empty gauge.
// Its ID is assigned when it is spawned into a battle.
func NewPartyMember(cfg PartyConfig) *PartyMember {
	p := &PartyMember{heroID: cfg.HeroID}
	p.name = cfg.Name
	p.stats = cfg.Stats
	p.hp = cfg.Stats.MaxHP
	p.skills = cfg.Skills
	return p
}

func (p *PartyMember) Team() Team   { return TeamAlly }
func (p *PartyMember) IsAlly() bool { return true }
func (p *PartyMember) HeroID() int  { return p.heroID }

// ---------------------------------------------------------------------------
//  Monster
// ---------------------------------------------------------------------------

// Monster represents an AI-controlled combatant on the enemy team.
type Monster struct {
	baseCombatant
	speciesID int
}

// MonsterConfig holds the data needed to construct a Monster.
type MonsterConfig struct {
	SpeciesID int
	Name      string
	Stats     Stats
	Skills    []int
}

// NewMonster creates a Monster at full HP with an empty gauge.
func NewMonster(cfg MonsterConfig) *Monster {
	m := &Monster{speciesID: cfg.SpeciesID}
	m.name = cfg.Name
	m.stats = cfg.Stats
	m.hp = cfg.Stats.MaxHP
	m.skills = cfg.Skills
	return m
}

func (m *Monster) Team() Team     { return TeamEnemy }
func (m *Monster) IsAlly() bool   { return false }
func (m *Monster) SpeciesID() int { return m.speciesID }
