package battle

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Battle outcomes, persisted as strings in battle records.
const (
	OutcomeNone    = ""
	OutcomeVictory = "victory"
	OutcomeDefeat  = "defeat"
	OutcomeNoUnits = "no_units"
	OutcomeAborted = "aborted"
)

// Default turn cap. A gauge battle between two guard-locked teams could
// otherwise run forever.
const defaultTurnLimit = 500

// ActionInput is sent by a player to choose the acting combatant's move.
type ActionInput struct {
	ActorID    int64
	ActionType int
	SkillID    int
	TargetIDs  []int64
}

// InstanceConfig configures a BattleInstance.
type InstanceConfig struct {
	BattleID     string
	Logger       *zap.Logger
	RNG          *rand.Rand    // injectable for testing
	InputTimeout time.Duration // 0 = 2 minutes
	TurnLimit    int           // 0 = defaultTurnLimit
	// TickInterval paces the loop between turns so clients can animate.
	// 0 runs the battle at full speed.
	TickInterval time.Duration
}

// BattleInstance manages a complete battle lifecycle. It owns the roster,
// the slot table, and the turn scheduler, and satisfies the scheduler's
// Roster, CurrentHolder, and OutcomeSink collaborator interfaces itself.
type BattleInstance struct {
	battleID string

	allies  []Combatant
	enemies []Combatant
	all     []Combatant
	nextID  int64

	slots   *SlotTable
	sched   *TurnScheduler
	preview *OrderPreview
	current Combatant
	outcome string

	logger *zap.Logger
	rng    *rand.Rand

	events       chan BattleEvent
	inputCh      chan *ActionInput
	inputTimeout time.Duration
	turnLimit    int
	tickInterval time.Duration
}

// NewBattleInstance creates a battle instance. Combatants must be spawned
// before calling Run().
func NewBattleInstance(cfg InstanceConfig) *BattleInstance {
	if cfg.RNG == nil {
		cfg.RNG = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	timeout := cfg.InputTimeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	limit := cfg.TurnLimit
	if limit == 0 {
		limit = defaultTurnLimit
	}

	b := &BattleInstance{
		battleID:     cfg.BattleID,
		slots:        NewSlotTable(),
		logger:       cfg.Logger.With(zap.String("battle_id", cfg.BattleID)),
		rng:          cfg.RNG,
		events:       make(chan BattleEvent, 64),
		inputCh:      make(chan *ActionInput, 8),
		inputTimeout: timeout,
		turnLimit:    limit,
		tickInterval: cfg.TickInterval,
	}
	b.sched = NewTurnScheduler(SchedulerConfig{
		Roster:  b,
		Current: b,
		Slots:   b.slots,
		Outcome: b,
		Logger:  b.logger,
	})
	b.preview = NewOrderPreview(b, b.slots)
	return b
}

// Combatants implements Roster.
func (b *BattleInstance) Combatants() []Combatant { return b.all }

// Current implements CurrentHolder.
func (b *BattleInstance) Current() Combatant { return b.current }

// SetCurrent implements CurrentHolder.
func (b *BattleInstance) SetCurrent(c Combatant) { b.current = c }

// OnVictory implements OutcomeSink.
func (b *BattleInstance) OnVictory() { b.outcome = OutcomeVictory }

// OnDefeat implements OutcomeSink.
func (b *BattleInstance) OnDefeat() { b.outcome = OutcomeDefeat }

// Outcome returns the battle result, empty while the battle is live.
func (b *BattleInstance) Outcome() string { return b.outcome }

// BattleID returns the instance's identifier.
func (b *BattleInstance) BattleID() string { return b.battleID }

// Allies returns the ally-side combatants in spawn order.
func (b *BattleInstance) Allies() []Combatant { return b.allies }

// Enemies returns the enemy-side combatants in spawn order.
func (b *BattleInstance) Enemies() []Combatant { return b.enemies }

// Scheduler exposes the turn scheduler, mainly for tests and diagnostics.
func (b *BattleInstance) Scheduler() *TurnScheduler { return b.sched }

// Slots exposes the spawn slot table.
func (b *BattleInstance) Slots() *SlotTable { return b.slots }

// SpawnAlly adds a party member to the ally side. Returns the spawned
// combatant, or an error when the side is full.
func (b *BattleInstance) SpawnAlly(cfg PartyConfig) (*PartyMember, error) {
	if len(b.allies) >= TeamSize {
		return nil, fmt.Errorf("ally side is full (%d)", TeamSize)
	}
	p := NewPartyMember(cfg)
	p.id = b.nextSpawnID()
	b.slots.Assign(p, len(b.allies))
	b.allies = append(b.allies, p)
	b.all = append(b.all, p)
	b.preview.Invalidate()
	return p, nil
}

// SpawnMonster adds a monster to the enemy side.
func (b *BattleInstance) SpawnMonster(cfg MonsterConfig) (*Monster, error) {
	if len(b.enemies) >= TeamSize {
		return nil, fmt.Errorf("enemy side is full (%d)", TeamSize)
	}
	m := NewMonster(cfg)
	m.id = b.nextSpawnID()
	b.slots.Assign(m, len(b.enemies))
	b.enemies = append(b.enemies, m)
	b.all = append(b.all, m)
	b.preview.Invalidate()
	return m, nil
}

func (b *BattleInstance) nextSpawnID() int64 {
	b.nextID++
	return b.nextID
}

// Events returns the event channel. Consumers should read from this
// channel to receive battle events for broadcasting to clients.
func (b *BattleInstance) Events() <-chan BattleEvent {
	return b.events
}

// SubmitInput pushes a player action into the battle. Non-blocking; the
// input is dropped when the buffer is full.
func (b *BattleInstance) SubmitInput(input *ActionInput) {
	select {
	case b.inputCh <- input:
	default:
	}
}

// Run executes the battle main loop. Blocks until the battle ends and
// returns the outcome string.
func (b *BattleInstance) Run(ctx context.Context) string {
	defer close(b.events)

	b.emitStart()

	if err := b.sched.PrimeGauges(); err != nil {
		b.logger.Error("gauge priming failed", zap.Error(err))
		b.outcome = OutcomeAborted
		b.emitEnd()
		return b.outcome
	}

	for {
		b.sched.Tick()
		if b.sched.Ended() {
			b.finishOutcome()
			b.emitEnd()
			return b.outcome
		}

		actor := b.current
		if actor == nil {
			// Nobody crossed the threshold yet; keep charging gauges.
			if err := b.sched.AdvanceToNextTurn(); err != nil {
				b.logger.Error("battle cannot progress", zap.Error(err))
				b.outcome = OutcomeAborted
				b.emitEnd()
				return b.outcome
			}
			continue
		}

		turn := b.sched.TurnCount()
		if turn > b.turnLimit {
			b.logger.Warn("turn limit reached", zap.Int("limit", b.turnLimit))
			b.outcome = OutcomeAborted
			b.emitEnd()
			return b.outcome
		}

		b.emitTurnReady(turn, actor)

		actor.SetGuarding(false)

		action, err := b.chooseAction(ctx, actor)
		if err != nil {
			b.logger.Warn("no action for turn", zap.String("actor", actor.Name()), zap.Error(err))
			b.outcome = OutcomeAborted
			b.emitEnd()
			return b.outcome
		}

		outcomes := ResolveAction(actor, action, b)
		b.emitActionResult(actor, action, outcomes)
		for _, out := range outcomes {
			if out.Target != nil && out.Target.IsDead() {
				b.preview.Invalidate()
			}
		}

		if !b.sched.CheckBattleContinues() {
			b.finishOutcome()
			b.emitEnd()
			return b.outcome
		}

		if err := b.sched.AdvanceToNextTurn(); err != nil {
			b.logger.Error("battle cannot progress", zap.Error(err))
			b.outcome = OutcomeAborted
			b.emitEnd()
			return b.outcome
		}
		b.emitGauges()

		if b.tickInterval > 0 {
			select {
			case <-ctx.Done():
				b.outcome = OutcomeAborted
				b.emitEnd()
				return b.outcome
			case <-time.After(b.tickInterval):
			}
		}
	}
}

// chooseAction asks the player for ally turns and the AI for monster
// turns.
func (b *BattleInstance) chooseAction(ctx context.Context, actor Combatant) (*Action, error) {
	if !actor.IsAlly() {
		return ChooseMonsterAction(actor, b.enemies, b.allies, b.rng), nil
	}

	b.emitEvent(&EventInputRequest{
		Actor:   RefCombatant(actor, b.slots),
		Skills:  actor.SkillIDs(),
		Timeout: int(b.inputTimeout / time.Millisecond),
	})

	input, err := b.waitForInput(ctx, actor.ID())
	if err != nil {
		return nil, err
	}

	action := &Action{Type: input.ActionType, SkillID: input.SkillID, TargetIDs: input.TargetIDs}
	if !b.actionIsLegal(actor, action) {
		b.logger.Debug("illegal input, substituting guard",
			zap.String("actor", actor.Name()), zap.Int("type", action.Type))
		action = &Action{Type: ActionGuard}
	}
	return action, nil
}

func (b *BattleInstance) actionIsLegal(actor Combatant, act *Action) bool {
	for _, legal := range LegalActions(actor, b.allies, b.enemies) {
		if legal.Type != act.Type || legal.SkillID != act.SkillID {
			continue
		}
		if act.Type == ActionGuard {
			return true
		}
		if sameTargets(legal.TargetIDs, act.TargetIDs) {
			return true
		}
	}
	return false
}

func sameTargets(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[int64]bool, len(a))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			return false
		}
	}
	return true
}

func (b *BattleInstance) waitForInput(ctx context.Context, actorID int64) (*ActionInput, error) {
	timer := time.NewTimer(b.inputTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, fmt.Errorf("input timeout for combatant %d", actorID)
		case input := <-b.inputCh:
			if input.ActorID == actorID {
				return input, nil
			}
			// Stale input for a different combatant, drop it.
			b.logger.Debug("dropping stale input", zap.Int64("actor_id", input.ActorID))
		}
	}
}

// finishOutcome maps the scheduler verdict onto the outcome string when
// the sink callbacks did not already set one.
func (b *BattleInstance) finishOutcome() {
	if b.outcome != OutcomeNone {
		return
	}
	switch b.sched.Verdict() {
	case VerdictVictory:
		b.outcome = OutcomeVictory
	case VerdictDefeat:
		b.outcome = OutcomeDefeat
	case VerdictNoUnits:
		b.outcome = OutcomeNoUnits
	default:
		b.outcome = OutcomeAborted
	}
}

// --- event emission ---

func (b *BattleInstance) emitStart() {
	allySnaps := make([]CombatantSnapshot, len(b.allies))
	for i, c := range b.allies {
		allySnaps[i] = SnapshotCombatant(c, b.slots)
	}
	enemySnaps := make([]CombatantSnapshot, len(b.enemies))
	for i, c := range b.enemies {
		enemySnaps[i] = SnapshotCombatant(c, b.slots)
	}
	b.emitEvent(&EventBattleStart{BattleID: b.battleID, Allies: allySnaps, Enemies: enemySnaps})
}

func (b *BattleInstance) emitTurnReady(turn int, actor Combatant) {
	order := b.preview.Order(false)
	refs := make([]CombatantRef, len(order))
	for i, c := range order {
		refs[i] = RefCombatant(c, b.slots)
	}
	b.emitEvent(&EventTurnReady{
		Turn:    turn,
		Actor:   RefCombatant(actor, b.slots),
		Gauge:   actor.Gauge(),
		Preview: refs,
	})
}

func (b *BattleInstance) emitActionResult(actor Combatant, act *Action, outcomes []ActionOutcome) {
	targets := make([]ActionResultTarget, 0, len(outcomes))
	for _, out := range outcomes {
		targets = append(targets, ActionResultTarget{
			Target:  RefCombatant(out.Target, b.slots),
			Damage:  out.Damage,
			Guarded: out.Guarded,
			HPAfter: out.HPAfter,
		})
	}
	b.emitEvent(&EventActionResult{
		Subject: RefCombatant(actor, b.slots),
		Type:    act.Type,
		SkillID: act.SkillID,
		Targets: targets,
	})
}

func (b *BattleInstance) emitGauges() {
	gauges := make(map[int64]float64, len(b.all))
	for _, c := range b.all {
		if c.IsAlive() {
			gauges[c.ID()] = c.Gauge()
		}
	}
	b.emitEvent(&EventGaugeUpdate{Gauges: gauges})
}

func (b *BattleInstance) emitEnd() {
	b.emitEvent(&EventBattleEnd{BattleID: b.battleID, Outcome: b.outcome, Turns: b.sched.TurnCount()})
}

func (b *BattleInstance) emitEvent(evt BattleEvent) {
	select {
	case b.events <- evt:
	default:
		b.logger.Warn("battle event dropped (channel full)", zap.String("type", evt.EventType()))
	}
}
