package battle

import (
	"errors"

	"go.uber.org/zap"
)

// GaugeThreshold is the action gauge value at which a combatant becomes
// eligible to act.
const GaugeThreshold = 100.0

// gaugeEpsilon is the float tolerance for gauge comparisons.
const gaugeEpsilon = 1e-4

const (
	// maxAdvancePasses bounds the increment loop in AdvanceToNextTurn.
	// Exceeding it means the remaining speeds cannot produce progress.
	maxAdvancePasses = 10
	// maxSelectRetries bounds re-selection after a candidate turns out
	// to be dead on re-validation.
	maxSelectRetries = 3
)

// ErrNoProgress reports that repeated gauge increments could not make any
// combatant eligible. This is a configuration error: all remaining speeds
// are zero or near-zero.
var ErrNoProgress = errors.New("battle: gauge increments cannot reach the action threshold")

// Verdict is the result of an end-condition check.
type Verdict int

const (
	VerdictContinue Verdict = iota
	VerdictVictory          // all enemies dead
	VerdictDefeat           // all allies dead
	VerdictNoUnits          // empty roster or no survivors on either side
)

// Roster lists the combatants currently in the battle. It must reflect
// spawns and deaths immediately.
type Roster interface {
	Combatants() []Combatant
}

// CurrentHolder owns the "whose turn is it" reference. The scheduler
// reads and writes it but does not own it.
type CurrentHolder interface {
	Current() Combatant
	SetCurrent(c Combatant)
}

// OutcomeSink receives the battle-over notifications. Each fires at most
// once per battle, guarded by the scheduler's sticky ended state.
type OutcomeSink interface {
	OnVictory()
	OnDefeat()
}

// SchedulerConfig wires a TurnScheduler to its collaborators.
type SchedulerConfig struct {
	Roster  Roster
	Current CurrentHolder
	Slots   *SlotTable
	Outcome OutcomeSink
	Logger  *zap.Logger
}

// TurnScheduler decides which combatant acts next. Combatants accumulate
// an action gauge at their speed per increment pass; crossing
// GaugeThreshold makes them eligible, with ties broken by
// CompareCombatants. Selection and advancement run on a single goroutine;
// the acting/selecting flags are logical guards against re-entrancy and
// double selection, not locks.
type TurnScheduler struct {
	roster  Roster
	current CurrentHolder
	slots   *SlotTable
	outcome OutcomeSink
	logger  *zap.Logger

	acting           bool // a selected combatant's turn is in progress
	selecting        bool // re-entrancy guard around selection
	ended            bool // sticky; cleared only by Reset
	selectionEnabled bool
	verdict          Verdict
	fatalErr         error
	turnCount        int
}

// NewTurnScheduler creates a scheduler. Roster and Current may be nil;
// the scheduler then degrades to a no-op until they are provided via a
// rebuild (missing collaborators are not fatal).
func NewTurnScheduler(cfg SchedulerConfig) *TurnScheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TurnScheduler{
		roster:           cfg.Roster,
		current:          cfg.Current,
		slots:            cfg.Slots,
		outcome:          cfg.Outcome,
		logger:           logger,
		selectionEnabled: true,
		verdict:          VerdictContinue,
	}
}

// Tick is the host polling entry point, safe to call every frame. A panic
// inside a tick is recovered and logged; the battle degrades to "do
// nothing this tick".
func (s *TurnScheduler) Tick() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("turn scheduler tick panicked", zap.Any("recover", r))
		}
	}()
	s.TrySelectNext()
}

// TrySelectNext picks the next eligible combatant and publishes it as
// current, unless a turn is already in progress or the battle is over.
func (s *TurnScheduler) TrySelectNext() {
	if s.selecting || s.ended || !s.selectionEnabled {
		return
	}
	if s.roster == nil || s.current == nil {
		return
	}
	s.selecting = true
	defer func() { s.selecting = false }()

	if s.checkEnd() != VerdictContinue {
		return
	}

	cur := s.current.Current()

	// A combatant that died before acting must not hold the acting lock.
	if s.acting && cur != nil && cur.IsDead() {
		s.acting = false
	}
	if s.acting && cur != nil && cur.IsAlive() {
		return
	}

	for attempt := 0; ; attempt++ {
		winner := s.pickEligible(cur)
		if winner == nil {
			// Nobody is over the threshold; the advance step raises gauges.
			return
		}
		// Re-validate: state may have changed mid-scan.
		if winner.IsDead() {
			if attempt >= maxSelectRetries {
				s.fail(errors.New("battle: selection retries exhausted on dead candidates"))
				return
			}
			continue
		}
		s.acting = true
		s.turnCount++
		s.current.SetCurrent(winner)
		s.logger.Debug("combatant selected",
			zap.Int("turn", s.turnCount),
			zap.String("name", winner.Name()),
			zap.String("team", winner.Team().String()),
			zap.Float64("gauge", winner.Gauge()))
		return
	}
}

// pickEligible scans living combatants at or above the threshold and
// returns the winner: highest gauge, ties broken by CompareCombatants.
// The current combatant is excluded even if eligible; it must finish its
// turn before it can be considered again.
func (s *TurnScheduler) pickEligible(cur Combatant) Combatant {
	var winner Combatant
	for _, c := range s.roster.Combatants() {
		if c == nil || c == cur || c.IsDead() {
			continue
		}
		if c.Gauge() < GaugeThreshold-gaugeEpsilon {
			continue
		}
		if winner == nil {
			winner = c
			continue
		}
		diff := c.Gauge() - winner.Gauge()
		switch {
		case diff > gaugeEpsilon:
			winner = c
		case diff >= -gaugeEpsilon:
			// Gauge tie within tolerance: deterministic tie-break.
			if CompareCombatants(c, winner, s.slots) {
				winner = c
			}
		}
	}
	return winner
}

// AdvanceToNextTurn is called by the turn executor once the current
// combatant's turn is fully resolved. It resets the actor's gauge
// (preserving any excess over the threshold), raises everyone else's, and
// selects the next combatant. Returns ErrNoProgress when the bounded
// increment loop cannot make anyone eligible.
func (s *TurnScheduler) AdvanceToNextTurn() error {
	if s.ended || !s.selectionEnabled {
		return nil
	}
	if s.roster == nil || s.current == nil {
		return nil
	}
	if s.checkEnd() != VerdictContinue {
		return nil
	}

	cur := s.current.Current()
	if cur == nil {
		// No turn is in progress, e.g. the very first advance or after
		// a Reset. Charge gauges until someone is eligible, then select;
		// returning here with everyone under the threshold would leave
		// the battle unable to make progress.
		s.acting = false
		if !s.anyEligible(nil) {
			if err := s.chargeUntilEligible(nil); err != nil {
				return err
			}
		}
		s.TrySelectNext()
		return nil
	}

	if cur.IsDead() {
		// A dead combatant's turn contributes no excess preservation:
		// skip the reset, but still give everyone else one pass.
		s.acting = false
		s.incrementPass(cur)
		s.TrySelectNext()
		return nil
	}

	carry := cur.Gauge() - GaugeThreshold
	cur.ResetGauge(carry)
	s.acting = false

	if err := s.chargeUntilEligible(cur); err != nil {
		return err
	}

	s.TrySelectNext()
	return nil
}

// chargeUntilEligible runs increment passes, skipping except, until some
// other combatant crosses the threshold. The pass bound comes from the
// fastest of the participating speeds, or a slow-but-positive speed
// would be misreported as a stalled configuration. Always runs at least
// one pass.
func (s *TurnScheduler) chargeUntilEligible(except Combatant) error {
	maxOther := 0.0
	for _, c := range s.roster.Combatants() {
		if c == nil || c == except || c.IsDead() {
			continue
		}
		if c.Speed() > maxOther {
			maxOther = c.Speed()
		}
	}
	if maxOther <= gaugeEpsilon {
		s.fail(ErrNoProgress)
		return ErrNoProgress
	}
	limit := maxAdvancePasses
	if derived := int(GaugeThreshold/maxOther) + 1; derived > limit {
		limit = derived
	}

	s.incrementPass(except)
	passes := 1
	for !s.anyEligible(except) {
		if passes >= limit {
			s.fail(ErrNoProgress)
			return ErrNoProgress
		}
		s.incrementPass(except)
		passes++
	}
	return nil
}

// PrimeGauges runs increment passes from the initial all-zero state until
// some combatant becomes eligible. Called once at battle start; the
// bound is derived from the fastest living speed rather than
// maxAdvancePasses, since every gauge starts at zero.
func (s *TurnScheduler) PrimeGauges() error {
	if s.ended || s.roster == nil {
		return nil
	}
	maxSpeed := 0.0
	for _, c := range s.roster.Combatants() {
		if c != nil && c.IsAlive() && c.Speed() > maxSpeed {
			maxSpeed = c.Speed()
		}
	}
	if maxSpeed <= gaugeEpsilon {
		s.fail(ErrNoProgress)
		return ErrNoProgress
	}
	limit := int(GaugeThreshold/maxSpeed) + 1
	for passes := 0; !s.anyEligible(nil); passes++ {
		if passes > limit {
			s.fail(ErrNoProgress)
			return ErrNoProgress
		}
		s.incrementPass(nil)
	}
	return nil
}

// incrementPass raises every living combatant's gauge by its speed,
// except the given one.
func (s *TurnScheduler) incrementPass(except Combatant) {
	for _, c := range s.roster.Combatants() {
		if c == nil || c == except || c.IsDead() {
			continue
		}
		c.AddGauge(c.Speed())
	}
}

// anyEligible reports whether any living combatant other than except has
// crossed the threshold. The former current combatant is excluded: it
// cannot be re-selected until someone else acts, so counting it would
// stall the battle.
func (s *TurnScheduler) anyEligible(except Combatant) bool {
	for _, c := range s.roster.Combatants() {
		if c == nil || c == except || c.IsDead() {
			continue
		}
		if c.Gauge() >= GaugeThreshold-gaugeEpsilon {
			return true
		}
	}
	return false
}

// checkEnd evaluates the end condition and, on the first transition into
// an ended state, fires the matching outcome notification exactly once.
func (s *TurnScheduler) checkEnd() Verdict {
	if s.ended {
		return s.verdict
	}
	if s.roster == nil {
		return VerdictContinue
	}

	anyAllyAlive, anyEnemyAlive, any := false, false, false
	for _, c := range s.roster.Combatants() {
		if c == nil {
			continue
		}
		any = true
		if !c.IsAlive() {
			continue
		}
		if c.IsAlly() {
			anyAllyAlive = true
		} else {
			anyEnemyAlive = true
		}
	}

	switch {
	case !any, !anyAllyAlive && !anyEnemyAlive:
		s.ended = true
		s.verdict = VerdictNoUnits
		s.logger.Warn("battle ended with no surviving units")
	case !anyAllyAlive:
		s.ended = true
		s.verdict = VerdictDefeat
		if s.outcome != nil {
			s.outcome.OnDefeat()
		}
	case !anyEnemyAlive:
		s.ended = true
		s.verdict = VerdictVictory
		if s.outcome != nil {
			s.outcome.OnVictory()
		}
	}
	return s.verdict
}

// CheckBattleContinues runs the end-condition check and reports whether
// the battle is still live.
func (s *TurnScheduler) CheckBattleContinues() bool {
	return s.checkEnd() == VerdictContinue
}

func (s *TurnScheduler) fail(err error) {
	s.fatalErr = err
	s.ended = true
	s.logger.Error("turn scheduler fatal", zap.Error(err))
}

// SetSelectionEnabled is the external pause switch. While disabled the
// scheduler performs no selection or advancement.
func (s *TurnScheduler) SetSelectionEnabled(enabled bool) {
	s.selectionEnabled = enabled
}

// Reset clears all scheduler state for a new battle. This is the only
// way out of the sticky ended state.
func (s *TurnScheduler) Reset() {
	s.acting = false
	s.selecting = false
	s.ended = false
	s.selectionEnabled = true
	s.verdict = VerdictContinue
	s.fatalErr = nil
	s.turnCount = 0
	if s.current != nil {
		s.current.SetCurrent(nil)
	}
}

// Ended reports whether the battle is over (outcome reached or fatal error).
func (s *TurnScheduler) Ended() bool { return s.ended }

// Verdict returns the battle outcome, VerdictContinue while live.
func (s *TurnScheduler) Verdict() Verdict { return s.verdict }

// Err returns the fatal configuration error, if any.
func (s *TurnScheduler) Err() error { return s.fatalErr }

// TurnCount returns the number of turns selected so far.
func (s *TurnScheduler) TurnCount() int { return s.turnCount }

// IsActing reports whether a selected combatant's turn is in progress.
func (s *TurnScheduler) IsActing() bool { return s.acting }
