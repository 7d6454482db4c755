package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/harutoki/beastline/server/config"
	"github.com/harutoki/beastline/server/game/battle"
	"github.com/harutoki/beastline/server/game/player"
	"github.com/harutoki/beastline/server/game/record"
	"github.com/harutoki/beastline/server/model"
)

// BattleSessionManager manages server-authoritative battle instances,
// one per account.
type BattleSessionManager struct {
	mu      sync.RWMutex
	battles map[int64]*activeBattle // accountID → active battle

	db     *gorm.DB
	cfg    config.BattleConfig
	recSvc *record.Service
	rng    *rand.Rand
	logger *zap.Logger
}

type activeBattle struct {
	instance *battle.BattleInstance
	cancel   context.CancelFunc
	started  time.Time

	mu   sync.Mutex
	sess *player.PlayerSession
}

func (ab *activeBattle) session() *player.PlayerSession {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	return ab.sess
}

func (ab *activeBattle) detach() {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	ab.sess = nil
}

// NewBattleSessionManager creates a new manager.
func NewBattleSessionManager(db *gorm.DB, cfg config.BattleConfig, recSvc *record.Service, logger *zap.Logger) *BattleSessionManager {
	return &BattleSessionManager{
		battles: make(map[int64]*activeBattle),
		db:      db,
		cfg:     cfg,
		recSvc:  recSvc,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:  logger,
	}
}

// RegisterHandlers registers the battle WS handlers.
func (bm *BattleSessionManager) RegisterHandlers(r *Router) {
	r.On("battle_start", bm.HandleBattleStart)
	r.OnBattle("battle_input", bm.HandleBattleInput)
	r.OnBattle("battle_forfeit", bm.HandleBattleForfeit)
}

// ActiveCount returns the number of battles currently running.
func (bm *BattleSessionManager) ActiveCount() int {
	bm.mu.RLock()
	defer bm.mu.RUnlock()
	return len(bm.battles)
}

// InstanceFor returns the running instance for an account, or nil.
func (bm *BattleSessionManager) InstanceFor(accountID int64) *battle.BattleInstance {
	bm.mu.RLock()
	defer bm.mu.RUnlock()
	if ab := bm.battles[accountID]; ab != nil {
		return ab.instance
	}
	return nil
}

// Stale returns the battle IDs of instances running longer than maxAge.
func (bm *BattleSessionManager) Stale(maxAge time.Duration) []string {
	bm.mu.RLock()
	defer bm.mu.RUnlock()
	var ids []string
	for _, ab := range bm.battles {
		if time.Since(ab.started) > maxAge {
			ids = append(ids, ab.instance.BattleID())
		}
	}
	return ids
}

// Detach stops event delivery to a disconnected account. The battle keeps
// running so a quick reconnect could be supported later; without input it
// aborts on its own timeout.
func (bm *BattleSessionManager) Detach(accountID int64) {
	bm.mu.RLock()
	ab := bm.battles[accountID]
	bm.mu.RUnlock()
	if ab != nil {
		ab.detach()
	}
}

// HandleBattleStart builds a battle from the requested party and encounter
// and starts it in the background.
func (bm *BattleSessionManager) HandleBattleStart(_ context.Context, s *player.PlayerSession, raw json.RawMessage) error {
	var req struct {
		HeroIDs    []int `json:"hero_ids"`
		SpeciesIDs []int `json:"species_ids"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil
	}

	if len(req.HeroIDs) == 0 {
		req.HeroIDs = bm.presetParty(s.AccountID)
	}
	if len(req.HeroIDs) == 0 || len(req.HeroIDs) > bm.cfg.MaxPartySize {
		bm.sendError(s, fmt.Sprintf("party must have 1 to %d members", bm.cfg.MaxPartySize))
		return nil
	}
	if len(req.SpeciesIDs) == 0 {
		req.SpeciesIDs = bm.randomEncounter()
	}
	if len(req.SpeciesIDs) > battle.TeamSize {
		req.SpeciesIDs = req.SpeciesIDs[:battle.TeamSize]
	}

	inst := battle.NewBattleInstance(battle.InstanceConfig{
		BattleID:     uuid.NewString(),
		Logger:       bm.logger,
		RNG:          rand.New(rand.NewSource(bm.rng.Int63())),
		InputTimeout: bm.cfg.InputTimeout,
		TickInterval: bm.cfg.TickInterval,
	})

	for _, heroID := range req.HeroIDs {
		tpl, ok := battle.HeroTemplate(heroID)
		if !ok {
			bm.sendError(s, "unknown hero")
			return nil
		}
		if _, err := inst.SpawnAlly(tpl); err != nil {
			bm.sendError(s, err.Error())
			return nil
		}
	}
	for _, speciesID := range req.SpeciesIDs {
		tpl, ok := battle.MonsterTemplate(speciesID)
		if !ok {
			bm.sendError(s, "unknown monster species")
			return nil
		}
		if _, err := inst.SpawnMonster(tpl); err != nil {
			bm.sendError(s, err.Error())
			return nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	ab := &activeBattle{instance: inst, cancel: cancel, started: time.Now(), sess: s}

	// Check-and-insert under one lock so two racing battle_start packets
	// cannot both claim the account's slot. The loser's instance was
	// never started and is simply dropped.
	bm.mu.Lock()
	if _, busy := bm.battles[s.AccountID]; busy {
		bm.mu.Unlock()
		cancel()
		bm.sendError(s, "already in battle")
		return nil
	}
	bm.battles[s.AccountID] = ab
	bm.mu.Unlock()
	s.SetBattleID(inst.BattleID())

	go bm.broadcastEvents(ab)
	go bm.runBattle(ctx, cancel, s.AccountID, ab)

	return nil
}

// HandleBattleInput receives player action choices during a battle.
func (bm *BattleSessionManager) HandleBattleInput(_ context.Context, s *player.PlayerSession, raw json.RawMessage) error {
	var req struct {
		ActorID    int64   `json:"actor_id"`
		ActionType int     `json:"action_type"` // 0=attack, 1=skill, 2=guard
		SkillID    int     `json:"skill_id"`
		TargetIDs  []int64 `json:"target_ids"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil
	}

	bm.mu.RLock()
	ab := bm.battles[s.AccountID]
	bm.mu.RUnlock()

	if ab == nil {
		bm.logger.Debug("battle_input from player not in battle", zap.Int64("account_id", s.AccountID))
		return nil
	}

	ab.instance.SubmitInput(&battle.ActionInput{
		ActorID:    req.ActorID,
		ActionType: req.ActionType,
		SkillID:    req.SkillID,
		TargetIDs:  req.TargetIDs,
	})
	return nil
}

// HandleBattleForfeit cancels the account's running battle.
func (bm *BattleSessionManager) HandleBattleForfeit(_ context.Context, s *player.PlayerSession, _ json.RawMessage) error {
	bm.mu.RLock()
	ab := bm.battles[s.AccountID]
	bm.mu.RUnlock()

	if ab == nil {
		return nil
	}
	bm.logger.Info("battle forfeited",
		zap.Int64("account_id", s.AccountID),
		zap.String("battle_id", ab.instance.BattleID()))
	ab.cancel()
	return nil
}

// runBattle blocks on the instance loop, then records the result and
// releases the slot.
func (bm *BattleSessionManager) runBattle(ctx context.Context, cancel context.CancelFunc, accountID int64, ab *activeBattle) {
	defer cancel()
	started := ab.started

	outcome := ab.instance.Run(ctx)

	bm.mu.Lock()
	delete(bm.battles, accountID)
	bm.mu.Unlock()
	if s := ab.session(); s != nil {
		s.SetBattleID("")
	}

	bm.logger.Info("battle ended",
		zap.Int64("account_id", accountID),
		zap.String("battle_id", ab.instance.BattleID()),
		zap.String("outcome", outcome))

	saveCtx, saveCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer saveCancel()
	if _, err := bm.recSvc.SaveBattle(saveCtx, accountID, ab.instance, time.Since(started)); err != nil {
		bm.logger.Error("save battle record", zap.Error(err))
	}
}

// broadcastEvents reads BattleEvents from the instance and forwards them
// to the owning session until the event channel closes.
func (bm *BattleSessionManager) broadcastEvents(ab *activeBattle) {
	for evt := range ab.instance.Events() {
		s := ab.session()
		if s == nil {
			continue // drain so the instance never blocks
		}
		payload, err := json.Marshal(evt)
		if err != nil {
			bm.logger.Error("marshal battle event", zap.Error(err))
			continue
		}
		s.Send(&player.Packet{Type: evt.EventType(), Payload: payload})
	}
}

// presetParty loads the account's saved party from the database. Returns
// nil when the account has no usable preset.
func (bm *BattleSessionManager) presetParty(accountID int64) []int {
	if bm.db == nil {
		return nil
	}
	var acc model.Account
	if err := bm.db.Select("party_preset").First(&acc, accountID).Error; err != nil {
		return nil
	}
	if len(acc.PartyPreset) == 0 {
		return nil
	}
	var ids []int
	if err := json.Unmarshal(acc.PartyPreset, &ids); err != nil {
		bm.logger.Warn("corrupt party preset",
			zap.Int64("account_id", accountID), zap.Error(err))
		return nil
	}
	return ids
}

// randomEncounter rolls one to three monsters from the species table.
func (bm *BattleSessionManager) randomEncounter() []int {
	ids := battle.MonsterIDs()
	count := 1 + bm.rng.Intn(battle.TeamSize)
	out := make([]int, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, ids[bm.rng.Intn(len(ids))])
	}
	return out
}

func (bm *BattleSessionManager) sendError(s *player.PlayerSession, msg string) {
	payload, _ := json.Marshal(map[string]string{"error": msg})
	s.Send(&player.Packet{Type: "battle_error", Payload: payload})
}
