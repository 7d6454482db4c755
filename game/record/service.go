package record

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/harutoki/beastline/server/cache"
	"github.com/harutoki/beastline/server/game/battle"
	"github.com/harutoki/beastline/server/model"
)

// victoriesKey is the ZSet holding per-account victory counts.
const victoriesKey = "ranking:victories"

// RankingEntry is one row of the victories leaderboard.
type RankingEntry struct {
	AccountID int64   `json:"account_id"`
	Victories float64 `json:"victories"`
}

// Service persists finished battles and maintains the victories ranking.
type Service struct {
	db     *gorm.DB
	cache  cache.Cache
	logger *zap.Logger
}

func NewService(db *gorm.DB, c cache.Cache, logger *zap.Logger) *Service {
	return &Service{db: db, cache: c, logger: logger}
}

// SaveBattle writes a BattleRecord for a finished instance and bumps the
// account's victory count when it won. The roster snapshot captures the
// final state of both teams.
func (s *Service) SaveBattle(ctx context.Context, accountID int64, inst *battle.BattleInstance, duration time.Duration) (*model.BattleRecord, error) {
	snaps := make([]battle.CombatantSnapshot, 0, len(inst.Combatants()))
	for _, c := range inst.Combatants() {
		snaps = append(snaps, battle.SnapshotCombatant(c, inst.Slots()))
	}
	roster, err := json.Marshal(snaps)
	if err != nil {
		return nil, fmt.Errorf("marshal roster: %w", err)
	}

	rec := &model.BattleRecord{
		BattleID:   inst.BattleID(),
		AccountID:  accountID,
		Outcome:    inst.Outcome(),
		Turns:      inst.Scheduler().TurnCount(),
		Roster:     roster,
		DurationMs: int(duration / time.Millisecond),
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("save battle record: %w", err)
	}

	if rec.Outcome == model.OutcomeVictory {
		member := strconv.FormatInt(accountID, 10)
		if _, err := s.cache.ZIncrBy(ctx, victoriesKey, 1, member); err != nil {
			// Ranking is best-effort; the record itself is already durable.
			s.logger.Warn("victory ranking update failed",
				zap.Int64("account_id", accountID), zap.Error(err))
		}
	}

	s.logger.Info("battle recorded",
		zap.String("battle_id", rec.BattleID),
		zap.Int64("account_id", accountID),
		zap.String("outcome", rec.Outcome),
		zap.Int("turns", rec.Turns))
	return rec, nil
}

// RecentBattles returns an account's most recent records, newest first.
func (s *Service) RecentBattles(ctx context.Context, accountID int64, limit int) ([]model.BattleRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var recs []model.BattleRecord
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("query battle records: %w", err)
	}
	return recs, nil
}

// TopVictories returns the leaderboard's top accounts by victory count.
func (s *Service) TopVictories(ctx context.Context, limit int) ([]RankingEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	members, err := s.cache.ZRevRange(ctx, victoriesKey, 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("query victory ranking: %w", err)
	}

	entries := make([]RankingEntry, 0, len(members))
	for _, member := range members {
		accountID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		score, err := s.cache.ZScore(ctx, victoriesKey, member)
		if err != nil {
			continue
		}
		entries = append(entries, RankingEntry{AccountID: accountID, Victories: score})
	}
	return entries, nil
}

// Victories returns one account's victory count, 0 when unranked.
func (s *Service) Victories(ctx context.Context, accountID int64) float64 {
	score, err := s.cache.ZScore(ctx, victoriesKey, strconv.FormatInt(accountID, 10))
	if err != nil {
		return 0
	}
	return score
}

// RebuildRanking recomputes the victories ZSet from the battle records
// table. Called periodically so cache restarts cannot lose the board.
func (s *Service) RebuildRanking(ctx context.Context) error {
	type row struct {
		AccountID int64
		Wins      int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&model.BattleRecord{}).
		Select("account_id, COUNT(*) AS wins").
		Where("outcome = ?", model.OutcomeVictory).
		Group("account_id").
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("aggregate victories: %w", err)
	}

	for _, r := range rows {
		member := strconv.FormatInt(r.AccountID, 10)
		current, _ := s.cache.ZScore(ctx, victoriesKey, member)
		delta := float64(r.Wins) - current
		if delta == 0 {
			continue
		}
		if _, err := s.cache.ZIncrBy(ctx, victoriesKey, delta, member); err != nil {
			return fmt.Errorf("rebuild ranking for account %d: %w", r.AccountID, err)
		}
	}
	return nil
}
