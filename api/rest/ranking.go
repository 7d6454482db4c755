package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/harutoki/beastline/server/game/record"
	"github.com/harutoki/beastline/server/model"
)

// RankingHandler handles leaderboard REST endpoints.
type RankingHandler struct {
	db     *gorm.DB
	recSvc *record.Service
	logger *zap.Logger
}

// NewRankingHandler creates a RankingHandler.
func NewRankingHandler(db *gorm.DB, recSvc *record.Service, logger *zap.Logger) *RankingHandler {
	return &RankingHandler{db: db, recSvc: recSvc, logger: logger}
}

const rankingTop = 100

// RankEntry is one row in the leaderboard.
type RankEntry struct {
	Rank      int    `json:"rank"`
	AccountID int64  `json:"account_id"`
	Username  string `json:"username"`
	Victories int64  `json:"victories"`
}

// TopVictories returns the top accounts by victory count.
// GET /api/ranking/victories?limit=20
func (h *RankingHandler) TopVictories(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= rankingTop {
		limit = l
	}

	rows, err := h.recSvc.TopVictories(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("victory ranking query", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ranking unavailable"})
		return
	}

	entries := make([]RankEntry, 0, len(rows))
	for i, r := range rows {
		entries = append(entries, RankEntry{
			Rank:      i + 1,
			AccountID: r.AccountID,
			Victories: int64(r.Victories),
		})
	}
	h.enrichNames(entries)
	c.JSON(http.StatusOK, gin.H{"ranking": entries})
}

// RefreshRanking rebuilds the victories sorted set from the DB.
// Called periodically by the scheduler; also exposed as POST /api/admin/ranking/refresh.
func (h *RankingHandler) RefreshRanking(c *gin.Context) {
	if err := h.recSvc.RebuildRanking(c.Request.Context()); err != nil {
		h.logger.Error("ranking rebuild", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rebuild failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refreshed"})
}

func (h *RankingHandler) enrichNames(entries []RankEntry) {
	if len(entries) == 0 {
		return
	}
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.AccountID
	}
	var accs []model.Account
	h.db.Select("id, username").Where("id IN ?", ids).Find(&accs)
	nameMap := make(map[int64]string, len(accs))
	for _, a := range accs {
		nameMap[a.ID] = a.Username
	}
	for i := range entries {
		entries[i].Username = nameMap[entries[i].AccountID]
	}
}
