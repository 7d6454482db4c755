package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/harutoki/beastline/server/game/battle"
	"github.com/harutoki/beastline/server/game/record"
	mw "github.com/harutoki/beastline/server/middleware"
	"github.com/harutoki/beastline/server/model"
)

// BattleHandler handles battle history, party preset, and roster
// catalog endpoints.
type BattleHandler struct {
	db     *gorm.DB
	recSvc *record.Service
	logger *zap.Logger
}

// NewBattleHandler creates a BattleHandler.
func NewBattleHandler(db *gorm.DB, recSvc *record.Service, logger *zap.Logger) *BattleHandler {
	return &BattleHandler{db: db, recSvc: recSvc, logger: logger}
}

// Recent returns the authenticated account's latest battles.
// GET /api/battles/recent?limit=20
func (h *BattleHandler) Recent(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	if accountID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = l
	}

	recs, err := h.recSvc.RecentBattles(c.Request.Context(), accountID, limit)
	if err != nil {
		h.logger.Error("recent battles query", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"battles": recs})
}

// SaveParty stores the account's default party, used by battle_start
// when the packet carries no explicit hero list.
// PUT /api/battles/party
func (h *BattleHandler) SaveParty(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	if accountID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		HeroIDs []int `json:"hero_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if len(req.HeroIDs) > battle.TeamSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "party too large"})
		return
	}
	for _, id := range req.HeroIDs {
		if _, ok := battle.HeroTemplate(id); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown hero"})
			return
		}
	}

	preset, err := json.Marshal(req.HeroIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	err = h.db.Model(&model.Account{}).
		Where("id = ?", accountID).
		Update("party_preset", datatypes.JSON(preset)).Error
	if err != nil {
		h.logger.Error("save party preset", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hero_ids": req.HeroIDs})
}

// Party returns the account's saved default party.
// GET /api/battles/party
func (h *BattleHandler) Party(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	if accountID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var acc model.Account
	if err := h.db.Select("party_preset").First(&acc, accountID).Error; err != nil {
		h.logger.Error("load party preset", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	ids := make([]int, 0)
	if len(acc.PartyPreset) > 0 {
		if err := json.Unmarshal(acc.PartyPreset, &ids); err != nil {
			h.logger.Warn("corrupt party preset", zap.Int64("account_id", accountID), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"hero_ids": ids})
}

// Heroes lists the hero templates available for party building.
// GET /api/battles/heroes
func (h *BattleHandler) Heroes(c *gin.Context) {
	type heroResp struct {
		HeroID int          `json:"hero_id"`
		Name   string       `json:"name"`
		Stats  battle.Stats `json:"stats"`
		Skills []int        `json:"skills"`
	}
	out := make([]heroResp, 0)
	for _, id := range battle.HeroIDs() {
		tpl, _ := battle.HeroTemplate(id)
		out = append(out, heroResp{HeroID: tpl.HeroID, Name: tpl.Name, Stats: tpl.Stats, Skills: tpl.Skills})
	}
	c.JSON(http.StatusOK, gin.H{"heroes": out})
}

// Bestiary lists the monster species templates.
// GET /api/battles/bestiary
func (h *BattleHandler) Bestiary(c *gin.Context) {
	type speciesResp struct {
		SpeciesID int          `json:"species_id"`
		Name      string       `json:"name"`
		Stats     battle.Stats `json:"stats"`
		Skills    []int        `json:"skills"`
	}
	out := make([]speciesResp, 0)
	for _, id := range battle.MonsterIDs() {
		tpl, _ := battle.MonsterTemplate(id)
		out = append(out, speciesResp{SpeciesID: tpl.SpeciesID, Name: tpl.Name, Stats: tpl.Stats, Skills: tpl.Skills})
	}
	c.JSON(http.StatusOK, gin.H{"bestiary": out})
}
