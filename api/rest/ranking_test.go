package rest_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/harutoki/beastline/server/api/rest"
	"github.com/harutoki/beastline/server/game/record"
	"github.com/harutoki/beastline/server/model"
	"github.com/harutoki/beastline/server/testutil"
)

type rankingFixture struct {
	router *gin.Engine
	db     *gorm.DB
	svc    *record.Service
}

func newRankingFixture(t *testing.T) *rankingFixture {
	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	svc := record.NewService(db, c, zap.NewNop())
	h := rest.NewRankingHandler(db, svc, zap.NewNop())

	r := gin.New()
	r.GET("/api/ranking/victories", h.TopVictories)
	r.POST("/api/ranking/refresh", h.RefreshRanking)
	return &rankingFixture{router: r, db: db, svc: svc}
}

func (f *rankingFixture) seedVictories(t *testing.T, accountID int64, username string, wins int) {
	t.Helper()
	require.NoError(t, f.db.Create(&model.Account{
		ID:           accountID,
		Username:     username,
		PasswordHash: "x",
		Status:       1,
	}).Error)
	for i := 0; i < wins; i++ {
		require.NoError(t, f.db.Create(&model.BattleRecord{
			BattleID:  "seed",
			AccountID: accountID,
			Outcome:   model.OutcomeVictory,
			Turns:     1,
		}).Error)
	}
}

func TestTopVictoriesRanksAndNames(t *testing.T) {
	f := newRankingFixture(t)
	f.seedVictories(t, 1, "alice", 2)
	f.seedVictories(t, 2, "bob", 5)

	// Board lives in the cache; populate it from the seeded records.
	wRefresh := httptest.NewRecorder()
	f.router.ServeHTTP(wRefresh, httptest.NewRequest(http.MethodPost, "/api/ranking/refresh", nil))
	require.Equal(t, http.StatusOK, wRefresh.Code)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ranking/victories", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Ranking []rest.RankEntry `json:"ranking"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Ranking, 2)

	assert.Equal(t, 1, resp.Ranking[0].Rank)
	assert.Equal(t, "bob", resp.Ranking[0].Username)
	assert.Equal(t, int64(5), resp.Ranking[0].Victories)
	assert.Equal(t, 2, resp.Ranking[1].Rank)
	assert.Equal(t, "alice", resp.Ranking[1].Username)
}

func TestTopVictoriesEmptyBoard(t *testing.T) {
	f := newRankingFixture(t)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ranking/victories", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Ranking []rest.RankEntry `json:"ranking"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Ranking)
}

func TestHeroesAndBestiaryCatalogs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	svc := record.NewService(db, c, zap.NewNop())
	h := rest.NewBattleHandler(db, svc, zap.NewNop())

	r := gin.New()
	r.GET("/api/battles/heroes", h.Heroes)
	r.GET("/api/battles/bestiary", h.Bestiary)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/battles/heroes", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var heroes struct {
		Heroes []map[string]interface{} `json:"heroes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &heroes))
	assert.NotEmpty(t, heroes.Heroes)

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/api/battles/bestiary", nil))
	require.Equal(t, http.StatusOK, w2.Code)
	var bestiary struct {
		Bestiary []map[string]interface{} `json:"bestiary"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &bestiary))
	assert.NotEmpty(t, bestiary.Bestiary)
}
