package rest_test

import (
	"bytes"
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
	mw "github.com/harutoki/beastline/server/middleware"
	"github.com/harutoki/beastline/server/model"
	"github.com/harutoki/beastline/server/testutil"
)

// asAccount fakes the auth middleware for handler-level tests.
func asAccount(id int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(mw.AccountIDKey, id)
	}
}

func newPartyFixture(t *testing.T) (*gin.Engine, *gorm.DB) {
	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	svc := record.NewService(db, c, zap.NewNop())
	h := rest.NewBattleHandler(db, svc, zap.NewNop())

	require.NoError(t, db.Create(&model.Account{
		ID: 1, Username: "tester", PasswordHash: "x", Status: model.AccountActive,
	}).Error)

	r := gin.New()
	r.GET("/api/battles/party", asAccount(1), h.Party)
	r.PUT("/api/battles/party", asAccount(1), h.SaveParty)
	return r, db
}

func putParty(r *gin.Engine, heroIDs []int) *httptest.ResponseRecorder {
	b, _ := json.Marshal(map[string][]int{"hero_ids": heroIDs})
	req := httptest.NewRequest(http.MethodPut, "/api/battles/party", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSavePartyRoundTrip(t *testing.T) {
	r, db := newPartyFixture(t)

	w := putParty(r, []int{1, 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var acc model.Account
	require.NoError(t, db.First(&acc, 1).Error)
	assert.JSONEq(t, `[1,3]`, string(acc.PartyPreset))

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/api/battles/party", nil))
	require.Equal(t, http.StatusOK, w2.Code)
	var resp struct {
		HeroIDs []int `json:"hero_ids"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp))
	assert.Equal(t, []int{1, 3}, resp.HeroIDs)
}

func TestSavePartyRejectsUnknownHero(t *testing.T) {
	r, _ := newPartyFixture(t)

	w := putParty(r, []int{999})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSavePartyRejectsEmptyAndOversized(t *testing.T) {
	r, _ := newPartyFixture(t)

	assert.Equal(t, http.StatusBadRequest, putParty(r, nil).Code)
	assert.Equal(t, http.StatusBadRequest, putParty(r, []int{1, 2, 3, 1}).Code)
}

func TestPartyEmptyWhenUnset(t *testing.T) {
	r, _ := newPartyFixture(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/battles/party", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"hero_ids":[]}`, w.Body.String())
}
