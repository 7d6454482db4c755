package rest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/harutoki/beastline/server/api/rest"
	"github.com/harutoki/beastline/server/cache"
	"github.com/harutoki/beastline/server/config"
	mw "github.com/harutoki/beastline/server/middleware"
	"github.com/harutoki/beastline/server/model"
	"github.com/harutoki/beastline/server/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type authFixture struct {
	router *gin.Engine
	db     *gorm.DB
	cache  cache.Cache
}

func newAuthFixture(t *testing.T) *authFixture {
	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	sec := config.SecurityConfig{
		JWTSecret: "test-secret",
		JWTTTLH:   72 * time.Hour,
	}
	h := rest.NewAuthHandler(db, c, sec)
	r := gin.New()
	r.POST("/api/auth/login", h.Login)
	r.POST("/api/auth/logout", mw.Auth(sec, c), h.Logout)
	r.POST("/api/auth/refresh", mw.Auth(sec, c), h.Refresh)
	return &authFixture{router: r, db: db, cache: c}
}

func (f *authFixture) post(path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *authFixture) login(t *testing.T, username, password string) map[string]interface{} {
	t.Helper()
	w := f.post("/api/auth/login", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestLoginRegistersNewAccount(t *testing.T) {
	f := newAuthFixture(t)

	resp := f.login(t, "alice", "pass1234")
	assert.NotEmpty(t, resp["token"])
	assert.Equal(t, "alice", resp["username"])
	assert.Greater(t, resp["expires_at"].(float64), float64(time.Now().Unix()))

	var acc model.Account
	require.NoError(t, f.db.Where("username = ?", "alice").First(&acc).Error)
	assert.Equal(t, model.AccountActive, acc.Status)
	assert.NotEqual(t, "pass1234", acc.PasswordHash)
	assert.Equal(t, 1, acc.LoginCount)
}

func TestLoginWrongPasswordRejected(t *testing.T) {
	f := newAuthFixture(t)
	f.login(t, "bob", "correct-horse")

	w := f.post("/api/auth/login", map[string]string{"username": "bob", "password": "wrong-horse"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginBookkeeping(t *testing.T) {
	f := newAuthFixture(t)
	f.login(t, "carol", "pass1234")
	f.login(t, "carol", "pass1234")

	var acc model.Account
	require.NoError(t, f.db.Where("username = ?", "carol").First(&acc).Error)
	assert.Equal(t, 2, acc.LoginCount)
	assert.NotNil(t, acc.LastLoginAt)
}

func TestLoginBannedAccountRejected(t *testing.T) {
	f := newAuthFixture(t)
	f.login(t, "mallory", "pass1234")
	require.NoError(t, f.db.Model(&model.Account{}).
		Where("username = ?", "mallory").
		Update("status", model.AccountBanned).Error)

	w := f.post("/api/auth/login", map[string]string{"username": "mallory", "password": "pass1234"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLogoutKillsSession(t *testing.T) {
	f := newAuthFixture(t)
	token := f.login(t, "dave", "pass1234")["token"].(string)

	w := f.post("/api/auth/logout", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)

	// The signature is still valid; the session entry is gone.
	w2 := f.post("/api/auth/refresh", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	f := newAuthFixture(t)
	token := f.login(t, "erin", "pass1234")["token"].(string)

	// IssuedAt has one second precision; a refresh in the same second
	// would mint an identical token.
	time.Sleep(1100 * time.Millisecond)

	w := f.post("/api/auth/refresh", nil, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])
	assert.NotEqual(t, token, resp["token"])

	// Old token is dead after rotation.
	w2 := f.post("/api/auth/refresh", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
}

func TestLoginValidationRejectsShortPassword(t *testing.T) {
	f := newAuthFixture(t)

	w := f.post("/api/auth/login", map[string]string{"username": "x", "password": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
