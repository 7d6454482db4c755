package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/harutoki/beastline/server/cache"
	"github.com/harutoki/beastline/server/config"
	mw "github.com/harutoki/beastline/server/middleware"
	"github.com/harutoki/beastline/server/model"
)

const bcryptCost = 12

// AuthHandler owns the login, logout, and token refresh endpoints.
type AuthHandler struct {
	db    *gorm.DB
	cache cache.Cache
	sec   config.SecurityConfig
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(db *gorm.DB, c cache.Cache, sec config.SecurityConfig) *AuthHandler {
	return &AuthHandler{db: db, cache: c, sec: sec}
}

type credentials struct {
	Username string `json:"username" binding:"required,min=2,max=32"`
	Password string `json:"password" binding:"required,min=4,max=64"`
}

// Login handles POST /api/auth/login. An unknown username registers a
// fresh account with the presented password; a known one must match.
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acc, err := h.findOrRegister(c, req)
	if err != nil {
		return // response already written
	}
	if acc.Banned() {
		c.JSON(http.StatusForbidden, gin.H{"error": "account banned"})
		return
	}

	token, expiresAt, err := h.issueSession(c, acc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	// Best-effort login bookkeeping.
	now := time.Now()
	_ = h.db.Model(acc).Updates(map[string]interface{}{
		"login_count":   gorm.Expr("login_count + 1"),
		"last_login_at": now,
		"last_login_ip": c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"account_id": acc.ID,
		"username":   acc.Username,
		"expires_at": expiresAt.Unix(),
	})
}

// findOrRegister resolves the credentials to an account, creating one
// for an unseen username. Writes the error response itself on failure.
func (h *AuthHandler) findOrRegister(c *gin.Context, req credentials) (*model.Account, error) {
	var acc model.Account
	err := h.db.Where("username = ?", req.Username).First(&acc).Error

	switch {
	case err == nil:
		if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return nil, errors.New("bad password")
		}
		return &acc, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		hash, hashErr := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
		if hashErr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return nil, hashErr
		}
		acc = model.Account{
			Username:     req.Username,
			PasswordHash: string(hash),
			Status:       model.AccountActive,
		}
		if createErr := h.db.Create(&acc).Error; createErr != nil {
			// Two first-logins racing on the same name: one insert loses.
			if isUniqueViolation(createErr) {
				c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
			}
			return nil, createErr
		}
		return &acc, nil

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return nil, err
	}
}

// issueSession mints a token for the account and registers it in the
// session cache for the token's lifetime.
func (h *AuthHandler) issueSession(c *gin.Context, acc *model.Account) (string, time.Time, error) {
	token, err := mw.IssueToken(acc.ID, acc.Username, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		return "", time.Time{}, err
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.cache.Set(ctx, mw.SessionKey(token),
		strconv.FormatInt(acc.ID, 10), h.sec.JWTTTLH); err != nil {
		return "", time.Time{}, err
	}
	return token, time.Now().Add(h.sec.JWTTTLH), nil
}

// Logout handles POST /api/auth/logout: drops the session entry so the
// token dies even though its signature stays valid until expiry.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := mw.BearerToken(c)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(token))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh handles POST /api/auth/refresh: rotates the caller's token,
// killing the old session in the same stroke.
func (h *AuthHandler) Refresh(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	if accountID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(mw.BearerToken(c)))

	acc := &model.Account{ID: accountID, Username: mw.GetUsername(c)}
	token, expiresAt, err := h.issueSession(c, acc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": expiresAt.Unix()})
}

// isUniqueViolation detects duplicate-key errors across the supported
// database drivers.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
