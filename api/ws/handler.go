package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/harutoki/beastline/server/cache"
	"github.com/harutoki/beastline/server/config"
	"github.com/harutoki/beastline/server/game/player"
	mw "github.com/harutoki/beastline/server/middleware"
	"github.com/harutoki/beastline/server/model"
)

// Handler is the Gin handler for GET /ws.
type Handler struct {
	db        *gorm.DB
	cache     cache.Cache
	sec       config.SecurityConfig
	sm        *player.SessionManager
	battleMgr *BattleSessionManager
	router    *Router
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

// NewHandler creates a new WebSocket Handler.
// sec.AllowedOrigins controls which WebSocket origins are accepted.
// An empty slice permits all origins (development only).
func NewHandler(
	db *gorm.DB,
	c cache.Cache,
	sec config.SecurityConfig,
	sm *player.SessionManager,
	battleMgr *BattleSessionManager,
	router *Router,
	logger *zap.Logger,
) *Handler {
	h := &Handler{
		db:        db,
		cache:     c,
		sec:       sec,
		sm:        sm,
		battleMgr: battleMgr,
		router:    router,
		logger:    logger,
	}
	allowed := sec.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true // dev mode: allow all
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowed {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

// ServeWS handles GET /ws?token=<jwt>.
func (h *Handler) ServeWS(c *gin.Context) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	// Validate JWT.
	claims, err := mw.ParseToken(tokenStr, h.sec.JWTSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	// Validate session cache.
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	exists, err := h.cache.Exists(ctx, mw.SessionKey(tokenStr))
	if err != nil || !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}

	var account model.Account
	if err := h.db.First(&account, claims.AccountID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown account"})
		return
	}
	if account.Banned() {
		c.JSON(http.StatusForbidden, gin.H{"error": "account banned"})
		return
	}

	// Upgrade to WebSocket.
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", zap.Error(err))
		return
	}

	sess := player.NewPlayerSession(account.ID, account.Username, conn, h.logger)

	// Start read pump (blocks until connection closes).
	h.sm.Register(sess)
	h.readPump(sess)
}

// readPump reads messages from the WebSocket connection and dispatches them.
func (h *Handler) readPump(s *player.PlayerSession) {
	defer func() {
		h.handleDisconnect(s)
	}()

	s.SetReadDeadline()
	s.Conn.SetPongHandler(func(string) error {
		s.SetReadDeadline()
		return nil
	})

	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close",
					zap.Int64("account_id", s.AccountID),
					zap.Error(err))
			}
			return
		}
		// Reset read deadline on any message (heartbeat or otherwise).
		s.SetReadDeadline()
		h.router.Dispatch(s, raw)
	}
}

// handleDisconnect cleans up the session after the connection closes.
func (h *Handler) handleDisconnect(s *player.PlayerSession) {
	s.Close()

	// An in-flight battle keeps running until its input timeout aborts it;
	// the manager just stops routing events to this session.
	if h.battleMgr != nil {
		h.battleMgr.Detach(s.AccountID)
	}

	h.sm.Unregister(s.AccountID)
	h.logger.Info("player disconnected",
		zap.Int64("account_id", s.AccountID))
}
