package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harutoki/beastline/server/game/player"
)

// HandlerFunc processes one decoded packet payload for a session.
type HandlerFunc func(ctx context.Context, session *player.PlayerSession, payload json.RawMessage) error

// Router decodes packets, enforces the per-session sequence discipline,
// and hands payloads to the handler registered for the packet type.
type Router struct {
	handlers map[string]HandlerFunc
	logger   *zap.Logger
}

// NewRouter creates a Router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// On registers the handler for a packet type.
func (r *Router) On(msgType string, fn HandlerFunc) {
	r.handlers[msgType] = fn
}

// OnBattle registers a handler that only makes sense mid-battle. When
// the session has no running battle the packet is answered with a
// battle_error instead of reaching the handler.
func (r *Router) OnBattle(msgType string, fn HandlerFunc) {
	r.handlers[msgType] = func(ctx context.Context, s *player.PlayerSession, payload json.RawMessage) error {
		if s.BattleID() == "" {
			body, _ := json.Marshal(map[string]string{"error": "not in battle"})
			s.Send(&player.Packet{Type: "battle_error", Payload: body})
			return nil
		}
		return fn(ctx, s, payload)
	}
}

// Dispatch routes one raw inbound frame. Frames that fail to decode or
// replay an already-seen sequence number are dropped with a log line;
// they never reach a handler.
func (r *Router) Dispatch(s *player.PlayerSession, raw []byte) {
	var pkt player.Packet
	if err := json.Unmarshal(raw, &pkt); err != nil {
		r.logger.Warn("malformed packet",
			zap.Int64("account_id", s.AccountID),
			zap.Error(err))
		return
	}

	// Sequence numbers must be strictly increasing per session. Zero
	// opts out, for packet types where replay is harmless (heartbeats).
	if pkt.Seq != 0 {
		if pkt.Seq <= s.LastSeq {
			r.logger.Warn("replayed or out-of-order packet",
				zap.Int64("account_id", s.AccountID),
				zap.String("type", pkt.Type),
				zap.Uint64("seq", pkt.Seq),
				zap.Uint64("last_seq", s.LastSeq))
			return
		}
		s.LastSeq = pkt.Seq
	}

	fn, ok := r.handlers[pkt.Type]
	if !ok {
		r.logger.Debug("unhandled message type",
			zap.String("type", pkt.Type),
			zap.Int64("account_id", s.AccountID))
		return
	}

	s.TraceID = uuid.NewString()
	ctx := context.WithValue(context.Background(), ctxKeyTraceID{}, s.TraceID)

	if err := fn(ctx, s, pkt.Payload); err != nil {
		r.logger.Error("handler error",
			zap.String("type", pkt.Type),
			zap.Int64("account_id", s.AccountID),
			zap.String("battle_id", s.BattleID()),
			zap.String("trace_id", s.TraceID),
			zap.Error(err))
	}
}

type ctxKeyTraceID struct{}

// TraceIDFromCtx extracts the dispatch trace ID inside a handler.
func TraceIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTraceID{}).(string); ok {
		return v
	}
	return ""
}
