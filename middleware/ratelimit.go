package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// visitor pruning: entries idle longer than this are dropped during the
// periodic sweep that piggybacks on lookups.
const (
	visitorIdleCutoff = 10 * time.Minute
	pruneEvery        = 1000
)

type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

type visitorTable struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	lookups  int
	r        rate.Limit
	b        int
}

func (t *visitorTable) allow(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.visitors[ip]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(t.r, t.b)}
		t.visitors[ip] = v
	}
	v.lastSeen = time.Now()

	t.lookups++
	if t.lookups%pruneEvery == 0 {
		t.prune()
	}
	return v.bucket.Allow()
}

// prune drops idle visitors. Caller holds the lock.
func (t *visitorTable) prune() {
	cutoff := time.Now().Add(-visitorIdleCutoff)
	for ip, v := range t.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(t.visitors, ip)
		}
	}
}

// RateLimit applies a per-client-IP token bucket of r requests per
// second with burst b. Battles talk over the WebSocket, so this mainly
// shields the login and ranking endpoints.
func RateLimit(r rate.Limit, b int) gin.HandlerFunc {
	table := &visitorTable{visitors: make(map[string]*visitor), r: r, b: b}
	return func(c *gin.Context) {
		if !table.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
