// Package ratelimit provides per-client request throttling keyed by IP.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Tier describes an allowance of Events requests per Window.
type Tier struct {
	Name   string
	Events int
	Window time.Duration
}

// The three allowances enforced by the API surface.
var (
	TierAPI      = Tier{Name: "api", Events: 100, Window: 15 * time.Minute}
	TierAuth     = Tier{Name: "auth", Events: 5, Window: 15 * time.Minute}
	TierAnalysis = Tier{Name: "analysis", Events: 10, Window: time.Minute}
)

// pruneAfter is how long an idle client keeps its bucket.
const pruneAfter = 30 * time.Minute

type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks one token bucket per client key for a single tier.
type Limiter struct {
	tier Tier
	now  func() time.Time

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastPrune time.Time
}

// NewLimiter builds a limiter for the given tier. clock may be nil.
func NewLimiter(tier Tier, clock func() time.Time) *Limiter {
	if clock == nil {
		clock = time.Now
	}
	return &Limiter{
		tier:      tier,
		now:       clock,
		visitors:  map[string]*visitor{},
		lastPrune: clock(),
	}
}

// Allow reports whether the client identified by key may proceed.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	moment := l.now()
	l.pruneLocked(moment)

	entry, ok := l.visitors[key]
	if !ok {
		perSecond := rate.Limit(float64(l.tier.Events) / l.tier.Window.Seconds())
		entry = &visitor{bucket: rate.NewLimiter(perSecond, l.tier.Events)}
		l.visitors[key] = entry
	}
	entry.lastSeen = moment
	return entry.bucket.AllowN(moment, 1)
}

func (l *Limiter) pruneLocked(moment time.Time) {
	if moment.Sub(l.lastPrune) < pruneAfter {
		return
	}
	for key, entry := range l.visitors {
		if moment.Sub(entry.lastSeen) >= pruneAfter {
			delete(l.visitors, key)
		}
	}
	l.lastPrune = moment
}

// Middleware rejects over-limit requests with 429.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "Too many requests, please try again later.",
			})
			return
		}
		c.Next()
	}
}
