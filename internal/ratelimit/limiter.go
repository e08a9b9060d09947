package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmmcquay/leelawatcher/internal/config"
	"github.com/dmmcquay/leelawatcher/internal/logging"
)

const (
	// DefaultPruneInterval is how often Run drops idle clients.
	DefaultPruneInterval = 5 * time.Minute
	// DefaultIdleTimeout is how long a client may stay silent before its
	// buckets are dropped.
	DefaultIdleTimeout = 30 * time.Minute
)

// ErrLimited is wrapped by every rejection from Allow.
var ErrLimited = errors.New("rate limit exceeded")

// Limiter throttles each client independently. A nil *Limiter allows
// everything.
type Limiter struct {
	logger       logging.ContextLogger
	perMin       int
	burst        int
	actionLimits map[string]int
	now          func() time.Time

	mu      sync.Mutex
	clients map[string]*clientBuckets
}

type clientBuckets struct {
	all      *TokenBucket
	actions  map[string]*TokenBucket
	lastSeen time.Time
}

// Status is a point-in-time view of the limiter.
type Status struct {
	Enabled        bool           `json:"enabled"`
	RequestsPerMin int            `json:"requestsPerMin,omitempty"`
	BurstSize      int            `json:"burstSize,omitempty"`
	ActionLimits   map[string]int `json:"actionLimits,omitempty"`
	Clients        int            `json:"clients"`
}

// NewLimiter returns nil when cfg is nil or disabled.
func NewLimiter(cfg *config.RateLimitConfig, logger logging.ContextLogger) *Limiter {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	limits := make(map[string]int, len(cfg.PerActionLimits))
	for action, n := range cfg.PerActionLimits {
		limits[strings.ToLower(action)] = n
	}

	return &Limiter{
		logger:       logger,
		perMin:       cfg.RequestsPerMin,
		burst:        cfg.BurstSize,
		actionLimits: limits,
		now:          time.Now,
		clients:      make(map[string]*clientBuckets),
	}
}

// Allow charges one request by clientID for action. The client's overall
// bucket is refunded when the action's own bucket is empty.
func (l *Limiter) Allow(clientID, action string) error {
	if l == nil {
		return nil
	}

	now := l.now()
	key := strings.ToLower(action)

	l.mu.Lock()
	c := l.client(clientID, now)
	actionBucket := l.actionBucket(c, key, now)
	l.mu.Unlock()

	if !c.all.AllowAt(now) {
		l.logger.Warn("Client rate limit exceeded", "client", clientID, "action", action)
		return fmt.Errorf("%w for client %s", ErrLimited, clientID)
	}
	if actionBucket != nil && !actionBucket.AllowAt(now) {
		c.all.refund()
		l.logger.Warn("Action rate limit exceeded", "client", clientID, "action", action)
		return fmt.Errorf("%w for %s", ErrLimited, action)
	}
	return nil
}

// RetryAfter estimates when clientID may next call action.
func (l *Limiter) RetryAfter(clientID, action string) time.Duration {
	if l == nil {
		return 0
	}

	now := l.now()
	l.mu.Lock()
	c, ok := l.clients[clientID]
	var actionBucket *TokenBucket
	if ok {
		actionBucket = c.actions[strings.ToLower(action)]
	}
	l.mu.Unlock()
	if !ok {
		return 0
	}

	wait := c.all.RetryAfter(now)
	if actionBucket != nil {
		wait = max(wait, actionBucket.RetryAfter(now))
	}
	return wait
}

func (l *Limiter) client(id string, now time.Time) *clientBuckets {
	c, ok := l.clients[id]
	if !ok {
		c = &clientBuckets{
			all:     newTokenBucketAt(l.burst, perSecond(l.perMin), now),
			actions: make(map[string]*TokenBucket),
		}
		l.clients[id] = c
	}
	c.lastSeen = now
	return c
}

func (l *Limiter) actionBucket(c *clientBuckets, action string, now time.Time) *TokenBucket {
	limit, ok := l.actionLimits[action]
	if !ok {
		return nil
	}
	b, ok := c.actions[action]
	if !ok {
		// Same burst-to-rate ratio as the overall limit.
		burst := max(l.burst*limit/l.perMin, 1)
		b = newTokenBucketAt(burst, perSecond(limit), now)
		c.actions[action] = b
	}
	return b
}

// Prune drops clients idle for longer than idle and returns how many.
func (l *Limiter) Prune(idle time.Duration) int {
	if l == nil {
		return 0
	}

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for id, c := range l.clients {
		if now.Sub(c.lastSeen) > idle {
			delete(l.clients, id)
			n++
		}
	}
	return n
}

// Run prunes idle clients every DefaultPruneInterval until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	if l == nil {
		return
	}

	ticker := time.NewTicker(DefaultPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Prune(DefaultIdleTimeout); n > 0 {
				l.logger.Debug("Pruned idle rate limit clients", "count", n)
			}
		}
	}
}

// Status reports the configuration and number of tracked clients.
func (l *Limiter) Status() Status {
	if l == nil {
		return Status{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		Enabled:        true,
		RequestsPerMin: l.perMin,
		BurstSize:      l.burst,
		ActionLimits:   l.actionLimits,
		Clients:        len(l.clients),
	}
}

func perSecond(perMin int) float64 {
	return float64(perMin) / 60.0
}
