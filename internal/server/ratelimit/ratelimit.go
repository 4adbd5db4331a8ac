// Package ratelimit provides per-client, per-endpoint rate limiting on token buckets.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucket pairs a token bucket with its last use, for cleanup.
type bucket struct {
	limiter    *rate.Limiter
	limit      int
	burst      int
	lastAccess time.Time
}

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter manages rate limiting for multiple clients using token buckets.
type Limiter struct {
	buckets       map[string]*bucket // client|route -> bucket
	mu            sync.Mutex
	config        *Config
	rules         []Rule
	exempt        []Rule
	cleanupTicker *time.Ticker
	cleanupStop   chan struct{}
	idleTTL       time.Duration
	now           func() time.Time
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Allow           map[string]bool
	Deny            map[string]bool
	Rules           []Rule
}

// NewLimiter creates a limiter. A nil config limits every route to 1000 requests a minute.
func NewLimiter(config *Config) (*Limiter, error) {
	if config == nil {
		config = &Config{
			Enabled:         true,
			DefaultLimit:    1000,
			DefaultWindow:   time.Minute,
			CleanupInterval: 5 * time.Minute,
		}
	}
	rules, err := compileRules(config.Rules)
	if err != nil {
		return nil, err
	}
	exempt, err := compileRules(exemptRules)
	if err != nil {
		return nil, err
	}

	limiter := &Limiter{
		buckets: make(map[string]*bucket),
		config:  config,
		rules:   rules,
		exempt:  exempt,
		idleTTL: time.Hour,
		now:     time.Now,
	}

	if config.Enabled && config.CleanupInterval > 0 {
		limiter.cleanupTicker = time.NewTicker(config.CleanupInterval)
		limiter.cleanupStop = make(chan struct{})
		go limiter.cleanup()
	}

	return limiter, nil
}

// Allow checks whether clientID may call method on path now. Requests matching
// a rule share one bucket per rule; other routes get a bucket per path.
func (l *Limiter) Allow(clientID, path, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Allow[clientID] {
		return true, Info{Allowed: true}
	}
	if l.config.Deny[clientID] {
		return false, Info{Allowed: false}
	}
	if matchRule(l.exempt, method, path) != nil {
		return true, Info{Allowed: true}
	}

	rule := matchRule(l.rules, method, path)
	if rule == nil {
		rule = &Rule{
			Pattern: method + " " + path,
			Limit:   l.config.DefaultLimit,
			Window:  l.config.DefaultWindow,
		}
	}
	if rule.Limit <= 0 || rule.Window <= 0 {
		return true, Info{Allowed: true}
	}

	now := l.now()
	b := l.getBucket(clientID+"|"+rule.Pattern, rule, now)

	r := b.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	allowed := r.OK() && delay == 0
	if !allowed && r.OK() {
		r.CancelAt(now)
	}

	tokens := b.limiter.TokensAt(now)
	remaining := int(math.Max(0, math.Floor(tokens)))
	resetTime := now
	if missing := float64(b.burst) - tokens; missing > 0 {
		resetTime = now.Add(time.Duration(missing / float64(b.limiter.Limit()) * float64(time.Second)))
	}

	info := Info{
		Allowed:   allowed,
		Limit:     rule.Limit,
		Remaining: remaining,
		ResetTime: resetTime,
	}
	if !allowed {
		info.RetryAfter = delay
		if info.RetryAfter <= 0 {
			info.RetryAfter = time.Duration(float64(time.Second) / float64(b.limiter.Limit()))
		}
	}
	return allowed, info
}

// getBucket gets or creates the token bucket for key and marks it used.
func (l *Limiter) getBucket(key string, cfg *Rule, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok {
		b.lastAccess = now
		return b
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.Limit
	}
	every := rate.Limit(float64(cfg.Limit) / cfg.Window.Seconds())
	b := &bucket{
		limiter:    rate.NewLimiter(every, burst),
		limit:      cfg.Limit,
		burst:      burst,
		lastAccess: now,
	}
	l.buckets[key] = b
	return b
}

func (l *Limiter) cleanup() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.cleanupBuckets()
		case <-l.cleanupStop:
			return
		}
	}
}

// cleanupBuckets removes buckets that have been idle longer than idleTTL.
func (l *Limiter) cleanupBuckets() {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// size returns the number of live buckets.
func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stop stops the cleanup goroutine.
func (l *Limiter) Stop() {
	if l.cleanupTicker != nil {
		l.cleanupTicker.Stop()
	}
	if l.cleanupStop != nil {
		close(l.cleanupStop)
		l.cleanupStop = nil
	}
}
