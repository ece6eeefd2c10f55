// Package ratelimit provides connection-attempt rate limiting for the
// accept loop (C12): a per-IP token bucket guards against a single client
// flooding upgrade attempts, and a global token bucket guards against
// distributed floods, following the teacher's ConnectionRateLimiter.
package ratelimit

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Config names the per-IP and global token bucket parameters.
type Config struct {
	IPBurst     int
	IPRate      float64
	IPTTL       time.Duration
	GlobalBurst int
	GlobalRate  float64
}

// DefaultConfig is a reasonable starting point for a single-node deployment.
func DefaultConfig() Config {
	return Config{
		IPBurst:     10,
		IPRate:      1.0,
		IPTTL:       5 * time.Minute,
		GlobalBurst: 300,
		GlobalRate:  50.0,
	}
}

type ipEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter decides whether a new connection attempt from an IP is allowed.
type Limiter struct {
	cfg Config

	mu    sync.Mutex
	byIP  map[string]*ipEntry
	global *rate.Limiter

	logger zerolog.Logger
	done   chan struct{}
}

// New constructs a Limiter and starts its background cleanup loop, which
// evicts IP entries idle longer than cfg.IPTTL so the map doesn't grow
// without bound under a long-running server.
func New(cfg Config, logger zerolog.Logger) *Limiter {
	l := &Limiter{
		cfg:    cfg,
		byIP:   make(map[string]*ipEntry),
		global: rate.NewLimiter(rate.Limit(cfg.GlobalRate), cfg.GlobalBurst),
		logger: logger.With().Str("component", "ratelimit").Logger(),
		done:   make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether a connection attempt from ip should proceed: the
// global bucket is checked first (cheap, no map lookup), then the
// per-IP bucket.
func (l *Limiter) Allow(ip string) bool {
	if !l.global.Allow() {
		l.logger.Debug().Str("ip", ip).Msg("connection rejected: global rate limit exceeded")
		return false
	}
	if !l.ipLimiterFor(ip).Allow() {
		l.logger.Debug().Str("ip", ip).Msg("connection rejected: per-IP rate limit exceeded")
		return false
	}
	return true
}

func (l *Limiter) ipLimiterFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.byIP[ip]
	if ok {
		entry.lastAccess = time.Now()
		return entry.limiter
	}

	entry = &ipEntry{
		limiter:    rate.NewLimiter(rate.Limit(l.cfg.IPRate), l.cfg.IPBurst),
		lastAccess: time.Now(),
	}
	l.byIP[ip] = entry
	return entry.limiter
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.done:
			return
		}
	}
}

func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for ip, entry := range l.byIP {
		if now.Sub(entry.lastAccess) > l.cfg.IPTTL {
			delete(l.byIP, ip)
		}
	}
}

// Close stops the cleanup loop. Safe to call once during shutdown.
func (l *Limiter) Close() {
	close(l.done)
}
