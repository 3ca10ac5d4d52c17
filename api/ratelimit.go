package api

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/wricardo/pokemon-memory-game/metrics"
)

// RateLimitConfig holds the per-session flip limits
type RateLimitConfig struct {
	FlipsPerSecond  rate.Limit    // sustained flips per second per session; <= 0 disables limiting
	Burst           int           // flips allowed back to back
	CleanupInterval time.Duration // how often idle limiters are dropped
}

// DefaultRateLimitConfig returns the default flip limits
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		FlipsPerSecond:  10,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
	}
}

type sessionLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter limits flips per session
type RateLimiter struct {
	config  RateLimitConfig
	metrics metrics.MetricsCollector
	logger  *slog.Logger

	mu       sync.Mutex
	limiters map[string]*sessionLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a RateLimiter and starts its background cleanup
func NewRateLimiter(config RateLimitConfig, collector metrics.MetricsCollector, logger *slog.Logger) *RateLimiter {
	if config.FlipsPerSecond <= 0 {
		config.FlipsPerSecond = rate.Inf
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultRateLimitConfig().CleanupInterval
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	rl := &RateLimiter{
		config:   config,
		metrics:  collector,
		logger:   logger,
		limiters: make(map[string]*sessionLimiter),
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop ends the background cleanup
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow reports whether the session may flip now
func (rl *RateLimiter) Allow(sessionID string) bool {
	return rl.getOrCreate(strings.ToLower(sessionID)).Allow()
}

// Middleware rejects requests with 429 once the session in the {id} route
// variable has used up its flips
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := mux.Vars(r)["id"]

		if !rl.Allow(sessionID) {
			rl.metrics.RecordRateLimited()
			rl.logger.Warn("rate limit exceeded",
				slog.String("session_id", sessionID),
				slog.String("limit_type", "flip"),
			)
			writeRateLimitResponse(w, rl.config.FlipsPerSecond)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Count returns the number of tracked sessions
func (rl *RateLimiter) Count() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) getOrCreate(sessionID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if sl, exists := rl.limiters[sessionID]; exists {
		sl.lastAccess = time.Now()
		return sl.limiter
	}

	limiter := rate.NewLimiter(rl.config.FlipsPerSecond, rl.config.Burst)
	rl.limiters[sessionID] = &sessionLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup drops limiters idle for more than two cleanup intervals
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for id, sl := range rl.limiters {
		if now.Sub(sl.lastAccess) > ttl {
			delete(rl.limiters, id)
		}
	}
}

// writeRateLimitResponse writes a 429 with a Retry-After estimate of the
// seconds until one token is refilled
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r != rate.Inf && r > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
		if retryAfterSec < 1 {
			retryAfterSec = 1
		}
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(map[string]string{
		"error": "Too many flips. Slow down and retry shortly.",
		"code":  "rate_limit_exceeded",
	})
}
