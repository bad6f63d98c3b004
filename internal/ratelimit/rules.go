package ratelimit

import (
	"sync"
	"time"

	"github.com/teyvat-tools/resin-bot/pkg/config"
)

// Rules encapsulates configured rate limits and helper methods. The config
// section can be swapped at runtime through Update, so all reads take the
// lock.
type Rules struct {
	mu     sync.RWMutex
	config config.RateLimitConfig
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	return &Rules{config: cfg}
}

// Update replaces the active limits. Used by config hot reload.
func (r *Rules) Update(cfg config.RateLimitConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = cfg
}

// Enabled reports whether rate limiting is active at all.
func (r *Rules) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Enabled && r.config.Limit > 0 && r.config.Interval > 0
}

// IsWhitelisted returns true if the userID bypasses rate limits.
func (r *Rules) IsWhitelisted(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.config.Whitelist {
		if id == userID {
			return true
		}
	}
	return false
}

// PerUserLimit returns the per-user request budget and its sliding window.
func (r *Rules) PerUserLimit() (int, time.Duration) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Limit, r.config.Interval
}
