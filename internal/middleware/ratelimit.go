// Package middleware provides cross-cutting update and request middleware.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/teyvat-tools/resin-bot/internal/bot/handlers"
	"github.com/teyvat-tools/resin-bot/internal/ratelimit"
)

// RateLimitMiddleware enforces per-user rate limits for incoming Telegram updates.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	log     *slog.Logger
}

// NewRateLimitMiddleware constructs a rate-limit middleware component.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		log:     log,
	}
}

// Handle returns a router middleware that enforces per-user rate limits. It
// runs inside the recovery and error-handling chain, after logging.
func (m *RateLimitMiddleware) Handle(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		if m.limiter == nil || m.rules == nil || !m.rules.Enabled() {
			return next(c)
		}

		sender := c.Sender()
		if sender == nil {
			return next(c)
		}

		userID := sender.ID
		if m.rules.IsWhitelisted(userID) {
			return next(c)
		}

		limit, window := m.rules.PerUserLimit()
		key := fmt.Sprintf("user:%d", userID)

		result, err := m.limiter.Check(context.Background(), key, limit, window)
		switch {
		case errors.Is(err, ratelimit.ErrLimitExceeded):
			m.log.Warn("rate limit exceeded", slog.Int64("user_id", userID))
			return c.Send("Слишком много запросов. Попробуй позже.")
		case err != nil:
			// A broken limiter must not take the bot down with it.
			m.log.Warn("rate limiter error", slog.Int64("user_id", userID), slog.Any("error", err))
			return next(c)
		case !result.Allowed:
			m.log.Warn("rate limit exceeded", slog.Int64("user_id", userID))
			return c.Send("Слишком много запросов. Попробуй позже.")
		}

		return next(c)
	}
}
