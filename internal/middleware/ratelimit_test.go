package middleware

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/teyvat-tools/resin-bot/internal/ratelimit"
	"github.com/teyvat-tools/resin-bot/pkg/config"
)

type fakeContext struct {
	telebot.Context
	sender *telebot.User
	sent   []string
}

func (c *fakeContext) Sender() *telebot.User { return c.sender }

func (c *fakeContext) Send(what interface{}, _ ...interface{}) error {
	c.sent = append(c.sent, fmt.Sprint(what))
	return nil
}

type fakeLimiter struct {
	result *ratelimit.Result
	err    error
	calls  int
}

func (l *fakeLimiter) Check(_ context.Context, _ string, _ int, _ time.Duration) (*ratelimit.Result, error) {
	l.calls++
	return l.result, l.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRules(whitelist ...int64) *ratelimit.Rules {
	return ratelimit.NewRules(config.RateLimitConfig{
		Enabled:   true,
		Limit:     5,
		Interval:  time.Minute,
		Whitelist: whitelist,
	})
}

func TestRateLimit_BlocksOverLimitUser(t *testing.T) {
	t.Parallel()

	limiter := &fakeLimiter{err: ratelimit.ErrLimitExceeded}
	mw := NewRateLimitMiddleware(limiter, testRules(), testLogger())

	handled := false
	h := mw.Handle(func(c telebot.Context) error {
		handled = true
		return nil
	})

	c := &fakeContext{sender: &telebot.User{ID: 42}}
	require.NoError(t, h(c))

	assert.False(t, handled)
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], "Слишком много запросов")
}

func TestRateLimit_AllowsWithinLimit(t *testing.T) {
	t.Parallel()

	limiter := &fakeLimiter{result: &ratelimit.Result{Allowed: true, Remaining: 4}}
	mw := NewRateLimitMiddleware(limiter, testRules(), testLogger())

	handled := false
	h := mw.Handle(func(c telebot.Context) error {
		handled = true
		return nil
	})

	require.NoError(t, h(&fakeContext{sender: &telebot.User{ID: 42}}))
	assert.True(t, handled)
	assert.Equal(t, 1, limiter.calls)
}

func TestRateLimit_WhitelistedUserSkipsLimiter(t *testing.T) {
	t.Parallel()

	limiter := &fakeLimiter{err: ratelimit.ErrLimitExceeded}
	mw := NewRateLimitMiddleware(limiter, testRules(99), testLogger())

	handled := false
	h := mw.Handle(func(c telebot.Context) error {
		handled = true
		return nil
	})

	require.NoError(t, h(&fakeContext{sender: &telebot.User{ID: 99}}))
	assert.True(t, handled)
	assert.Zero(t, limiter.calls)
}

func TestRateLimit_FailsOpenOnLimiterError(t *testing.T) {
	t.Parallel()

	limiter := &fakeLimiter{err: assert.AnError}
	mw := NewRateLimitMiddleware(limiter, testRules(), testLogger())

	handled := false
	h := mw.Handle(func(c telebot.Context) error {
		handled = true
		return nil
	})

	require.NoError(t, h(&fakeContext{sender: &telebot.User{ID: 42}}))
	assert.True(t, handled)
}
