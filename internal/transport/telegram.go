package transport

import (
	"context"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/teyvat-tools/resin-bot/internal/errors"
)

const defaultSendTimeout = 10 * time.Second

// Telegram delivers notifications through the bot API. Every attempt is
// bounded by a timeout and runs through a circuit breaker, so one dead
// recipient or a down API cannot stall a whole dispatcher cycle.
type Telegram struct {
	bot     *telebot.Bot
	breaker *errors.CircuitBreaker
	timeout time.Duration
	log     *slog.Logger
}

// NewTelegram wraps the bot instance in a Transport.
func NewTelegram(bot *telebot.Bot, timeout time.Duration, log *slog.Logger) *Telegram {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	return &Telegram{
		bot:     bot,
		breaker: errors.NewCircuitBreaker(),
		timeout: timeout,
		log:     log,
	}
}

// Send delivers text to the user, failing fast while the breaker is open.
func (t *Telegram) Send(ctx context.Context, userID int64, text string) error {
	err := t.breaker.Call(func() error {
		return t.sendWithTimeout(ctx, userID, text)
	})
	if err != nil {
		return errors.NewDeliveryError(userID, err)
	}

	return nil
}

// sendWithTimeout runs the blocking bot API call on its own goroutine so the
// caller regains control once the deadline passes. An abandoned call finishes
// in the background; its result is discarded.
func (t *Telegram) sendWithTimeout(ctx context.Context, userID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(&telebot.User{ID: userID}, text)
		done <- err
	}()

	select {
	case <-ctx.Done():
		t.log.Warn("delivery attempt abandoned", slog.Int64("user_id", userID), slog.Any("error", ctx.Err()))
		return ctx.Err()
	case err := <-done:
		return err
	}
}
