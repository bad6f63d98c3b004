package handlers

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/teyvat-tools/resin-bot/internal/i18n"
	"github.com/teyvat-tools/resin-bot/internal/state"
)

// NewCancelHandler aborts the current dialog and returns the user to idle.
func NewCancelHandler(fsm state.StateMachine, t i18n.Translator, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c.Sender() == nil {
			log.Warn("cancel handler invoked without sender context")
			return nil
		}

		userID := c.Sender().ID

		if err := fsm.ClearState(context.Background(), userID); err != nil {
			log.Error("failed to clear user state", slog.Int64("user_id", userID), slog.Any("error", err))
			return err
		}

		return c.Send(t.T("cancel.done"))
	}
}
