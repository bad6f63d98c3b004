package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/teyvat-tools/resin-bot/internal/domain"
	"github.com/teyvat-tools/resin-bot/internal/i18n"
	"github.com/teyvat-tools/resin-bot/internal/state"
	"github.com/teyvat-tools/resin-bot/internal/tracker"
)

// NewStartHandler begins the registration wizard, or greets users that are
// already registered.
func NewStartHandler(fsm state.StateMachine, trk *tracker.Service, t i18n.Translator, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c.Sender() == nil {
			log.Warn("start handler invoked without sender")
			return nil
		}

		userID := c.Sender().ID

		if record, ok := trk.Get(userID); ok {
			return c.Send(fmt.Sprintf(t.T("start.already_registered"), record.DisplayName))
		}

		ctx := context.Background()
		if err := fsm.SetState(ctx, userID, state.StateAwaitingName, nil); err != nil {
			log.Error("failed to start registration dialog", slog.Int64("user_id", userID), slog.Any("error", err))
			return err
		}

		return c.Send(t.T("reg.ask_name"))
	}
}

// NewAwaitNameHandler consumes the display name step of the wizard. Invalid
// names re-prompt without advancing the dialog.
func NewAwaitNameHandler(fsm state.StateMachine, t i18n.Translator, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c.Sender() == nil {
			return nil
		}

		userID := c.Sender().ID

		name, err := domain.ValidateDisplayName(c.Text())
		if err != nil {
			return c.Send(fmt.Sprintf(t.T("reg.invalid_name"), err.Error()))
		}

		ctx := context.Background()
		dialogContext := map[string]interface{}{state.ContextKeyName: name}
		if err := fsm.SetState(ctx, userID, state.StateAwaitingTimezone, dialogContext); err != nil {
			log.Error("failed to advance registration dialog", slog.Int64("user_id", userID), slog.Any("error", err))
			return err
		}

		return c.Send(t.T("reg.ask_timezone"))
	}
}

// NewAwaitTimezoneHandler consumes the UTC offset step and completes
// registration through the tracker.
func NewAwaitTimezoneHandler(fsm state.StateMachine, trk *tracker.Service, t i18n.Translator, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c.Sender() == nil {
			return nil
		}

		userID := c.Sender().ID
		ctx := context.Background()

		offset, err := strconv.Atoi(strings.TrimSpace(c.Text()))
		if err != nil {
			return c.Send(t.T("reg.invalid_timezone"))
		}
		if err := domain.ValidateUTCOffset(offset); err != nil {
			return c.Send(t.T("reg.invalid_timezone"))
		}

		name, err := dialogName(ctx, fsm, userID)
		if err != nil {
			log.Error("registration dialog lost its name step", slog.Int64("user_id", userID), slog.Any("error", err))
			if clearErr := fsm.ClearState(ctx, userID); clearErr != nil {
				log.Error("failed to reset broken dialog", slog.Int64("user_id", userID), slog.Any("error", clearErr))
			}
			return c.Send(t.T("reg.ask_name"))
		}

		record, err := trk.Register(ctx, userID, name, offset)
		if err != nil {
			return err
		}

		if err := fsm.ClearState(ctx, userID); err != nil {
			log.Error("failed to clear dialog after registration", slog.Int64("user_id", userID), slog.Any("error", err))
		}

		return c.Send(fmt.Sprintf(t.T("reg.done"), record.DisplayName, record.UTCOffsetHours))
	}
}

// dialogName extracts the validated display name stored by the name step.
func dialogName(ctx context.Context, fsm state.StateMachine, userID int64) (string, error) {
	userState, err := fsm.GetState(ctx, userID)
	if err != nil {
		return "", err
	}
	if userState == nil || userState.Context == nil {
		return "", errors.New("dialog context is empty")
	}

	name, ok := userState.Context[state.ContextKeyName].(string)
	if !ok || name == "" {
		return "", errors.New("dialog context has no name")
	}

	return name, nil
}
