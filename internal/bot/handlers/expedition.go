package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/teyvat-tools/resin-bot/internal/bot/keyboard"
	"github.com/teyvat-tools/resin-bot/internal/i18n"
	"github.com/teyvat-tools/resin-bot/internal/notifier"
	"github.com/teyvat-tools/resin-bot/internal/tracker"
)

// NewExpeditionStartHandler starts an expedition of the given length for a
// registered sender. A pending expedition is replaced, not queued.
func NewExpeditionStartHandler(trk *tracker.Service, t i18n.Translator, hours int, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c.Sender() == nil {
			return nil
		}

		return startExpedition(c, trk, t, c.Sender().ID, hours)
	}
}

// NewExpeditionMenuHandler shows the inline duration picker.
func NewExpeditionMenuHandler(trk *tracker.Service, kb *keyboard.Builder, t i18n.Translator) Handler {
	return func(c telebot.Context) error {
		if c.Sender() == nil {
			return nil
		}

		if !trk.IsRegistered(c.Sender().ID) {
			return c.Send(t.T("exp.not_registered"))
		}

		return c.Send(t.T("exp.choose"), kb.ExpeditionDurations("exp_dur"))
	}
}

// NewExpeditionDurationCallback handles a duration button press.
func NewExpeditionDurationCallback(trk *tracker.Service, t i18n.Translator, log *slog.Logger) CallbackHandler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		cb := c.Callback()
		if cb == nil || c.Sender() == nil {
			return nil
		}

		_, data, err := keyboard.DecodeCallback(cb.Data)
		if err != nil {
			log.Warn("malformed duration callback", slog.String("data", cb.Data), slog.Any("error", err))
			return c.Respond(&telebot.CallbackResponse{})
		}

		hours, err := strconv.Atoi(data)
		if err != nil || hours <= 0 {
			log.Warn("invalid duration in callback", slog.String("data", cb.Data))
			return c.Respond(&telebot.CallbackResponse{})
		}

		if err := c.Respond(&telebot.CallbackResponse{}); err != nil {
			log.Warn("failed to acknowledge callback", slog.Any("error", err))
		}

		return startExpedition(c, trk, t, c.Sender().ID, hours)
	}
}

// NewExpeditionStatusHandler reports remaining time and local completion time.
func NewExpeditionStatusHandler(trk *tracker.Service, t i18n.Translator) Handler {
	return func(c telebot.Context) error {
		if c.Sender() == nil {
			return nil
		}

		status, err := trk.ExpeditionStatus(c.Sender().ID)
		if err != nil {
			if errors.Is(err, tracker.ErrNotRegistered) {
				return c.Send(t.T("exp.not_registered"))
			}
			return err
		}

		switch {
		case status.EndUTC.IsZero():
			return c.Send(t.T("exp.status_none"))
		case !status.Active:
			return c.Send(t.T("exp.status_done"))
		default:
			return c.Send(fmt.Sprintf(t.T("exp.status_active"),
				notifier.FormatDuration(status.Remaining),
				status.EndLocal.Format(notifier.TimeLayout),
			))
		}
	}
}

func startExpedition(c telebot.Context, trk *tracker.Service, t i18n.Translator, userID int64, hours int) error {
	endLocal, err := trk.StartExpedition(context.Background(), userID, time.Duration(hours)*time.Hour)
	if err != nil {
		if errors.Is(err, tracker.ErrNotRegistered) {
			return c.Send(t.T("exp.not_registered"))
		}
		return err
	}

	return c.Send(fmt.Sprintf(t.T("exp.set"), hours, endLocal.Format(notifier.TimeLayout)))
}
