package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/teyvat-tools/resin-bot/internal/i18n"
	"github.com/teyvat-tools/resin-bot/internal/notifier"
	"github.com/teyvat-tools/resin-bot/internal/resin"
	"github.com/teyvat-tools/resin-bot/internal/tracker"
)

// NewResinSetHandler records the sender's reported resin value as the new
// baseline, re-arming both threshold notifications.
func NewResinSetHandler(trk *tracker.Service, t i18n.Translator) Handler {
	return func(c telebot.Context) error {
		if c.Sender() == nil {
			return nil
		}

		fields := strings.Fields(c.Text())
		if len(fields) < 2 {
			return c.Send(t.T("resin.usage"))
		}

		value, err := strconv.Atoi(fields[1])
		if err != nil || value < 0 || value > resin.Max {
			return c.Send(t.T("resin.invalid_value"))
		}

		status, err := trk.SetResinBaseline(context.Background(), c.Sender().ID, value)
		if err != nil {
			if errors.Is(err, tracker.ErrNotRegistered) {
				return c.Send(t.T("exp.not_registered"))
			}
			return err
		}

		return c.Send(fmt.Sprintf(t.T("resin.set"),
			status.Current,
			notifier.FormatDuration(status.ToNearCap),
			notifier.FormatDuration(status.ToFull),
		))
	}
}

// NewResinStatusHandler reports the computed resin value and the time left to
// both thresholds.
func NewResinStatusHandler(trk *tracker.Service, t i18n.Translator) Handler {
	return func(c telebot.Context) error {
		if c.Sender() == nil {
			return nil
		}

		status, err := trk.ResinStatus(c.Sender().ID)
		if err != nil {
			if errors.Is(err, tracker.ErrNotRegistered) {
				return c.Send(t.T("exp.not_registered"))
			}
			return err
		}

		switch {
		case !status.Tracked:
			return c.Send(t.T("resin.none"))
		case status.Current >= resin.Max:
			return c.Send(t.T("resin.status_capped"))
		default:
			return c.Send(fmt.Sprintf(t.T("resin.status"),
				status.Current,
				notifier.FormatDuration(status.ToNearCap),
				notifier.FormatDuration(status.ToFull),
			))
		}
	}
}
