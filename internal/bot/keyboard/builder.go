// Package keyboard builds the inline keyboards offered by the bot.
package keyboard

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/teyvat-tools/resin-bot/internal/expedition"
	"github.com/teyvat-tools/resin-bot/internal/i18n"
)

// Builder creates inline keyboards for the expedition dialogs.
type Builder struct {
	t   i18n.Translator
	log *slog.Logger
}

// NewBuilder returns a new Builder instance.
func NewBuilder(t i18n.Translator, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}

	return &Builder{t: t, log: log}
}

// ExpeditionDurations builds one row of duration buttons, one per offered
// expedition length. Callback data carries the duration in whole hours.
func (b *Builder) ExpeditionDurations(callbackUnique string) *telebot.ReplyMarkup {
	buttons := make([]InlineButton, 0, len(expedition.Durations))
	for _, d := range expedition.Durations {
		hours := int(d / time.Hour)
		buttons = append(buttons, InlineButton{
			Text:   fmt.Sprintf(b.t.T("exp.hours_button"), hours),
			Unique: callbackUnique,
			Data:   strconv.Itoa(hours),
		})
	}

	return NewInlineKeyboard().
		AddRow(buttons...).
		Build(func(unique, data string) string {
			encoded, err := EncodeCallback(unique, data)
			if err != nil {
				b.log.Error("failed to encode callback data",
					slog.String("unique", unique),
					slog.String("data", data),
					slog.Any("error", err),
				)
				return unique
			}
			return encoded
		})
}
