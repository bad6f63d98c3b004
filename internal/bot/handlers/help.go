package handlers

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/teyvat-tools/resin-bot/internal/i18n"
)

// NewHelpHandler sends the command summary.
func NewHelpHandler(t i18n.Translator) Handler {
	return func(c telebot.Context) error {
		return c.Send(t.T("help.text"))
	}
}

// NewDefaultHandler replies with a hint for any text that is neither a known
// command nor part of an active dialog.
func NewDefaultHandler(t i18n.Translator) Handler {
	return func(c telebot.Context) error {
		return c.Send(t.T("unknown.hint"))
	}
}
