package keyboard_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teyvat-tools/resin-bot/internal/bot/keyboard"
	"github.com/teyvat-tools/resin-bot/internal/i18n"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExpeditionDurations(t *testing.T) {
	manager, err := i18n.Load("en")
	require.NoError(t, err)

	builder := keyboard.NewBuilder(manager.Translator("en"), testLogger())
	markup := builder.ExpeditionDurations("exp_dur")

	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 1)

	row := markup.InlineKeyboard[0]
	require.Len(t, row, 4)

	assert.Equal(t, "4 h", row[0].Text)
	assert.Equal(t, "exp_dur:4", row[0].Data)
	assert.Equal(t, "exp_dur:20", row[3].Data)
}

func TestInlineKeyboardBuilder(t *testing.T) {
	markup := keyboard.NewInlineKeyboard().
		AddRow(
			keyboard.InlineButton{Text: "Prev", Unique: "nav", Data: "1"},
			keyboard.InlineButton{Text: "Next", Unique: "nav", Data: "2"},
		).
		AddRow(
			keyboard.InlineButton{Text: "Confirm", Unique: "confirm", Data: "ok"},
		).
		Build(func(unique, data string) string {
			encoded, err := keyboard.EncodeCallback(unique, data)
			if err != nil {
				return unique
			}
			return encoded
		})

	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Len(t, markup.InlineKeyboard[0], 2)
	assert.Len(t, markup.InlineKeyboard[1], 1)
	assert.Equal(t, "nav:2", markup.InlineKeyboard[0][1].Data)
}
