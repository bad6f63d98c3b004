package keyboard

import (
	telebot "gopkg.in/telebot.v3"
)

// InlineButton describes one button before encoding. The builder keeps Unique
// and Data separate so the duration picker can reuse a single callback
// endpoint with the hour count as payload.
type InlineButton struct {
	Text   string
	Unique string // Callback endpoint identifier, e.g. "exp_dur".
	Data   string // Payload encoded into the callback data, e.g. "12".
}

// InlineKeyboardBuilder accumulates button rows and renders them into telebot
// inline markup in one pass.
type InlineKeyboardBuilder struct {
	rows [][]InlineButton
}

func NewInlineKeyboard() *InlineKeyboardBuilder {
	return &InlineKeyboardBuilder{}
}

// AddRow appends one keyboard row. Empty rows are dropped so conditional
// buttons can be added without guarding the call site.
func (b *InlineKeyboardBuilder) AddRow(buttons ...InlineButton) *InlineKeyboardBuilder {
	if len(buttons) == 0 {
		return b
	}

	row := make([]InlineButton, len(buttons))
	copy(row, buttons)
	b.rows = append(b.rows, row)
	return b
}

// Build renders the accumulated rows. The encoder turns each Unique/Data pair
// into the callback data string; a nil encoder joins nothing and uses the raw
// payload or the endpoint name as is.
func (b *InlineKeyboardBuilder) Build(encoder func(unique, data string) string) *telebot.ReplyMarkup {
	if encoder == nil {
		encoder = func(unique, data string) string {
			if data != "" {
				return data
			}
			return unique
		}
	}

	keyboard := make([][]telebot.InlineButton, len(b.rows))
	for i, row := range b.rows {
		keyboard[i] = make([]telebot.InlineButton, len(row))
		for j, btn := range row {
			keyboard[i][j] = telebot.InlineButton{
				Text:   btn.Text,
				Unique: btn.Unique,
				Data:   encoder(btn.Unique, btn.Data),
			}
		}
	}

	return &telebot.ReplyMarkup{InlineKeyboard: keyboard}
}
