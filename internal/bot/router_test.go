package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandToken(t *testing.T) {
	testCases := []struct {
		name string
		text string
		want string
	}{
		{name: "bare command", text: "/resin", want: "/resin"},
		{name: "command with argument", text: "/resin 120", want: "/resin"},
		{name: "bot mention stripped", text: "/help@resin_bot", want: "/help"},
		{name: "mention and argument", text: "/resin@resin_bot 120", want: "/resin"},
		{name: "leading whitespace", text: "  /expstatus", want: "/expstatus"},
		{name: "empty text", text: "", want: ""},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, commandToken(tc.text))
		})
	}
}
