package middleware

import (
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/teyvat-tools/resin-bot/internal/bot/handlers"
	"github.com/teyvat-tools/resin-bot/pkg/metrics"
)

// Metrics measures execution time and status for bot handlers, reporting them to Prometheus.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)

		command := extractCommandName(c)
		status := "ok"
		if err != nil {
			status = "error"
		}

		metrics.RecordCommand(command, status, time.Since(start))

		return err
	}
}

// extractCommandName keeps the label cardinality bounded: only the command
// token is reported, never free-form message text.
func extractCommandName(c telebot.Context) string {
	if c == nil {
		return "unknown"
	}

	if cb := c.Callback(); cb != nil && cb.Data != "" {
		if idx := strings.Index(cb.Data, ":"); idx > 0 {
			return cb.Data[:idx]
		}
		return cb.Data
	}

	text := c.Text()
	if strings.HasPrefix(text, "/") {
		fields := strings.Fields(text)
		if len(fields) > 0 {
			return fields[0]
		}
	}

	return "text"
}
