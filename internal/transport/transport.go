// Package transport abstracts notification delivery so the notifier can be
// tested without a live Telegram connection.
package transport

import "context"

// Transport delivers a notification text to a user. A failed delivery is an
// ordinary error result, never a panic; the notifier logs it and moves on.
type Transport interface {
	Send(ctx context.Context, userID int64, text string) error
}
