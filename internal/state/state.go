package state

import "time"

// State represents a finite-state machine state.
type State string

const (
	// StateIdle indicates that the bot is waiting for the next user command.
	StateIdle State = "idle"
	// StateAwaitingName indicates that registration is waiting for a display name.
	StateAwaitingName State = "awaiting_name"
	// StateAwaitingTimezone indicates that registration is waiting for a UTC offset.
	StateAwaitingTimezone State = "awaiting_timezone"
	// StateError indicates that the bot is in an error state and requires recovery.
	StateError State = "error"
)

// ContextKeyName is the dialog context slot carrying the validated display name
// from the name step to the timezone step of registration.
const ContextKeyName = "name"

// UserState captures the current FSM state for a Telegram user.
type UserState struct {
	UserID       int64                  `json:"user_id"`
	CurrentState State                  `json:"current_state"`
	Context      map[string]interface{} `json:"context"`
	UpdatedAt    time.Time              `json:"updated_at"`
}
