package types

import "time"

// CommandState tracks one lock command through its dispatch.
type CommandState string

const (
	CommandPending  CommandState = "pending"
	CommandAcked    CommandState = "acked"
	CommandTimedOut CommandState = "timed_out"
	CommandFailed   CommandState = "failed"
)

type LockRequest struct {
	DeviceID string `json:"device_id,omitempty" validate:"max=64"`
}

type LockCommandDTO struct {
	ID           string       `json:"id"`
	DeviceID     string       `json:"device_id"`
	Action       Action       `json:"action"`
	State        CommandState `json:"state"`
	DispatchedAt time.Time    `json:"dispatched_at"`
	ResolvedAt   *time.Time   `json:"resolved_at,omitempty"`
	Detail       string       `json:"detail,omitempty"`
}

type LockResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Command *LockCommandDTO `json:"command,omitempty"`
}

type LockStatusResponse struct {
	Success     bool            `json:"success"`
	DeviceID    string          `json:"device_id"`
	LastCommand *LockCommandDTO `json:"last_command,omitempty"`
}
