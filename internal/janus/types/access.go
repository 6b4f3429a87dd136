package types

import "time"

// AccessMethod is the credential an access event was decided on.
type AccessMethod string

const (
	MethodPassword AccessMethod = "password"
	MethodPIN      AccessMethod = "pin"
	MethodFace     AccessMethod = "face"
)

func (m AccessMethod) Valid() bool {
	return m == MethodPassword || m == MethodPIN || m == MethodFace
}

type AccessOutcome string

const (
	OutcomeGranted AccessOutcome = "granted"
	OutcomeDenied  AccessOutcome = "denied"
)

// Action is what the access event asked the door to do.
type Action string

const (
	ActionLock   Action = "lock"
	ActionUnlock Action = "unlock"
	ActionEntry  Action = "entry"
)

// EntryRequest is an entry attempt reported by a door module: a PIN typed on
// the keypad or a face captured by the module camera.
type EntryRequest struct {
	ModuleID string       `json:"module_id" validate:"required,max=64"`
	Method   AccessMethod `json:"method" validate:"required,oneof=pin face"`
	PIN      string       `json:"pin,omitempty" validate:"max=10"`
	Image    []byte       `json:"-"`
}

type EntryResponse struct {
	Success    bool   `json:"success"`
	Known      bool   `json:"known"`
	Granted    bool   `json:"granted"`
	Reason     string `json:"reason,omitempty"`
	UserName   string `json:"user_name,omitempty"`
	ModuleID   string `json:"module_id"`
	ServerTime string `json:"server_time"`
}

type AccessLogEntry struct {
	ID          int64         `json:"id"`
	UserID      string        `json:"user_id,omitempty"`
	MatchedName *string       `json:"matched_name"`
	Method      AccessMethod  `json:"method"`
	Outcome     AccessOutcome `json:"outcome"`
	Action      Action        `json:"action"`
	DeviceID    string        `json:"device_id,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

type AccessLogResponse struct {
	Success    bool             `json:"success"`
	Logs       []AccessLogEntry `json:"logs"`
	NextCursor int64            `json:"next_cursor,omitempty"`
}
