package wire

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

// Action codes on the wire. Commands are absolute: the module drives the
// bolt to the requested state, so a replayed command is harmless.
const (
	actionUnspecified uint64 = 0
	actionLock        uint64 = 1
	actionUnlock      uint64 = 2
)

// Command fields:
//
//	1 command_id   string
//	2 action       varint (1 lock, 2 unlock)
//	3 issued_at_ms varint
//	4 device_id    string
type Command struct {
	ID       string
	DeviceID string
	Action   types.Action
	IssuedAt time.Time
}

// Ack fields:
//
//	1 command_id  string
//	2 ok          bool
//	3 bolt_locked bool
//	4 error       string
type Ack struct {
	CommandID  string
	OK         bool
	BoltLocked bool
	Error      string
}

func MarshalCommand(c Command) ([]byte, error) {
	code, err := actionCode(c.Action)
	if err != nil {
		return nil, err
	}
	var b []byte
	b = appendString(b, 1, c.ID)
	b = appendVarint(b, 2, code)
	if !c.IssuedAt.IsZero() {
		b = appendVarint(b, 3, uint64(c.IssuedAt.UnixMilli()))
	}
	b = appendString(b, 4, c.DeviceID)
	return b, nil
}

func UnmarshalCommand(b []byte) (Command, error) {
	var c Command
	err := walk(b, func(f field) error {
		switch {
		case f.num == 1 && f.typ == protowire.BytesType:
			c.ID = string(f.bytes)
		case f.num == 2 && f.typ == protowire.VarintType:
			a, err := actionFromCode(f.varint)
			if err != nil {
				return err
			}
			c.Action = a
		case f.num == 3 && f.typ == protowire.VarintType:
			c.IssuedAt = time.UnixMilli(int64(f.varint)).UTC()
		case f.num == 4 && f.typ == protowire.BytesType:
			c.DeviceID = string(f.bytes)
		}
		return nil
	})
	return c, err
}

func MarshalAck(a Ack) []byte {
	var b []byte
	b = appendString(b, 1, a.CommandID)
	b = appendBool(b, 2, a.OK)
	b = appendBool(b, 3, a.BoltLocked)
	b = appendString(b, 4, a.Error)
	return b
}

func UnmarshalAck(b []byte) (Ack, error) {
	var a Ack
	err := walk(b, func(f field) error {
		switch {
		case f.num == 1 && f.typ == protowire.BytesType:
			a.CommandID = string(f.bytes)
		case f.num == 2 && f.typ == protowire.VarintType:
			a.OK = protowire.DecodeBool(f.varint)
		case f.num == 3 && f.typ == protowire.VarintType:
			a.BoltLocked = protowire.DecodeBool(f.varint)
		case f.num == 4 && f.typ == protowire.BytesType:
			a.Error = string(f.bytes)
		}
		return nil
	})
	return a, err
}

func actionCode(a types.Action) (uint64, error) {
	switch a {
	case types.ActionLock:
		return actionLock, nil
	case types.ActionUnlock:
		return actionUnlock, nil
	default:
		return actionUnspecified, fmt.Errorf("no wire code for action %q", a)
	}
}

func actionFromCode(code uint64) (types.Action, error) {
	switch code {
	case actionLock:
		return types.ActionLock, nil
	case actionUnlock:
		return types.ActionUnlock, nil
	default:
		return "", fmt.Errorf("%w: unknown action code %d", ErrMalformed, code)
	}
}
