// Package actuator delivers lock commands to door modules and returns
// their acknowledgement.
package actuator

import (
	"context"
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/wire"
)

type (
	Command = wire.Command
	Ack     = wire.Ack
)

var (
	// ErrNoRoute means no actuator is configured for the device.
	ErrNoRoute = errors.New("no actuator for device")
	// ErrAckMismatch means the module acknowledged a different command.
	ErrAckMismatch = errors.New("ack does not match command")
)

// Actuator sends one command and blocks until the module acknowledges or
// ctx ends. A returned Ack may still carry OK=false.
type Actuator interface {
	Send(ctx context.Context, cmd Command) (Ack, error)
}

// Func adapts a function to Actuator.
type Func func(ctx context.Context, cmd Command) (Ack, error)

func (f Func) Send(ctx context.Context, cmd Command) (Ack, error) { return f(ctx, cmd) }

// Router picks the actuator for cmd.DeviceID.
type Router struct {
	routes map[string]Actuator
}

func NewRouter(routes map[string]Actuator) *Router {
	r := &Router{routes: make(map[string]Actuator, len(routes))}
	for id, a := range routes {
		r.routes[id] = a
	}
	return r
}

func (r *Router) Send(ctx context.Context, cmd Command) (Ack, error) {
	a, ok := r.routes[cmd.DeviceID]
	if !ok {
		return Ack{}, fmt.Errorf("%w: %s", ErrNoRoute, cmd.DeviceID)
	}
	ack, err := a.Send(ctx, cmd)
	if err != nil {
		return Ack{}, err
	}
	if ack.CommandID != "" && ack.CommandID != cmd.ID {
		return Ack{}, fmt.Errorf("%w: sent %s, got %s", ErrAckMismatch, cmd.ID, ack.CommandID)
	}
	return ack, nil
}
