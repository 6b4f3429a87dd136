package actuator

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

// Simulated stands in for a module that has no control URL configured.
// It acknowledges every command after a fixed latency and remembers the
// bolt state per device.
type Simulated struct {
	latency time.Duration

	mu     sync.Mutex
	locked map[string]bool
}

func NewSimulated(latency time.Duration) *Simulated {
	return &Simulated{latency: latency, locked: make(map[string]bool)}
}

func (s *Simulated) Send(ctx context.Context, cmd Command) (Ack, error) {
	if s.latency > 0 {
		t := time.NewTimer(s.latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return Ack{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked[cmd.DeviceID] = cmd.Action == types.ActionLock
	return Ack{CommandID: cmd.ID, OK: true, BoltLocked: s.locked[cmd.DeviceID]}, nil
}

// BoltLocked reports the last state a command drove the device to.
func (s *Simulated) BoltLocked(deviceID string) (locked, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	locked, ok = s.locked[deviceID]
	return locked, ok
}
