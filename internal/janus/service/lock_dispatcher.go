package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/actuator"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/auth"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

const (
	DefaultAckTimeout = 5 * time.Second

	resolveTimeout = 5 * time.Second
)

// Denial reasons written to the access log for failed dispatches.
const (
	ReasonAckTimeout  = "ack_timeout"
	ReasonRefused     = "device_refused"
	ReasonDeviceError = "device_error"
)

type DispatcherConfig struct {
	Commands      store.CommandStore
	Users         store.UserStore
	Registry      *DeviceRegistry
	Actuator      actuator.Actuator
	Audit         *AccessLog
	Logger        *slog.Logger
	AckTimeout    time.Duration
	DefaultDevice string
	Now           Clock
}

// LockDispatcher relays lock and unlock commands to door modules. Each
// device has one in-flight slot held in the command store; a second
// command while the first awaits its ack fails with ErrBusy.
type LockDispatcher struct {
	commands      store.CommandStore
	users         store.UserStore
	registry      *DeviceRegistry
	actuator      actuator.Actuator
	audit         *AccessLog
	logger        *slog.Logger
	ackTimeout    time.Duration
	defaultDevice string
	now           Clock
}

func NewLockDispatcher(cfg DispatcherConfig) *LockDispatcher {
	timeout := cfg.AckTimeout
	if timeout <= 0 {
		timeout = DefaultAckTimeout
	}
	return &LockDispatcher{
		commands:      cfg.Commands,
		users:         cfg.Users,
		registry:      cfg.Registry,
		actuator:      cfg.Actuator,
		audit:         cfg.Audit,
		logger:        cfg.Logger,
		ackTimeout:    timeout,
		defaultDevice: cfg.DefaultDevice,
		now:           cfg.Now.orDefault(),
	}
}

// DeviceOrDefault resolves an empty device id to the configured default.
func (d *LockDispatcher) DeviceOrDefault(deviceID string) string {
	if id := strings.TrimSpace(deviceID); id != "" {
		return id
	}
	return d.defaultDevice
}

// Dispatch sends one absolute command and waits for its ack. It never
// retries. The returned record reflects the resolved state even when err
// is ErrDeviceUnreachable.
func (d *LockDispatcher) Dispatch(ctx context.Context, p auth.Principal, deviceID string, action types.Action) (store.LockCommandRecord, error) {
	if !p.Satisfies(types.RoleResident) {
		return store.LockCommandRecord{}, ErrForbidden
	}
	if action != types.ActionLock && action != types.ActionUnlock {
		return store.LockCommandRecord{}, ErrInvalidAction
	}
	deviceID = d.DeviceOrDefault(deviceID)

	known, err := d.registry.IsKnown(ctx, deviceID)
	if err != nil {
		return store.LockCommandRecord{}, err
	}
	if !known {
		return store.LockCommandRecord{}, ErrUnknownDevice
	}

	now := d.now().UTC()
	rec := store.LockCommandRecord{
		ID:           uuid.NewString(),
		DeviceID:     deviceID,
		Action:       action,
		UserID:       p.UserID,
		State:        types.CommandPending,
		DispatchedAt: now,
		Deadline:     now.Add(d.ackTimeout),
	}
	if err := d.commands.Acquire(ctx, rec); err != nil {
		if errors.Is(err, store.ErrSlotBusy) {
			return store.LockCommandRecord{}, ErrBusy
		}
		return store.LockCommandRecord{}, err
	}

	// The slot is only ours until rec.Deadline; whatever Acquire spent comes
	// out of the send budget.
	var (
		ack     actuator.Ack
		sendErr error
	)
	if budget := rec.Deadline.Sub(d.now()); budget > 0 {
		sendCtx, cancel := context.WithTimeout(ctx, budget)
		ack, sendErr = d.actuator.Send(sendCtx, actuator.Command{
			ID:       rec.ID,
			DeviceID: deviceID,
			Action:   action,
			IssuedAt: now,
		})
		cancel()
	} else {
		sendErr = fmt.Errorf("slot acquired past deadline: %w", context.DeadlineExceeded)
	}

	state, reason, detail := classifyAck(ack, sendErr)
	rec = d.resolve(ctx, rec, state, detail)

	ev := Event{
		UserID:      p.UserID,
		MatchedName: d.nameOf(ctx, p.UserID),
		Method:      types.MethodPassword,
		Action:      action,
		DeviceID:    deviceID,
	}
	if state == types.CommandAcked {
		ev.Outcome = types.OutcomeGranted
		d.audit.Record(ctx, ev)
		d.logger.Info("lock: command acked",
			"command_id", rec.ID, "device_id", deviceID, "action", action, "user_id", p.UserID)
		return rec, nil
	}

	ev.Outcome = types.OutcomeDenied
	ev.Reason = reason
	d.audit.Record(ctx, ev)
	d.logger.Warn("lock: command not acked",
		"command_id", rec.ID, "device_id", deviceID, "action", action,
		"state", state, "detail", detail)
	return rec, fmt.Errorf("%w: %s", ErrDeviceUnreachable, reason)
}

// resolve closes the slot on a detached context so a caller hanging up
// cannot leave the device busy until the deadline.
func (d *LockDispatcher) resolve(ctx context.Context, rec store.LockCommandRecord, state types.CommandState, detail string) store.LockCommandRecord {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
	defer cancel()

	at := d.now().UTC()
	if err := d.commands.Resolve(rctx, rec.ID, state, detail, at); err != nil {
		// The slot stays pending; the next Acquire after the deadline
		// reclaims it.
		d.logger.Error("lock: resolve command failed", "command_id", rec.ID, "err", err)
	}
	rec.State = state
	rec.Detail = detail
	rec.ResolvedAt = &at
	return rec
}

func classifyAck(ack actuator.Ack, err error) (state types.CommandState, reason, detail string) {
	switch {
	case err == nil && ack.OK:
		return types.CommandAcked, "", ""
	case err == nil:
		return types.CommandFailed, ReasonRefused, ack.Error
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return types.CommandTimedOut, ReasonAckTimeout, err.Error()
	default:
		return types.CommandFailed, ReasonDeviceError, err.Error()
	}
}

func (d *LockDispatcher) nameOf(ctx context.Context, userID string) string {
	if d.users == nil || userID == "" {
		return ""
	}
	u, err := d.users.GetUser(ctx, userID)
	if err != nil {
		return ""
	}
	return u.Name
}

// LastCommand returns the most recent command for a device, if any.
func (d *LockDispatcher) LastCommand(ctx context.Context, p auth.Principal, deviceID string) (store.LockCommandRecord, bool, error) {
	if !p.Satisfies(types.RoleResident) {
		return store.LockCommandRecord{}, false, ErrForbidden
	}
	rec, err := d.commands.Latest(ctx, d.DeviceOrDefault(deviceID))
	if errors.Is(err, store.ErrNotFound) {
		return store.LockCommandRecord{}, false, nil
	}
	if err != nil {
		return store.LockCommandRecord{}, false, err
	}
	return rec, true, nil
}
