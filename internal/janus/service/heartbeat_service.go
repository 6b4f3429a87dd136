package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

// boltReport is what a lock module last said about its hardware. Nil
// fields were not reported.
type boltReport struct {
	boltLocked *bool
	doorClosed *bool
}

// HeartbeatService takes the periodic status frames lock modules push and
// keeps the latest one per module.
type HeartbeatService struct {
	beats    store.HeartbeatStore
	registry *DeviceRegistry
	logger   *slog.Logger
	now      Clock

	mu   sync.Mutex
	last map[string]boltReport
}

func NewHeartbeatService(hs store.HeartbeatStore, reg *DeviceRegistry, logger *slog.Logger, now Clock) *HeartbeatService {
	return &HeartbeatService{
		beats:    hs,
		registry: reg,
		logger:   logger,
		now:      now.orDefault(),
		last:     make(map[string]boltReport),
	}
}

// Record stores one heartbeat. Unknown modules are stored as well, so an
// operator can see what is knocking; Known in the reply tells the module
// whether it has been commissioned.
func (s *HeartbeatService) Record(ctx context.Context, hb types.HeartbeatRequest) (types.HeartbeatResponse, error) {
	deviceID := strings.TrimSpace(hb.ModuleID)
	if deviceID == "" {
		return types.HeartbeatResponse{}, ErrInvalidModuleID
	}
	hb.ModuleID = deviceID

	commissioned, err := s.registry.IsKnown(ctx, deviceID)
	if err != nil {
		return types.HeartbeatResponse{}, err
	}
	if err := s.registry.NoteSeen(ctx, deviceID, commissioned); err != nil {
		s.logger.Warn("heartbeat: mark seen failed", "module_id", deviceID, "err", err)
	}

	receivedAt := s.now().UTC()
	if err := s.beats.UpsertHeartbeat(ctx, deviceID, store.HeartbeatRecord{ReceivedAt: receivedAt, Request: hb}); err != nil {
		return types.HeartbeatResponse{}, err
	}
	if commissioned {
		s.noteBolt(deviceID, hb)
	}

	return types.HeartbeatResponse{
		OK:         true,
		Known:      commissioned,
		ModuleID:   deviceID,
		ServerTime: receivedAt.Format(time.RFC3339Nano),
	}, nil
}

// noteBolt logs bolt transitions between heartbeats, and a bolt thrown
// while the door reports open.
func (s *HeartbeatService) noteBolt(deviceID string, hb types.HeartbeatRequest) {
	s.mu.Lock()
	prev, seen := s.last[deviceID]
	s.last[deviceID] = boltReport{boltLocked: hb.BoltLocked, doorClosed: hb.DoorClosed}
	s.mu.Unlock()

	if hb.BoltLocked == nil {
		return
	}
	if seen && prev.boltLocked != nil && *prev.boltLocked != *hb.BoltLocked {
		s.logger.Info("heartbeat: bolt changed", "module_id", deviceID, "bolt_locked", *hb.BoltLocked)
	}
	if *hb.BoltLocked && hb.DoorClosed != nil && !*hb.DoorClosed {
		s.logger.Warn("heartbeat: bolt thrown with door open", "module_id", deviceID, "seq", hb.Sequence)
	}
}
