package service

import (
	"context"
	"strings"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
)

type DeviceRegistry struct {
	store store.DeviceStore
	now   Clock
}

func NewDeviceRegistry(st store.DeviceStore, now Clock) *DeviceRegistry {
	return &DeviceRegistry{store: st, now: now.orDefault()}
}

func (r *DeviceRegistry) IsKnown(ctx context.Context, deviceID string) (bool, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return false, nil
	}
	return r.store.IsKnown(ctx, deviceID)
}

func (r *DeviceRegistry) NoteSeen(ctx context.Context, deviceID string, known bool) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}
	return r.store.MarkSeen(ctx, deviceID, known, r.now().UTC())
}
