package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/Janus/server/internal/db"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
)

type HeartbeatStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewHeartbeatStore(db *sql.DB, writer *dbpkg.Worker) *HeartbeatStore {
	return &HeartbeatStore{db: db, writer: writer}
}

// UpsertHeartbeat appends a heartbeat row and refreshes the device
// snapshot columns used for status queries.
func (s *HeartbeatStore) UpsertHeartbeat(ctx context.Context, deviceID string, rec store.HeartbeatRecord) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}

	recvMs := msOrNow(rec.ReceivedAt)
	req := rec.Request

	fw := strings.TrimSpace(req.FirmwareVersion)
	ip := strings.TrimSpace(req.IP)

	var rssi any
	if req.RSSIDbm != nil {
		rssi = *req.RSSIDbm
	}

	var uptimeMs any
	if req.UptimeSeconds != 0 {
		uptimeMs = int64(req.UptimeSeconds) * 1000
	}

	var seq any
	if req.Sequence != 0 {
		seq = req.Sequence
	}

	var freeHeap any
	if req.FreeHeapBytes != 0 {
		freeHeap = req.FreeHeapBytes
	}

	bolt := nullBool(req.BoltLocked)
	door := nullBool(req.DoorClosed)

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureDevice(ctx, tx, deviceID, recvMs); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO device_heartbeats(
  device_id, received_at_ms, seq, uptime_ms, fw_version, wifi_rssi, ip,
  free_heap_bytes, bolt_locked, door_closed
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, deviceID, recvMs, seq, uptimeMs, fw, rssi, ip, freeHeap, bolt, door); err != nil {
			return fmt.Errorf("UpsertHeartbeat insert heartbeat: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE devices
SET last_seen_at_ms  = ?,
    last_ip          = ?,
    last_fw_version  = ?,
    last_wifi_rssi   = ?,
    last_bolt_locked = COALESCE(?, last_bolt_locked),
    last_door_closed = COALESCE(?, last_door_closed),
    updated_at_ms    = ?
WHERE device_id = ?;
`, recvMs, ip, fw, rssi, bolt, door, recvMs, deviceID); err != nil {
			return fmt.Errorf("UpsertHeartbeat update device snapshot: %w", err)
		}

		return nil
	})
}

// PruneOlderThan deletes heartbeat rows received before cutoff and
// returns how many were removed.
func (s *HeartbeatStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM device_heartbeats
WHERE received_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}
