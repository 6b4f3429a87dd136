package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SeedDevices commissions the configured lock devices so they count as
// known. Rows already present are re-enabled; a revoked device stays
// revoked.
func SeedDevices(ctx context.Context, w *Worker, deviceIDs []string) error {
	now := time.Now().UTC().UnixMilli()

	return w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, id := range deviceIDs {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO devices(
  device_id, display_name, enabled, commissioned_at_ms,
  created_at_ms, updated_at_ms
) VALUES (?, ?, 1, ?, ?, ?)
ON CONFLICT(device_id) DO UPDATE SET
  enabled = 1,
  commissioned_at_ms = COALESCE(devices.commissioned_at_ms, excluded.commissioned_at_ms),
  updated_at_ms = excluded.updated_at_ms;
`, id, id, now, now, now); err != nil {
				return fmt.Errorf("seed device %s: %w", id, err)
			}
		}
		return nil
	})
}
