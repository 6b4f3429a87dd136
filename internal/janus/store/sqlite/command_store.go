package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/Janus/server/internal/db"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

// CommandStore keeps lock commands in lock_commands. The partial unique
// index on (device_id) WHERE state = 'pending' is the in-flight slot.
type CommandStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewCommandStore(db *sql.DB, writer *dbpkg.Worker) *CommandStore {
	return &CommandStore{db: db, writer: writer}
}

func (s *CommandStore) Acquire(ctx context.Context, rec store.LockCommandRecord) error {
	dispatchedMs := msOrNow(rec.DispatchedAt)
	deadlineMs := rec.Deadline.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
UPDATE lock_commands
SET state = 'timed_out', resolved_at_ms = ?, detail = 'reclaimed after deadline'
WHERE device_id = ? AND state = 'pending' AND deadline_ms < ?;
`, dispatchedMs, rec.DeviceID, dispatchedMs); err != nil {
			return fmt.Errorf("Acquire reclaim: %w", err)
		}

		if err := ensureDevice(ctx, tx, rec.DeviceID, dispatchedMs); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
INSERT INTO lock_commands(
  command_id, device_id, action, user_id, state, dispatched_at_ms, deadline_ms
) VALUES (?, ?, ?, ?, 'pending', ?, ?);
`, rec.ID, rec.DeviceID, string(rec.Action), nullString(rec.UserID), dispatchedMs, deadlineMs)
		if isUniqueViolation(err) {
			return store.ErrSlotBusy
		}
		if err != nil {
			return fmt.Errorf("Acquire insert: %w", err)
		}
		return nil
	})
}

func (s *CommandStore) Resolve(ctx context.Context, id string, state types.CommandState, detail string, at time.Time) error {
	ms := msOrNow(at)
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE lock_commands
SET state = ?, detail = ?, resolved_at_ms = ?
WHERE command_id = ? AND state = 'pending';
`, string(state), detail, ms, id)
		if err != nil {
			return fmt.Errorf("Resolve: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return nil
		}

		var one int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM lock_commands WHERE command_id = ?;`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("Resolve lookup: %w", err)
		}
		return store.ErrStateConflict
	})
}

func (s *CommandStore) Latest(ctx context.Context, deviceID string) (store.LockCommandRecord, error) {
	var (
		rec                      store.LockCommandRecord
		action, state            string
		userID                   sql.NullString
		dispatchedMs, deadlineMs int64
		resolvedMs               sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT command_id, device_id, action, user_id, state, dispatched_at_ms, deadline_ms, resolved_at_ms, detail
FROM lock_commands
WHERE device_id = ?
ORDER BY dispatched_at_ms DESC, rowid DESC
LIMIT 1;
`, deviceID).Scan(&rec.ID, &rec.DeviceID, &action, &userID, &state, &dispatchedMs, &deadlineMs, &resolvedMs, &rec.Detail)
	if errors.Is(err, sql.ErrNoRows) {
		return store.LockCommandRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.LockCommandRecord{}, fmt.Errorf("Latest: %w", err)
	}
	rec.Action = types.Action(action)
	rec.State = types.CommandState(state)
	rec.UserID = userID.String
	rec.DispatchedAt = fromMs(dispatchedMs)
	rec.Deadline = fromMs(deadlineMs)
	rec.ResolvedAt = fromNullMs(resolvedMs)
	return rec, nil
}

// PruneOlderThan deletes resolved commands dispatched before cutoff,
// keeping each device's most recent command for the status endpoint.
func (s *CommandStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM lock_commands
WHERE state != 'pending'
  AND dispatched_at_ms < ?
  AND command_id NOT IN (
    SELECT l2.command_id FROM lock_commands l2
    WHERE l2.device_id = lock_commands.device_id
    ORDER BY l2.dispatched_at_ms DESC, l2.rowid DESC
    LIMIT 1
  );
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}
