package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	dbpkg "github.com/BrandonDHaskell/Janus/server/internal/db"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

type AccessEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAccessEventStore(db *sql.DB, writer *dbpkg.Worker) *AccessEventStore {
	return &AccessEventStore{db: db, writer: writer}
}

func (s *AccessEventStore) RecordEvent(ctx context.Context, rec store.AccessEventRecord) (int64, error) {
	occurredMs := msOrNow(rec.OccurredAt)
	deviceID := strings.TrimSpace(rec.DeviceID)

	var seq int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if deviceID != "" {
			if err := ensureDevice(ctx, tx, deviceID, occurredMs); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx, `
INSERT INTO access_events(
  occurred_at_ms, user_id, matched_name, method, outcome, action, device_id, reason
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
			occurredMs,
			nullString(rec.UserID),
			nullString(rec.MatchedName),
			string(rec.Method),
			string(rec.Outcome),
			string(rec.Action),
			nullString(deviceID),
			rec.Reason,
		)
		if err != nil {
			return fmt.Errorf("RecordEvent insert: %w", err)
		}
		seq, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("RecordEvent seq: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// QueryEvents pages newest first. Before is an exclusive seq cursor.
func (s *AccessEventStore) QueryEvents(ctx context.Context, q store.AccessEventQuery) ([]store.AccessEventRecord, error) {
	var (
		where []string
		args  []any
	)
	if q.Before > 0 {
		where = append(where, "seq < ?")
		args = append(args, q.Before)
	}
	if q.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, q.UserID)
	}

	query := `
SELECT seq, occurred_at_ms, user_id, matched_name, method, outcome, action, device_id, reason
FROM access_events`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY occurred_at_ms DESC, seq DESC"
	if q.Limit > 0 {
		query += "\nLIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("QueryEvents: %w", err)
	}
	defer rows.Close()

	var out []store.AccessEventRecord
	for rows.Next() {
		var (
			rec                     store.AccessEventRecord
			occurredMs              int64
			userID, name, deviceID  sql.NullString
			method, outcome, action string
		)
		if err := rows.Scan(&rec.Seq, &occurredMs, &userID, &name, &method, &outcome, &action, &deviceID, &rec.Reason); err != nil {
			return nil, fmt.Errorf("QueryEvents scan: %w", err)
		}
		rec.OccurredAt = fromMs(occurredMs)
		rec.UserID = userID.String
		rec.MatchedName = name.String
		rec.DeviceID = deviceID.String
		rec.Method = types.AccessMethod(method)
		rec.Outcome = types.AccessOutcome(outcome)
		rec.Action = types.Action(action)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("QueryEvents rows: %w", err)
	}
	return out, nil
}
