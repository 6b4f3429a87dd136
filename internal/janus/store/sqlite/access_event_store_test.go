package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	sqlitestore "github.com/BrandonDHaskell/Janus/server/internal/janus/store/sqlite"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

// ═══════════════════════════════════════════════════════════════════════════
// RecordEvent: insert and seq
// ═══════════════════════════════════════════════════════════════════════════

func TestAccessEventStore_RecordEvent_AssignsIncreasingSeq(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedDevice(t, conn, "door-001")
	as := sqlitestore.NewAccessEventStore(conn, w)
	ctx := context.Background()

	now := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

	var last int64
	for i := 0; i < 3; i++ {
		seq, err := as.RecordEvent(ctx, store.AccessEventRecord{
			OccurredAt: now.Add(time.Duration(i) * time.Millisecond),
			Method:     types.MethodPIN,
			Outcome:    types.OutcomeDenied,
			Action:     types.ActionEntry,
			DeviceID:   "door-001",
			Reason:     "pin_mismatch",
		})
		if err != nil {
			t.Fatalf("RecordEvent %d: %v", i, err)
		}
		if seq <= last {
			t.Fatalf("expected seq > %d, got %d", last, seq)
		}
		last = seq
	}
}

func TestAccessEventStore_RecordEvent_ColumnsCorrect(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedDevice(t, conn, "door-001")
	as := sqlitestore.NewAccessEventStore(conn, w)

	now := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

	seq, err := as.RecordEvent(context.Background(), store.AccessEventRecord{
		OccurredAt:  now,
		UserID:      "u-1",
		MatchedName: "Alice",
		Method:      types.MethodFace,
		Outcome:     types.OutcomeGranted,
		Action:      types.ActionEntry,
		DeviceID:    "door-001",
		Reason:      "face_match",
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	var (
		occurredMs              int64
		userID, name            string
		method, outcome, reason string
	)
	err = conn.QueryRowContext(context.Background(), `
SELECT occurred_at_ms, user_id, matched_name, method, outcome, reason
FROM access_events WHERE seq = ?`, seq,
	).Scan(&occurredMs, &userID, &name, &method, &outcome, &reason)
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if occurredMs != now.UnixMilli() {
		t.Errorf("expected occurred_at_ms=%d, got %d", now.UnixMilli(), occurredMs)
	}
	if userID != "u-1" || name != "Alice" {
		t.Errorf("unexpected identity %q/%q", userID, name)
	}
	if method != "face" || outcome != "granted" || reason != "face_match" {
		t.Errorf("unexpected method/outcome/reason %q/%q/%q", method, outcome, reason)
	}
}

func TestAccessEventStore_RecordEvent_NullIdentity(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	as := sqlitestore.NewAccessEventStore(conn, w)

	seq, err := as.RecordEvent(context.Background(), store.AccessEventRecord{
		OccurredAt: time.Now().UTC(),
		Method:     types.MethodFace,
		Outcome:    types.OutcomeDenied,
		Action:     types.ActionEntry,
		Reason:     "no_match",
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	var userID, name, deviceID sql.NullString
	err = conn.QueryRowContext(context.Background(),
		`SELECT user_id, matched_name, device_id FROM access_events WHERE seq = ?`, seq,
	).Scan(&userID, &name, &deviceID)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if userID.Valid || name.Valid || deviceID.Valid {
		t.Errorf("expected NULL identity and device, got %v %v %v", userID, name, deviceID)
	}
}

func TestAccessEventStore_RecordEvent_CreatesUnknownDevice(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	as := sqlitestore.NewAccessEventStore(conn, w)

	_, err := as.RecordEvent(context.Background(), store.AccessEventRecord{
		OccurredAt: time.Now().UTC(),
		Method:     types.MethodPIN,
		Outcome:    types.OutcomeDenied,
		Action:     types.ActionEntry,
		DeviceID:   "rogue-7",
		Reason:     "unknown_module",
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	var enabled int
	if err := conn.QueryRowContext(context.Background(),
		`SELECT enabled FROM devices WHERE device_id = ?`, "rogue-7",
	).Scan(&enabled); err != nil {
		t.Fatalf("query device: %v", err)
	}
	if enabled != 0 {
		t.Error("expected auto-created device to be disabled")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// QueryEvents
// ═══════════════════════════════════════════════════════════════════════════

func recordN(t *testing.T, as *sqlitestore.AccessEventStore, base time.Time, users ...string) {
	t.Helper()
	for i, u := range users {
		_, err := as.RecordEvent(context.Background(), store.AccessEventRecord{
			OccurredAt: base.Add(time.Duration(i) * time.Second),
			UserID:     u,
			Method:     types.MethodPassword,
			Outcome:    types.OutcomeGranted,
			Action:     types.ActionUnlock,
			DeviceID:   "door-001",
		})
		if err != nil {
			t.Fatalf("RecordEvent %d: %v", i, err)
		}
	}
}

func TestAccessEventStore_QueryEvents_NewestFirstWithCursor(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedDevice(t, conn, "door-001")
	as := sqlitestore.NewAccessEventStore(conn, w)
	ctx := context.Background()

	base := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	recordN(t, as, base, "a", "b", "c", "d", "e")

	page1, err := as.QueryEvents(ctx, store.AccessEventQuery{Limit: 2})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1) != 2 || page1[0].UserID != "e" || page1[1].UserID != "d" {
		t.Fatalf("unexpected page 1: %+v", page1)
	}

	page2, err := as.QueryEvents(ctx, store.AccessEventQuery{Before: page1[1].Seq, Limit: 2})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2) != 2 || page2[0].UserID != "c" || page2[1].UserID != "b" {
		t.Fatalf("unexpected page 2: %+v", page2)
	}

	page3, err := as.QueryEvents(ctx, store.AccessEventQuery{Before: page2[1].Seq, Limit: 2})
	if err != nil {
		t.Fatalf("page 3: %v", err)
	}
	if len(page3) != 1 || page3[0].UserID != "a" {
		t.Fatalf("unexpected page 3: %+v", page3)
	}
	if !page3[0].OccurredAt.Equal(base) {
		t.Errorf("expected occurred_at %s, got %s", base, page3[0].OccurredAt)
	}
}

func TestAccessEventStore_QueryEvents_FilterByUser(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedDevice(t, conn, "door-001")
	as := sqlitestore.NewAccessEventStore(conn, w)

	recordN(t, as, time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC), "a", "b", "a", "c")

	got, err := as.QueryEvents(context.Background(), store.AccessEventQuery{UserID: "a"})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events for a, got %d", len(got))
	}
	for _, ev := range got {
		if ev.UserID != "a" {
			t.Errorf("unexpected user %q in filtered page", ev.UserID)
		}
	}
	if got[0].Seq <= got[1].Seq {
		t.Error("expected newest first")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Append-only
// ═══════════════════════════════════════════════════════════════════════════

func TestAccessEventStore_AppendOnly(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedDevice(t, conn, "door-001")
	as := sqlitestore.NewAccessEventStore(conn, w)

	recordN(t, as, time.Now().UTC(), "a")

	if _, err := conn.ExecContext(context.Background(), `DELETE FROM access_events`); err == nil {
		t.Fatal("expected delete to be rejected")
	}
}
