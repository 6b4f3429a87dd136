package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/service"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store/memory"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

func TestPruner_DisabledWhenRetentionZero(t *testing.T) {
	ms := memory.NewHeartbeatStore()
	pruner := service.NewPruner(service.PrunerConfig{
		RetentionDays: 0,
		IntervalHours: 1,
	}, silentLogger(), service.PruneTarget{Name: "heartbeats", Store: ms})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pruner.Start(ctx)
	// Stop should return immediately without error.
	pruner.Stop()

	if n := pruner.PruneOnce(ctx); n != 0 {
		t.Errorf("expected disabled pruner to delete nothing, got %d", n)
	}
}

func TestPruner_PrunesOldRecords(t *testing.T) {
	hs := memory.NewHeartbeatStore()
	cs := memory.NewCommandStore()
	ctx := context.Background()
	now := time.Now().UTC()

	// An old heartbeat (40 days ago) and a recent one (1 day ago).
	old := store.HeartbeatRecord{
		ReceivedAt: now.AddDate(0, 0, -40),
		Request:    types.HeartbeatRequest{ModuleID: "door-old"},
	}
	if err := hs.UpsertHeartbeat(ctx, "door-old", old); err != nil {
		t.Fatalf("insert old: %v", err)
	}
	recent := store.HeartbeatRecord{
		ReceivedAt: now.AddDate(0, 0, -1),
		Request:    types.HeartbeatRequest{ModuleID: "door-recent"},
	}
	if err := hs.UpsertHeartbeat(ctx, "door-recent", recent); err != nil {
		t.Fatalf("insert recent: %v", err)
	}

	// Two resolved commands on one device; only the older can go.
	for i, at := range []time.Time{now.AddDate(0, 0, -50), now.AddDate(0, 0, -45)} {
		rec := store.LockCommandRecord{
			ID:           []string{"c1", "c2"}[i],
			DeviceID:     "door-001",
			Action:       types.ActionLock,
			DispatchedAt: at,
			Deadline:     at.Add(time.Second),
		}
		if err := cs.Acquire(ctx, rec); err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if err := cs.Resolve(ctx, rec.ID, types.CommandAcked, "", at); err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}

	pruner := service.NewPruner(service.PrunerConfig{RetentionDays: 30, IntervalHours: 1}, silentLogger(),
		service.PruneTarget{Name: "heartbeats", Store: hs},
		service.PruneTarget{Name: "lock_commands", Store: cs},
	)
	if n := pruner.PruneOnce(ctx); n != 2 {
		t.Errorf("expected 2 pruned, got %d", n)
	}

	if _, ok := hs.Latest("door-recent"); !ok {
		t.Error("expected recent heartbeat to survive")
	}
	if _, ok := hs.Latest("door-old"); ok {
		t.Error("expected old heartbeat to be pruned")
	}
	last, err := cs.Latest(ctx, "door-001")
	if err != nil || last.ID != "c2" {
		t.Errorf("expected latest command c2 to survive, got %+v (%v)", last, err)
	}
}

type failingTarget struct{}

func (failingTarget) PruneOlderThan(context.Context, time.Time) (int64, error) {
	return 0, errors.New("locked")
}

func TestPruner_FailingTargetDoesNotStopOthers(t *testing.T) {
	hs := memory.NewHeartbeatStore()
	ctx := context.Background()
	old := store.HeartbeatRecord{ReceivedAt: time.Now().UTC().AddDate(0, 0, -40)}
	if err := hs.UpsertHeartbeat(ctx, "door-old", old); err != nil {
		t.Fatalf("insert: %v", err)
	}

	pruner := service.NewPruner(service.PrunerConfig{RetentionDays: 30}, silentLogger(),
		service.PruneTarget{Name: "broken", Store: failingTarget{}},
		service.PruneTarget{Name: "heartbeats", Store: hs},
	)
	if n := pruner.PruneOnce(ctx); n != 1 {
		t.Errorf("expected 1 pruned, got %d", n)
	}
}

func TestPruner_StopIsIdempotent(t *testing.T) {
	ms := memory.NewHeartbeatStore()
	pruner := service.NewPruner(service.PrunerConfig{
		RetentionDays: 30,
		IntervalHours: 1,
	}, silentLogger(), service.PruneTarget{Name: "heartbeats", Store: ms})

	ctx, cancel := context.WithCancel(context.Background())
	pruner.Start(ctx)

	cancel()
	// Multiple stops should not panic.
	pruner.Stop()
	pruner.Stop()
}
