package main

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/BrandonDHaskell/Janus/server/internal/config"
	"github.com/BrandonDHaskell/Janus/server/internal/db"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store/memory"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store/sqlite"
)

type stores struct {
	users      store.UserStore
	faces      store.FaceTemplateStore
	events     store.AccessEventStore
	commands   store.CommandStore
	devices    store.DeviceStore
	heartbeats store.HeartbeatStore

	close func()
}

func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (*stores, error) {
	if cfg.Storage == "memory" {
		logger.Warn("memory storage: nothing survives a restart")
		return &stores{
			users:      memory.NewUserStore(),
			faces:      memory.NewFaceTemplateStore(),
			events:     memory.NewAccessEventStore(),
			commands:   memory.NewCommandStore(),
			devices:    memory.NewDeviceStore(cfg.DeviceIDs()),
			heartbeats: memory.NewHeartbeatStore(),
			close:      func() {},
		}, nil
	}

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return nil, err
	}
	writer := db.NewWorker(conn)

	if err := db.SeedDevices(ctx, writer, cfg.DeviceIDs()); err != nil {
		writer.Close()
		_ = conn.Close()
		return nil, err
	}
	logger.Info("sqlite storage", "path", cfg.DBPath)

	return &stores{
		users:      sqlite.NewUserStore(conn, writer),
		faces:      sqlite.NewFaceTemplateStore(conn, writer),
		events:     sqlite.NewAccessEventStore(conn, writer),
		commands:   sqlite.NewCommandStore(conn, writer),
		devices:    sqlite.NewDeviceStore(conn, writer),
		heartbeats: sqlite.NewHeartbeatStore(conn, writer),
		close:      closer(writer, conn),
	}, nil
}

func closer(w *db.Worker, conn *sql.DB) func() {
	return func() {
		w.Close()
		_ = conn.Close()
	}
}
