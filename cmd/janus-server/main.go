package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/BrandonDHaskell/Janus/server/internal/config"
	"github.com/BrandonDHaskell/Janus/server/internal/httpapi"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/actuator"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/auth"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/face"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/service"
	"github.com/BrandonDHaskell/Janus/server/internal/notify"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("janus-server exited", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Env == "prod" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)).With("app", "janus-server")
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)).With("app", "janus-server")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	// Tokens
	key := []byte(cfg.JWTSecret)
	if len(key) == 0 {
		if key, err = auth.GenerateKey(); err != nil {
			return err
		}
		logger.Warn("no JANUS_JWT_SECRET set; using a random key, sessions end on restart")
	}
	tokens, err := auth.NewTokenService(key, cfg.TokenTTL)
	if err != nil {
		return err
	}

	// Notices
	var notifier notify.Notifier = notify.Nop{}
	if cfg.MailEnabled() {
		mailer := notify.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunAPIBase)
		notifier = notify.NewMail(mailer, cfg.MailFrom, cfg.AdminNotifyAddresses())
		logger.Info("mail notices enabled", "domain", cfg.MailgunDomain)
	}

	// Services
	registry := service.NewDeviceRegistry(st.devices, nil)
	audit := service.NewAccessLog(st.events, logger, nil)

	accounts := service.NewAccountService(service.AccountConfig{
		Users:    st.users,
		Tokens:   tokens,
		Hasher:   auth.NewHasher(0),
		Notifier: notifier,
		Logger:   logger,
	})
	if cfg.AdminEmail != "" {
		created, err := accounts.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return err
		}
		if created {
			logger.Info("bootstrap admin created", "email", cfg.AdminEmail)
		}
	}

	extractor, closeExtractor, err := newExtractor(cfg, logger)
	if err != nil {
		return err
	}
	defer closeExtractor()

	var archive face.Archive
	if cfg.ArchiveEnabled() {
		archive = face.NewS3Archive(face.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		logger.Info("face capture archive enabled", "bucket", cfg.S3Bucket)
	}

	faces := service.NewFaceService(service.FaceConfig{
		Extractor:      extractor,
		Templates:      st.faces,
		Users:          st.users,
		Archive:        archive,
		Logger:         logger,
		Threshold:      cfg.FaceThreshold,
		Margin:         cfg.FaceMargin,
		MaxImageBytes:  cfg.FaceMaxImageBytes,
		ExtractTimeout: cfg.FaceExtractTimeout,
	})

	dispatcher := service.NewLockDispatcher(service.DispatcherConfig{
		Commands:      st.commands,
		Users:         st.users,
		Registry:      registry,
		Actuator:      newActuator(cfg, logger),
		Audit:         audit,
		Logger:        logger,
		AckTimeout:    cfg.AckTimeout,
		DefaultDevice: cfg.DefaultDevice,
	})

	pruner := service.NewPruner(service.PrunerConfig{
		RetentionDays: cfg.HeartbeatRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger,
		service.PruneTarget{Name: "heartbeats", Store: st.heartbeats},
		service.PruneTarget{Name: "lock_commands", Store: st.commands},
	)
	pruner.Start(ctx)
	defer pruner.Stop()

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:            logger,
		Addr:              cfg.HTTPAddr,
		Guard:             auth.NewGuard(tokens),
		Accounts:          accounts,
		AccessLog:         audit,
		Dispatcher:        dispatcher,
		Faces:             faces,
		EntryService:      service.NewEntryService(registry, accounts, faces, audit, logger, nil),
		HeartbeatService:  service.NewHeartbeatService(st.heartbeats, registry, logger, nil),
		AuthRatePerMinute: cfg.AuthRatePerMinute,
		AuthRateBurst:     cfg.AuthRateBurst,

		EntryRatePerMinute: cfg.EntryRatePerMinute,
		EntryRateBurst:     cfg.EntryRateBurst,
	})

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "env", cfg.Env, "storage", cfg.Storage)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newActuator routes devices with a control URL over HTTP and drives the
// rest with the simulator.
func newActuator(cfg config.Config, logger *slog.Logger) actuator.Actuator {
	urls := cfg.DeviceURLs()
	sim := actuator.NewSimulated(150 * time.Millisecond)
	client := &http.Client{}

	routes := make(map[string]actuator.Actuator)
	for _, id := range cfg.DeviceIDs() {
		if u, ok := urls[id]; ok {
			routes[id] = actuator.NewHTTP(u, client)
			logger.Info("lock device", "device_id", id, "url", u)
			continue
		}
		routes[id] = sim
		logger.Info("lock device simulated", "device_id", id)
	}
	return actuator.NewRouter(routes)
}

func newExtractor(cfg config.Config, logger *slog.Logger) (face.Extractor, func(), error) {
	addr := strings.TrimSpace(cfg.FaceExtractorAddr)
	if addr == "" {
		logger.Warn("no face extractor configured; using the built-in pixel extractor")
		return face.PixelExtractor{}, func() {}, nil
	}
	g, err := face.DialExtractor(addr)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("face extractor", "addr", addr)
	return g, func() { _ = g.Close() }, nil
}
