package service_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/actuator"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/auth"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/face"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/service"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store/memory"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

const testPassword = "hunter22"

func silentLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeClock is a settable clock. Step advances it on every read when set.
type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recordingNotifier keeps what it was told; err, when set, is returned.
type recordingNotifier struct {
	mu        sync.Mutex
	signups   []string
	decisions map[string]bool
	err       error
}

func (n *recordingNotifier) SignupReceived(_ context.Context, _ string, email string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.signups = append(n.signups, email)
	return n.err
}

func (n *recordingNotifier) Decision(_ context.Context, _ string, email string, approved bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.decisions == nil {
		n.decisions = make(map[string]bool)
	}
	n.decisions[email] = approved
	return n.err
}

// env wires every service over memory stores.
type env struct {
	clock    *fakeClock
	users    *memory.UserStore
	faces    *memory.FaceTemplateStore
	events   *memory.AccessEventStore
	commands *memory.CommandStore
	devices  *memory.DeviceStore
	notifier *recordingNotifier
	hasher   *auth.Hasher
	tokens   *auth.TokenService

	accounts   *service.AccountService
	audit      *service.AccessLog
	faceSvc    *service.FaceService
	dispatcher *service.LockDispatcher
	entry      *service.EntryService

	mu   sync.Mutex
	send actuator.Func

	// embeddings maps image bytes to what the fake extractor returns.
	embeddings map[string][]float32
}

func newEnv(t *testing.T) *env {
	t.Helper()

	key := make([]byte, auth.MinKeyBytes)
	copy(key, "0123456789abcdef0123456789abcdef")
	tokens, err := auth.NewTokenService(key, time.Hour)
	require.NoError(t, err)

	e := &env{
		clock:      newFakeClock(),
		users:      memory.NewUserStore(),
		faces:      memory.NewFaceTemplateStore(),
		events:     memory.NewAccessEventStore(),
		commands:   memory.NewCommandStore(),
		devices:    memory.NewDeviceStore([]string{"door-001", "door-002"}),
		notifier:   &recordingNotifier{},
		hasher:     auth.NewHasher(bcrypt.MinCost),
		tokens:     tokens,
		embeddings: make(map[string][]float32),
	}
	e.send = ackAll

	logger := silentLogger()
	registry := service.NewDeviceRegistry(e.devices, e.clock.Now)

	e.accounts = service.NewAccountService(service.AccountConfig{
		Users:    e.users,
		Tokens:   tokens,
		Hasher:   e.hasher,
		Notifier: e.notifier,
		Logger:   logger,
		Now:      e.clock.Now,
	})
	e.audit = service.NewAccessLog(e.events, logger, e.clock.Now)
	e.faceSvc = service.NewFaceService(service.FaceConfig{
		Extractor:      face.ExtractorFunc(e.extract),
		Templates:      e.faces,
		Users:          e.users,
		Logger:         logger,
		Threshold:      0.90,
		Margin:         0.03,
		MaxImageBytes:  1024,
		ExtractTimeout: 200 * time.Millisecond,
		Now:            e.clock.Now,
	})
	e.dispatcher = service.NewLockDispatcher(service.DispatcherConfig{
		Commands:      e.commands,
		Users:         e.users,
		Registry:      registry,
		Actuator:      actuator.Func(e.dispatch),
		Audit:         e.audit,
		Logger:        logger,
		AckTimeout:    100 * time.Millisecond,
		DefaultDevice: "door-001",
		Now:           e.clock.Now,
	})
	e.entry = service.NewEntryService(registry, e.accounts, e.faceSvc, e.audit, logger, e.clock.Now)
	return e
}

func ackAll(_ context.Context, cmd actuator.Command) (actuator.Ack, error) {
	return actuator.Ack{CommandID: cmd.ID, OK: true, BoltLocked: cmd.Action == types.ActionLock}, nil
}

func (e *env) setActuator(f actuator.Func) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.send = f
}

func (e *env) dispatch(ctx context.Context, cmd actuator.Command) (actuator.Ack, error) {
	e.mu.Lock()
	f := e.send
	e.mu.Unlock()
	return f(ctx, cmd)
}

func (e *env) extract(ctx context.Context, image []byte) ([]float32, error) {
	switch string(image) {
	case "blank":
		return nil, face.ErrNoFace
	case "garbage":
		return nil, face.ErrUndecodable
	case "slow":
		<-ctx.Done()
		return nil, ctx.Err()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if emb, ok := e.embeddings[string(image)]; ok {
		return emb, nil
	}
	return []float32{0, 0, 1}, nil
}

func (e *env) setEmbedding(image string, emb ...float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.embeddings[image] = emb
}

// addUser stores a user directly, bypassing signup.
func (e *env) addUser(t *testing.T, name, email string, role types.Role, state types.AccountState) (store.UserRecord, auth.Principal) {
	t.Helper()
	hash, err := e.hasher.Hash(testPassword)
	require.NoError(t, err)

	now := e.clock.Now()
	u := store.UserRecord{
		ID:           name + "-id",
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		State:        state,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.users.CreateUser(context.Background(), u))
	return u, auth.Principal{UserID: u.ID, Role: role}
}

func (e *env) admin(t *testing.T) auth.Principal {
	t.Helper()
	_, p := e.addUser(t, "root", "root@example.com", types.RoleAdmin, types.StateApproved)
	return p
}

func (e *env) resident(t *testing.T, name string) (store.UserRecord, auth.Principal) {
	t.Helper()
	return e.addUser(t, name, name+"@example.com", types.RoleResident, types.StateApproved)
}
