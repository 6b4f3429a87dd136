package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/auth"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/service"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

type Dependencies struct {
	Logger *slog.Logger
	Addr   string

	Guard            *auth.Guard
	Accounts         *service.AccountService
	AccessLog        *service.AccessLog
	Dispatcher       *service.LockDispatcher
	Faces            *service.FaceService
	EntryService     *service.EntryService
	HeartbeatService *service.HeartbeatService

	// Per-IP limit on the unauthenticated auth endpoints. Zero disables.
	AuthRatePerMinute int
	AuthRateBurst     int

	// Per-IP limit on door-module entry attempts, which run a PIN or face
	// match without any credential. Zero disables.
	EntryRatePerMinute int
	EntryRateBurst     int
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	mux        *http.ServeMux

	guard      *auth.Guard
	accounts   *service.AccountService
	accessLog  *service.AccessLog
	dispatcher *service.LockDispatcher
	faces      *service.FaceService
	entry      *service.EntryService
	heartbeats *service.HeartbeatService
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:     d.Logger,
		mux:        mux,
		guard:      d.Guard,
		accounts:   d.Accounts,
		accessLog:  d.AccessLog,
		dispatcher: d.Dispatcher,
		faces:      d.Faces,
		entry:      d.EntryService,
		heartbeats: d.HeartbeatService,
	}

	var limiter *ipLimiter
	if d.AuthRatePerMinute > 0 {
		limiter = newIPLimiter(d.AuthRatePerMinute, d.AuthRateBurst)
	}
	var entryLimiter *ipLimiter
	if d.EntryRatePerMinute > 0 {
		entryLimiter = newIPLimiter(d.EntryRatePerMinute, d.EntryRateBurst)
	}

	// Accounts
	mux.HandleFunc("POST /api/auth/signup", limiter.wrap(s.handleSignup))
	mux.HandleFunc("POST /api/auth/login", limiter.wrap(s.handleLogin))
	mux.HandleFunc("POST /api/auth/verify-password", limiter.wrap(s.handleVerifyPassword))
	mux.HandleFunc("POST /api/auth/update-password", s.handleUpdatePassword)
	mux.HandleFunc("POST /api/pin/update", s.handleUpdatePIN)

	// Administration
	mux.HandleFunc("GET /api/users/pending", s.handleListPending)
	mux.HandleFunc("GET /api/users/all", s.handleListUsers)
	mux.HandleFunc("POST /api/admin/users/{id}/accept", s.handleAccept)
	mux.HandleFunc("DELETE /api/admin/users/{id}/reject", s.handleReject)
	mux.HandleFunc("POST /api/admin/users/{id}/pin", s.handleSetPIN)

	// Access history
	mux.HandleFunc("GET /api/access-logs", s.handleAccessLogs)

	// Lock
	mux.HandleFunc("POST /api/esp/lock", s.handleLock)
	mux.HandleFunc("POST /api/esp/unlock", s.handleUnlock)
	mux.HandleFunc("GET /api/esp/status", s.handleLockStatus)

	// Door modules
	mux.HandleFunc("POST /api/esp/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("POST /api/esp/access", entryLimiter.wrap(s.handleEntry))

	// Face
	mux.HandleFunc("POST /api/face/register", s.handleFaceRegister)

	mux.HandleFunc("GET /healthz", s.handleHealth)

	handler := loggingMiddleware(d.Logger, recoverMiddleware(d.Logger, mux))

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// authorize runs the guard and answers the failure itself. Handlers return
// when ok is false.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, required types.Role) (auth.Principal, bool) {
	p, err := s.guard.Authorize(r.Header.Get("Authorization"), required)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return auth.Principal{}, false
	}
	return p, true
}

type healthResponse struct {
	Success       bool  `json:"success"`
	AuditFailures int64 `json:"audit_failures"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Success: true, AuditFailures: s.accessLog.Failures()})
}
