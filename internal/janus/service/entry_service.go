package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

// Entry decision reasons reported to the module and written to the log.
const (
	ReasonUnknownModule   = "unknown_module"
	ReasonPINMatch        = "pin_match"
	ReasonPINMismatch     = "pin_mismatch"
	ReasonFaceMatch       = "face_match"
	ReasonNoMatch         = "no_match"
	ReasonNoFace          = "no_face"
	ReasonFaceUnavailable = "face_unavailable"
)

// EntryService decides entry attempts made at a door module: a PIN on the
// keypad or a face in front of the camera. Every decision writes exactly
// one access event.
type EntryService struct {
	registry *DeviceRegistry
	accounts *AccountService
	faces    *FaceService
	audit    *AccessLog
	logger   *slog.Logger
	now      Clock
}

func NewEntryService(reg *DeviceRegistry, accounts *AccountService, faces *FaceService, audit *AccessLog, logger *slog.Logger, now Clock) *EntryService {
	return &EntryService{
		registry: reg,
		accounts: accounts,
		faces:    faces,
		audit:    audit,
		logger:   logger,
		now:      now.orDefault(),
	}
}

type entryDecision struct {
	granted bool
	reason  string
	userID  string
	name    string
}

func (s *EntryService) Decide(ctx context.Context, req types.EntryRequest) (types.EntryResponse, error) {
	moduleID := strings.TrimSpace(req.ModuleID)
	if moduleID == "" {
		return types.EntryResponse{}, ErrInvalidModuleID
	}

	// Malformed attempts are rejected before they count as a decision.
	switch req.Method {
	case types.MethodPIN:
		if err := checkPIN(req.PIN); err != nil {
			return types.EntryResponse{}, err
		}
	case types.MethodFace:
		if err := s.faces.checkImage(req.Image); err != nil {
			return types.EntryResponse{}, err
		}
	default:
		return types.EntryResponse{}, fmt.Errorf("%w: method must be pin or face", ErrValidation)
	}

	known, err := s.registry.IsKnown(ctx, moduleID)
	if err != nil {
		return types.EntryResponse{}, err
	}
	if err := s.registry.NoteSeen(ctx, moduleID, known); err != nil {
		s.logger.Warn("entry: mark seen failed", "module_id", moduleID, "err", err)
	}

	var d entryDecision
	switch {
	case !known:
		d = entryDecision{reason: ReasonUnknownModule}
	case req.Method == types.MethodPIN:
		d, err = s.decidePIN(ctx, req.PIN)
	default:
		d, err = s.decideFace(ctx, req.Image)
	}
	if err != nil {
		return types.EntryResponse{}, err
	}

	ev := Event{
		UserID:      d.userID,
		MatchedName: d.name,
		Method:      req.Method,
		Outcome:     types.OutcomeDenied,
		Action:      types.ActionEntry,
		DeviceID:    moduleID,
		Reason:      d.reason,
	}
	if d.granted {
		ev.Outcome = types.OutcomeGranted
	}
	s.audit.Record(ctx, ev)

	return types.EntryResponse{
		Success:    known,
		Known:      known,
		Granted:    d.granted,
		Reason:     d.reason,
		UserName:   d.name,
		ModuleID:   moduleID,
		ServerTime: s.now().UTC().Format(time.RFC3339Nano),
	}, nil
}

func (s *EntryService) decidePIN(ctx context.Context, pin string) (entryDecision, error) {
	u, ok, err := s.accounts.MatchPIN(ctx, pin)
	if err != nil {
		return entryDecision{}, err
	}
	if !ok {
		return entryDecision{reason: ReasonPINMismatch}, nil
	}
	return entryDecision{granted: true, reason: ReasonPINMatch, userID: u.ID, name: u.Name}, nil
}

// decideFace fails closed: an extractor outage denies entry rather than
// failing the request.
func (s *EntryService) decideFace(ctx context.Context, image []byte) (entryDecision, error) {
	userID, err := s.faces.Match(ctx, image)
	switch {
	case errors.Is(err, ErrNoMatch):
		return entryDecision{reason: ReasonNoMatch}, nil
	case errors.Is(err, ErrNoFaceDetected):
		return entryDecision{reason: ReasonNoFace}, nil
	case errors.Is(err, ErrInvalidImage):
		return entryDecision{}, err
	case err != nil:
		s.logger.Error("entry: face match failed", "err", err)
		return entryDecision{reason: ReasonFaceUnavailable}, nil
	}

	u, err := s.accounts.Get(ctx, userID)
	if err != nil || u.State != types.StateApproved {
		// Templates of unapproved or vanished users never open the door.
		return entryDecision{reason: ReasonNoMatch}, nil
	}
	return entryDecision{granted: true, reason: ReasonFaceMatch, userID: u.ID, name: u.Name}, nil
}
