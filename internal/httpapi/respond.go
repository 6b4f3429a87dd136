package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/auth"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/service"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, types.ErrorResponse{Success: false, Error: code, Message: msg})
}

func writeOK(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.Response{Success: true, Message: msg})
}

type errorMapping struct {
	target error
	status int
	code   string
}

// errorTable is checked in order; wrapped errors (ErrImageTooLarge wraps
// ErrInvalidImage) must come before their parent.
var errorTable = []errorMapping{
	{auth.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden"},
	{service.ErrNotApproved, http.StatusForbidden, "not_approved"},
	{service.ErrNoMatch, http.StatusForbidden, "no_match"},
	{service.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrUnknownDevice, http.StatusNotFound, "unknown_device"},
	{service.ErrDuplicateEmail, http.StatusConflict, "duplicate_email"},
	{service.ErrImageTooLarge, http.StatusRequestEntityTooLarge, "image_too_large"},
	{service.ErrInvalidImage, http.StatusBadRequest, "invalid_image"},
	{service.ErrNoFaceDetected, http.StatusUnprocessableEntity, "no_face_detected"},
	{service.ErrBusy, http.StatusLocked, "busy"},
	{service.ErrDeviceUnreachable, http.StatusBadGateway, "device_unreachable"},
	{service.ErrInvalidModuleID, http.StatusBadRequest, "invalid_module_id"},
	{service.ErrInvalidPIN, http.StatusBadRequest, "invalid_pin"},
	{service.ErrPINMismatch, http.StatusBadRequest, "pin_mismatch"},
	{service.ErrWeakCredential, http.StatusBadRequest, "weak_credential"},
	{service.ErrValidation, http.StatusBadRequest, "validation_failed"},
}

// writeServiceError answers err with its mapped status. Anything unmapped
// is logged with the request and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}
	logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"err", err,
	)
	writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
}
