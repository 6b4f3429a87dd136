package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/service"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

func (s *Server) handleAccessLogs(w http.ResponseWriter, r *http.Request) {
	p, ok := s.authorize(w, r, types.RoleResident)
	if !ok {
		return
	}

	var page service.Page
	q := r.URL.Query()
	if v := q.Get("before"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "before must be a non-negative integer")
			return
		}
		page.Before = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a non-negative integer")
			return
		}
		page.Limit = n
	}

	res, err := s.accessLog.Query(r.Context(), p, page)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, types.AccessLogResponse{
		Success:    true,
		Logs:       logEntries(res.Events),
		NextCursor: res.NextCursor,
	})
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, types.ActionLock)
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, types.ActionUnlock)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, action types.Action) {
	p, ok := s.authorize(w, r, types.RoleResident)
	if !ok {
		return
	}
	var req types.LockRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	cmd, err := s.dispatcher.Dispatch(r.Context(), p, req.DeviceID, action)
	switch {
	case err == nil:
		msg := "Door locked"
		if action == types.ActionUnlock {
			msg = "Door unlocked"
		}
		writeJSON(w, http.StatusOK, types.LockResponse{Success: true, Message: msg, Command: commandDTO(cmd)})
	case errors.Is(err, service.ErrDeviceUnreachable):
		// The command was sent and resolved; show how it ended.
		writeJSON(w, http.StatusBadGateway, types.LockResponse{
			Success: false,
			Message: err.Error(),
			Command: commandDTO(cmd),
		})
	default:
		writeServiceError(w, r, s.logger, err)
	}
}

func (s *Server) handleLockStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := s.authorize(w, r, types.RoleResident)
	if !ok {
		return
	}
	deviceID := s.dispatcher.DeviceOrDefault(r.URL.Query().Get("device_id"))
	cmd, found, err := s.dispatcher.LastCommand(r.Context(), p, deviceID)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	resp := types.LockStatusResponse{Success: true, DeviceID: deviceID}
	if found {
		resp.LastCommand = commandDTO(cmd)
	}
	writeJSON(w, http.StatusOK, resp)
}
