package httpapi

import (
	"net/http"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req types.SignupRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if _, err := s.accounts.Signup(r.Context(), req); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeOK(w, http.StatusCreated, "Signup received. An administrator will review your account.")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	sess, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, types.LoginResponse{
		Success:   true,
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		User: types.SessionUser{
			ID:   sess.User.ID,
			Name: sess.User.Name,
			Role: sess.User.Role,
		},
	})
}

func (s *Server) handleVerifyPassword(w http.ResponseWriter, r *http.Request) {
	var req types.VerifyPasswordRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if err := s.accounts.VerifyPassword(r.Context(), req.UserID, req.Password); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "")
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := s.authorize(w, r, types.RoleResident)
	if !ok {
		return
	}
	var req types.UpdatePasswordRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if err := s.accounts.UpdatePassword(r.Context(), p, req.UserID, req.NewPassword); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "Password updated")
}

func (s *Server) handleUpdatePIN(w http.ResponseWriter, r *http.Request) {
	p, ok := s.authorize(w, r, types.RoleResident)
	if !ok {
		return
	}
	var req types.UpdatePINRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if err := s.accounts.UpdatePIN(r.Context(), p, req.OldPIN, req.NewPIN); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "PIN updated")
}

func (s *Server) handleSetPIN(w http.ResponseWriter, r *http.Request) {
	p, ok := s.authorize(w, r, types.RoleAdmin)
	if !ok {
		return
	}
	var req types.SetPINRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if err := s.accounts.SetPIN(r.Context(), p, r.PathValue("id"), req.NewPIN); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "PIN set")
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	p, ok := s.authorize(w, r, types.RoleAdmin)
	if !ok {
		return
	}
	users, err := s.accounts.ListPending(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, types.UsersResponse{Success: true, Users: userDTOs(users)})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := s.authorize(w, r, types.RoleAdmin)
	if !ok {
		return
	}
	users, err := s.accounts.ListUsers(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, types.UsersResponse{Success: true, Users: userDTOs(users)})
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	p, ok := s.authorize(w, r, types.RoleAdmin)
	if !ok {
		return
	}
	if err := s.accounts.Accept(r.Context(), p, r.PathValue("id")); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "User accepted")
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	p, ok := s.authorize(w, r, types.RoleAdmin)
	if !ok {
		return
	}
	if err := s.accounts.Reject(r.Context(), p, r.PathValue("id")); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "User rejected")
}
