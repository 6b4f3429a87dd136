package httpapi

import (
	"net/http"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

func (s *Server) handleFaceRegister(w http.ResponseWriter, r *http.Request) {
	p, ok := s.authorize(w, r, types.RoleResident)
	if !ok {
		return
	}
	userID, image, ok := s.readImageForm(w, r, "userId")
	if !ok {
		return
	}
	if err := s.faces.Enroll(r.Context(), p, userID, image); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "Face registered")
}
