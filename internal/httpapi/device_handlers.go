package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/wire"
)

// Door modules speak protobuf; JSON is accepted for bench testing.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req types.HeartbeatRequest
	proto := isProtobuf(r)

	if proto {
		body, err := readWire(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_body", "could not read body")
			return
		}
		if req, err = wire.UnmarshalHeartbeat(body); err != nil {
			writeError(w, http.StatusBadRequest, "bad_protobuf", "invalid protobuf body")
			return
		}
	} else if !decodeJSON(w, r, &req, false) {
		return
	}

	resp, err := s.heartbeats.Record(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	if proto {
		writeWire(w, http.StatusOK, wire.MarshalHeartbeatResponse(resp))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEntry takes a keypad attempt as JSON or a camera capture as
// multipart (module_id, image).
func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	var req types.EntryRequest

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		moduleID, image, ok := s.readImageForm(w, r, "module_id")
		if !ok {
			return
		}
		req = types.EntryRequest{ModuleID: moduleID, Method: types.MethodFace, Image: image}
	} else if !decodeJSON(w, r, &req, false) {
		return
	}

	resp, err := s.entry.Decide(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	status := http.StatusOK
	if !resp.Known {
		// Unknown modules are blocked from the access flow.
		status = http.StatusForbidden
	}
	writeJSON(w, status, resp)
}

// readImageForm parses a multipart upload holding one text field and an
// "image" file. It answers errors itself.
func (s *Server) readImageForm(w http.ResponseWriter, r *http.Request, idField string) (string, []byte, bool) {
	limit := int64(s.faces.MaxImageBytes())
	r.Body = http.MaxBytesReader(w, r.Body, limit+64<<10)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "image_too_large", "image too large")
			return "", nil, false
		}
		writeError(w, http.StatusBadRequest, "bad_multipart", "invalid multipart body")
		return "", nil, false
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	id := strings.TrimSpace(r.FormValue(idField))
	if id == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", idField+" is required")
		return "", nil, false
	}

	f, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_image", "image file is required")
		return "", nil, false
	}
	defer f.Close()

	// One byte over the limit is enough for the service to reject it.
	image, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_image", "could not read image")
		return "", nil, false
	}
	return id, image, true
}
