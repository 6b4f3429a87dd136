package httpapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/wire"
)

// maxWireBody caps protobuf bodies from door modules. A heartbeat encodes
// to well under 200 bytes.
const maxWireBody = 4096

// isProtobuf returns true if the request's Content-Type indicates a
// protobuf payload. The firmware sends "application/x-protobuf".
func isProtobuf(r *http.Request) bool {
	ct, _, _ := strings.Cut(r.Header.Get("Content-Type"), ";")
	switch strings.TrimSpace(ct) {
	case wire.ContentType, "application/protobuf", "application/octet-stream":
		return true
	}
	return false
}

func readWire(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxWireBody))
}

func writeWire(w http.ResponseWriter, status int, b []byte) {
	w.Header().Set("Content-Type", wire.ContentType)
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
