package actuator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/wire"
)

// maxAckBody caps the module's reply. An encoded Ack is a few dozen bytes.
const maxAckBody = 4096

// HTTP drives a module over its local control endpoint:
// POST {baseURL}/command with a protobuf-wire Command, answered by an Ack.
type HTTP struct {
	baseURL string
	client  *http.Client
}

// NewHTTP returns an HTTP actuator. client may be nil; deadlines come from
// the ctx passed to Send.
func NewHTTP(baseURL string, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTP{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (h *HTTP) Send(ctx context.Context, cmd Command) (Ack, error) {
	body, err := wire.MarshalCommand(cmd)
	if err != nil {
		return Ack{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/command", bytes.NewReader(body))
	if err != nil {
		return Ack{}, fmt.Errorf("build command request: %w", err)
	}
	req.Header.Set("Content-Type", wire.ContentType)
	req.Header.Set("Accept", wire.ContentType)

	resp, err := h.client.Do(req)
	if err != nil {
		return Ack{}, fmt.Errorf("send command to %s: %w", cmd.DeviceID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAckBody))
	if err != nil {
		return Ack{}, fmt.Errorf("read ack from %s: %w", cmd.DeviceID, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Ack{}, fmt.Errorf("module %s answered %s", cmd.DeviceID, resp.Status)
	}

	ack, err := wire.UnmarshalAck(raw)
	if err != nil {
		return Ack{}, fmt.Errorf("decode ack from %s: %w", cmd.DeviceID, err)
	}
	if ack.CommandID != cmd.ID {
		return Ack{}, fmt.Errorf("%w: sent %s, got %q", ErrAckMismatch, cmd.ID, ack.CommandID)
	}
	return ack, nil
}
