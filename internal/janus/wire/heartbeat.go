package wire

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

// Heartbeat request fields:
//
//	1 module_id        string
//	2 firmware_version string
//	3 uptime_s         varint
//	4 seq              varint
//	5 free_heap_bytes  varint
//	6 bolt_locked      bool (optional)
//	7 door_closed      bool (optional)
//	8 rssi_dbm         sint32 (optional)
//	9 ip               string
func UnmarshalHeartbeat(b []byte) (types.HeartbeatRequest, error) {
	var req types.HeartbeatRequest
	err := walk(b, func(f field) error {
		if f.typ == protowire.BytesType {
			switch f.num {
			case 1:
				req.ModuleID = string(f.bytes)
			case 2:
				req.FirmwareVersion = string(f.bytes)
			case 9:
				req.IP = string(f.bytes)
			}
			return nil
		}
		if f.typ != protowire.VarintType {
			return nil
		}
		switch f.num {
		case 3:
			req.UptimeSeconds = f.varint
		case 4:
			req.Sequence = f.varint
		case 5:
			req.FreeHeapBytes = f.varint
		case 6:
			v := protowire.DecodeBool(f.varint)
			req.BoltLocked = &v
		case 7:
			v := protowire.DecodeBool(f.varint)
			req.DoorClosed = &v
		case 8:
			v := int(int32(protowire.DecodeZigZag(f.varint)))
			req.RSSIDbm = &v
		}
		return nil
	})
	return req, err
}

// MarshalHeartbeat is the firmware side of UnmarshalHeartbeat; the
// server only needs it for tests and the simulator.
func MarshalHeartbeat(req types.HeartbeatRequest) []byte {
	var b []byte
	b = appendString(b, 1, req.ModuleID)
	b = appendString(b, 2, req.FirmwareVersion)
	b = appendVarint(b, 3, req.UptimeSeconds)
	b = appendVarint(b, 4, req.Sequence)
	b = appendVarint(b, 5, req.FreeHeapBytes)
	b = appendOptBool(b, 6, req.BoltLocked)
	b = appendOptBool(b, 7, req.DoorClosed)
	if req.RSSIDbm != nil {
		b = protowire.AppendTag(b, 8, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(*req.RSSIDbm)))
	}
	b = appendString(b, 9, req.IP)
	return b
}

// Heartbeat response fields:
//
//	1 ok          bool
//	2 known       bool
//	3 module_id   string
//	4 server_time string
func MarshalHeartbeatResponse(r types.HeartbeatResponse) []byte {
	var b []byte
	b = appendBool(b, 1, r.OK)
	b = appendBool(b, 2, r.Known)
	b = appendString(b, 3, r.ModuleID)
	b = appendString(b, 4, r.ServerTime)
	return b
}
