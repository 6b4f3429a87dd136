package types

type HeartbeatRequest struct {
	ModuleID        string `json:"module_id" validate:"required,max=64"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
	UptimeSeconds   uint64 `json:"uptime_s,omitempty"`
	Sequence        uint64 `json:"seq,omitempty"`
	FreeHeapBytes   uint64 `json:"free_heap_bytes,omitempty"`
	BoltLocked      *bool  `json:"bolt_locked,omitempty"`
	DoorClosed      *bool  `json:"door_closed,omitempty"`
	RSSIDbm         *int   `json:"rssi_dbm,omitempty"`
	IP              string `json:"ip,omitempty"`
}

type HeartbeatResponse struct {
	OK         bool   `json:"ok"`
	Known      bool   `json:"known"`
	ModuleID   string `json:"module_id"`
	ServerTime string `json:"server_time"`
}
