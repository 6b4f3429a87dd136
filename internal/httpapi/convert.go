package httpapi

import (
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

func userDTO(u store.UserRecord) types.UserDTO {
	return types.UserDTO{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		State:     u.State,
		HasPIN:    u.PINHash != "",
		CreatedAt: u.CreatedAt,
	}
}

func userDTOs(users []store.UserRecord) []types.UserDTO {
	out := make([]types.UserDTO, 0, len(users))
	for _, u := range users {
		out = append(out, userDTO(u))
	}
	return out
}

func commandDTO(c store.LockCommandRecord) *types.LockCommandDTO {
	return &types.LockCommandDTO{
		ID:           c.ID,
		DeviceID:     c.DeviceID,
		Action:       c.Action,
		State:        c.State,
		DispatchedAt: c.DispatchedAt,
		ResolvedAt:   c.ResolvedAt,
		Detail:       c.Detail,
	}
}

func logEntries(events []store.AccessEventRecord) []types.AccessLogEntry {
	out := make([]types.AccessLogEntry, 0, len(events))
	for _, ev := range events {
		e := types.AccessLogEntry{
			ID:        ev.Seq,
			UserID:    ev.UserID,
			Method:    ev.Method,
			Outcome:   ev.Outcome,
			Action:    ev.Action,
			DeviceID:  ev.DeviceID,
			Reason:    ev.Reason,
			Timestamp: ev.OccurredAt,
		}
		if ev.MatchedName != "" {
			name := ev.MatchedName
			e.MatchedName = &name
		}
		out = append(out, e)
	}
	return out
}
