package types

import "time"

type Role string

const (
	RoleResident Role = "resident"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool { return r == RoleResident || r == RoleAdmin }

// AccountState is the approval state of a user. Approved and rejected are
// terminal and only reachable from pending.
type AccountState string

const (
	StatePending  AccountState = "pending"
	StateApproved AccountState = "approved"
	StateRejected AccountState = "rejected"
)

type SignupRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

type VerifyPasswordRequest struct {
	UserID   string `json:"userId" validate:"required"`
	Password string `json:"password" validate:"required,max=72"`
}

type UpdatePasswordRequest struct {
	UserID      string `json:"userId" validate:"required"`
	NewPassword string `json:"newPassword" validate:"max=72"`
}

type UpdatePINRequest struct {
	OldPIN string `json:"oldPin" validate:"max=10"`
	NewPIN string `json:"newPin" validate:"required"`
}

type SetPINRequest struct {
	NewPIN string `json:"newPin" validate:"required"`
}

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// SessionUser is the subset of a user returned at login.
type SessionUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

type LoginResponse struct {
	Success   bool        `json:"success"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      SessionUser `json:"user"`
}

type UserDTO struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Role      Role         `json:"role"`
	State     AccountState `json:"state"`
	HasPIN    bool         `json:"has_pin"`
	CreatedAt time.Time    `json:"created_at"`
}

type UsersResponse struct {
	Success bool      `json:"success"`
	Users   []UserDTO `json:"users"`
}
