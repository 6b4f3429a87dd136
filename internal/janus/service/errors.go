package service

import (
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/auth"
)

// ErrValidation is the parent of every malformed-input error; handlers
// answer it with 400 and echo the message.
var ErrValidation = errors.New("validation failed")

var (
	ErrInvalidModuleID = fmt.Errorf("%w: module_id is required", ErrValidation)
	ErrInvalidPIN      = fmt.Errorf("%w: PIN must be 4 to 10 digits", ErrValidation)
	ErrSamePIN         = fmt.Errorf("%w: new PIN must differ from the current one", ErrValidation)
	ErrInvalidAction   = fmt.Errorf("%w: action must be lock or unlock", ErrValidation)
)

var (
	// Accounts
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrWeakCredential     = errors.New("password must be at least 6 characters")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotApproved        = errors.New("account is not approved")
	ErrPINMismatch        = errors.New("current PIN is incorrect")
	ErrNotFound           = errors.New("not found")

	// Lock
	ErrUnknownDevice     = errors.New("unknown lock device")
	ErrBusy              = errors.New("lock is busy with another command")
	ErrDeviceUnreachable = errors.New("could not reach the lock")

	// Face
	ErrInvalidImage   = errors.New("invalid image")
	ErrImageTooLarge  = fmt.Errorf("%w: image too large", ErrInvalidImage)
	ErrNoFaceDetected = errors.New("no face detected")
	ErrNoMatch        = errors.New("no matching face")
)

// ErrForbidden is shared with the guard so one mapping covers both.
var ErrForbidden = auth.ErrForbidden
