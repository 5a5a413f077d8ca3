package tracking

import "errors"

var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrNoEvent          = errors.New("event not found")
	ErrInvalidConfig    = errors.New("invalid tracking config")
	ErrNotOwner         = errors.New("device is tracking for another user")
)
