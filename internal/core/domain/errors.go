package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPollNotFound       = errors.New("poll not found")
	ErrAlreadyExists      = errors.New("poll already exists")
	ErrIDCollision        = errors.New("poll id collision")
	ErrInvalidInput       = errors.New("invalid input")
	ErrCorrupt            = errors.New("stored poll record is corrupt")
	ErrUnsupportedVersion = errors.New("unsupported poll record version")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrTransformFailed    = errors.New("poll update rejected")
)

// InvalidInputf wraps ErrInvalidInput with a caller-facing reason.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
