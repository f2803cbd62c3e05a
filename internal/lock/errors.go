package lock

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDevice is returned when an operation or event references an unmanaged lock.
	ErrUnknownDevice = errors.New("unknown device")
	// ErrUnsupportedEvent is returned for push events of an unrecognized type.
	ErrUnsupportedEvent = errors.New("unsupported event type")
	// ErrRefreshInProgress is returned while a battery refresh cooldown is pending.
	ErrRefreshInProgress = errors.New("refresh already in progress")
	// ErrCommandFailed wraps a failed remote lock/unlock command.
	ErrCommandFailed = errors.New("remote command failed")
	// ErrStatusUnknown is returned when a forced status refresh cannot determine the lock state.
	ErrStatusUnknown = errors.New("lock status unknown")
)

// ValidationError describes malformed input rejected before any remote call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "validation error"
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
