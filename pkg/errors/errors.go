package errors

import (
	"errors"
	"fmt"
)

// Common error types
var (
	// Engine errors
	ErrEngineNotRunning = errors.New("engine is not running")
	ErrSelectorNotFound = errors.New("selector group not found")

	// Mode errors
	ErrModeWriteFailed = errors.New("failed to persist connection mode")

	// Service errors
	ErrServiceUnavailable   = errors.New("privileged helper is not available")
	ErrServiceInstallFailed = errors.New("failed to install privileged helper")
	ErrNotRoot              = errors.New("operation requires root privileges")
	ErrTunActive            = errors.New("tun device is active, disconnect first")

	// Settings errors
	ErrSettingNotFound = errors.New("setting not found")
	ErrSettingInvalid  = errors.New("invalid setting")

	// Connection errors
	ErrPatchFailed = errors.New("failed to apply connection flags")
)

// ServiceError represents a failure of the privileged helper pre-flight.
type ServiceError struct {
	Mode string
	Err  error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("helper service for %s mode: %v", e.Mode, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// PatchError represents a failed configuration patch.
type PatchError struct {
	Field string
	Err   error
}

func (e *PatchError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("patch %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("patch: %v", e.Err)
}

func (e *PatchError) Unwrap() error {
	return e.Err
}

// SettingError represents a settings key that could not be read or parsed.
type SettingError struct {
	Key string
	Err error
}

func (e *SettingError) Error() string {
	return fmt.Sprintf("setting '%s': %v", e.Key, e.Err)
}

func (e *SettingError) Unwrap() error {
	return e.Err
}
