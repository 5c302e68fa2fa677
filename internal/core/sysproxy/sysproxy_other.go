//go:build !linux && !darwin

package sysproxy

import "errors"

var errUnsupported = errors.New("system proxy is not supported on this platform")

// Enable is unsupported on this platform.
func Enable(int, []string) error { return errUnsupported }

// Disable is a no-op on this platform.
func Disable() error { return nil }
