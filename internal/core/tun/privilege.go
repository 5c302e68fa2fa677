//go:build !windows

package tun

import (
	"golang.org/x/sys/unix"

	apperrors "duck/pkg/errors"
)

// checkPrivileges returns an error if not running as root.
func checkPrivileges() error {
	if unix.Geteuid() != 0 {
		return apperrors.ErrNotRoot
	}
	return nil
}
