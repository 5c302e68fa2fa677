package tun

import "errors"

func checkPrivileges() error {
	return errors.New("tun mode is not supported on windows")
}
