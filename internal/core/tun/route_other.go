//go:build !linux && !darwin

package tun

import "errors"

const deviceHint = "tun0"

var errUnsupported = errors.New("tun mode is not supported on this platform")

func detectGateway() (string, string, error)   { return "", "", errUnsupported }
func configureTUNAddress(string, string) error { return errUnsupported }
func addBypassRoutes([]string, string) error   { return errUnsupported }
func removeBypassRoutes([]string) error        { return nil }
func setDefaultRouteTUN(string) error          { return errUnsupported }
func restoreDefaultRoute(string, string) error { return nil }
func configureDNS(string, string) error        { return errUnsupported }
func restoreDNS(string) error                  { return nil }
