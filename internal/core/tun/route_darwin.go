package tun

import (
	"fmt"
	"os/exec"
	"strings"
)

const deviceHint = "utun99"

// detectGateway reads the current default gateway and interface.
func detectGateway() (gateway, iface string, err error) {
	out, err := exec.Command("route", "-n", "get", "default").Output()
	if err != nil {
		return "", "", fmt.Errorf("failed to detect default gateway: %w", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		switch key {
		case "gateway":
			gateway = strings.TrimSpace(value)
		case "interface":
			iface = strings.TrimSpace(value)
		}
	}
	if gateway == "" || iface == "" {
		return "", "", fmt.Errorf("could not parse default gateway (gateway=%q, interface=%q)", gateway, iface)
	}
	return gateway, iface, nil
}

// configureTUNAddress gives the utun device a point-to-point address so
// routes through it have a next hop.
func configureTUNAddress(device, addr string) error {
	if err := run("ifconfig", device, addr, addr, "up"); err != nil {
		return fmt.Errorf("failed to configure %s: %w", device, err)
	}
	return nil
}

func addBypassRoutes(addrs []string, gateway string) error {
	for _, addr := range addrs {
		if err := run("route", "add", "-host", addr, gateway); err != nil {
			return fmt.Errorf("failed to add bypass route for %s: %w", addr, err)
		}
	}
	return nil
}

func removeBypassRoutes(addrs []string) error {
	var firstErr error
	for _, addr := range addrs {
		if err := run("route", "delete", "-host", addr); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to remove bypass route for %s: %w", addr, err)
		}
	}
	return firstErr
}

// setDefaultRouteTUN overlays 0/1 and 128/1 on the TUN gateway. Both are
// more specific than the real default route, which stays untouched.
func setDefaultRouteTUN(string) error {
	if err := run("route", "add", "0/1", tunGateway); err != nil {
		return fmt.Errorf("failed to add 0/1 TUN route: %w", err)
	}
	if err := run("route", "add", "128/1", tunGateway); err != nil {
		run("route", "delete", "0/1")
		return fmt.Errorf("failed to add 128/1 TUN route: %w", err)
	}
	return nil
}

func restoreDefaultRoute(gateway, _ string) error {
	run("route", "delete", "0/1")
	run("route", "delete", "128/1")
	if err := run("route", "-n", "get", "default"); err == nil {
		return nil
	}
	if err := run("route", "add", "default", gateway); err != nil {
		return fmt.Errorf("failed to restore default route via %s: %w", gateway, err)
	}
	return nil
}

func configureDNS(_, server string) error {
	services, err := activeNetworkServices()
	if err != nil {
		return err
	}
	for _, svc := range services {
		if err := run("networksetup", "-setdnsservers", svc, server); err != nil {
			return fmt.Errorf("failed to set DNS on %s: %w", svc, err)
		}
	}
	return nil
}

func restoreDNS(string) error {
	services, err := activeNetworkServices()
	if err != nil {
		return err
	}
	var firstErr error
	for _, svc := range services {
		if err := run("networksetup", "-setdnsservers", svc, "empty"); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to restore DNS on %s: %w", svc, err)
		}
	}
	return firstErr
}

func activeNetworkServices() ([]string, error) {
	out, err := exec.Command("networksetup", "-listallnetworkservices").Output()
	if err != nil {
		return nil, err
	}
	var services []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "An asterisk") || strings.HasPrefix(line, "*") {
			continue
		}
		services = append(services, line)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("no active network services found")
	}
	return services, nil
}
