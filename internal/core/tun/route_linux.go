package tun

import (
	"fmt"
	"os/exec"
	"strings"
)

const deviceHint = "tun0"

// detectGateway parses `ip route show default`, e.g.
// "default via 192.168.1.1 dev wlan0 proto dhcp metric 600".
func detectGateway() (gateway, iface string, err error) {
	out, err := exec.Command("ip", "route", "show", "default").Output()
	if err != nil {
		return "", "", fmt.Errorf("failed to detect default gateway: %w", err)
	}
	return parseDefaultRoute(string(out))
}

func parseDefaultRoute(out string) (gateway, iface string, err error) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] != "default" {
			continue
		}
		for i := 1; i+1 < len(fields); i++ {
			switch fields[i] {
			case "via":
				gateway = fields[i+1]
			case "dev":
				iface = fields[i+1]
			}
		}
		if gateway != "" && iface != "" {
			return gateway, iface, nil
		}
	}
	return "", "", fmt.Errorf("could not parse default gateway (gateway=%q, interface=%q)", gateway, iface)
}

func configureTUNAddress(device, addr string) error {
	if err := run("ip", "addr", "replace", addr+"/15", "dev", device); err != nil {
		return fmt.Errorf("failed to configure %s: %w", device, err)
	}
	if err := run("ip", "link", "set", "dev", device, "up"); err != nil {
		return fmt.Errorf("failed to bring up %s: %w", device, err)
	}
	return nil
}

func addBypassRoutes(addrs []string, gateway string) error {
	for _, addr := range addrs {
		if err := run("ip", "route", "replace", addr+"/32", "via", gateway); err != nil {
			return fmt.Errorf("failed to add bypass route for %s: %w", addr, err)
		}
	}
	return nil
}

func removeBypassRoutes(addrs []string) error {
	var firstErr error
	for _, addr := range addrs {
		if err := run("ip", "route", "del", addr+"/32"); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to remove bypass route for %s: %w", addr, err)
		}
	}
	return firstErr
}

func setDefaultRouteTUN(device string) error {
	if err := run("ip", "route", "replace", "0.0.0.0/1", "dev", device); err != nil {
		return fmt.Errorf("failed to add 0/1 TUN route: %w", err)
	}
	if err := run("ip", "route", "replace", "128.0.0.0/1", "dev", device); err != nil {
		run("ip", "route", "del", "0.0.0.0/1", "dev", device)
		return fmt.Errorf("failed to add 128/1 TUN route: %w", err)
	}
	return nil
}

// restoreDefaultRoute drops the /1 overlays. The kernel removes them with
// the device anyway, so failures here only matter after a crash.
func restoreDefaultRoute(_, device string) error {
	var firstErr error
	for _, dst := range []string{"0.0.0.0/1", "128.0.0.0/1"} {
		args := []string{"route", "del", dst}
		if device != "" {
			args = append(args, "dev", device)
		}
		if err := run("ip", args...); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// configureDNS points systemd-resolved at server for the TUN link and makes
// it the catch-all routing domain.
func configureDNS(device, server string) error {
	if _, err := exec.LookPath("resolvectl"); err != nil {
		return nil
	}
	if err := run("resolvectl", "dns", device, server); err != nil {
		return fmt.Errorf("failed to set DNS on %s: %w", device, err)
	}
	if err := run("resolvectl", "domain", device, "~."); err != nil {
		return fmt.Errorf("failed to set DNS domain on %s: %w", device, err)
	}
	return nil
}

func restoreDNS(device string) error {
	if device == "" {
		return nil
	}
	if _, err := exec.LookPath("resolvectl"); err != nil {
		return nil
	}
	return run("resolvectl", "revert", device)
}
