package tun

import (
	"fmt"
	"net"
	"os/exec"
	"strings"
)

// listTUNInterfaces returns the names of TUN-like interfaces currently present.
func listTUNInterfaces() map[string]bool {
	found := make(map[string]bool)
	ifaces, err := net.Interfaces()
	if err != nil {
		return found
	}
	for _, ifc := range ifaces {
		if strings.HasPrefix(ifc.Name, "utun") || strings.HasPrefix(ifc.Name, "tun") {
			found[ifc.Name] = true
		}
	}
	return found
}

// findNewTUNInterface returns the first TUN interface that was not in before.
func findNewTUNInterface(before map[string]bool) string {
	for name := range listTUNInterfaces() {
		if !before[name] {
			return name
		}
	}
	return ""
}

func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
