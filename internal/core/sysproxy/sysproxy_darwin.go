package sysproxy

import (
	"fmt"
	"os/exec"
	"strings"
)

// Enable points SOCKS, HTTP and HTTPS proxies of every active network
// service at the local mixed port.
func Enable(port int, bypass []string) error {
	services, err := activeNetworkServices()
	if err != nil {
		return fmt.Errorf("failed to detect network services: %w", err)
	}
	for _, svc := range services {
		for _, args := range enableCommands(svc, port, bypass) {
			if err := run(args); err != nil {
				return fmt.Errorf("failed to enable system proxy on %s: %w", svc, err)
			}
		}
	}
	return nil
}

// Disable turns the proxies off on every active network service.
func Disable() error {
	services, err := activeNetworkServices()
	if err != nil {
		return fmt.Errorf("failed to detect network services: %w", err)
	}

	var firstErr error
	for _, svc := range services {
		for _, flag := range []string{"-setsocksfirewallproxystate", "-setwebproxystate", "-setsecurewebproxystate"} {
			if err := run([]string{"networksetup", flag, svc, "off"}); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func enableCommands(svc string, port int, bypass []string) [][]string {
	p := fmt.Sprint(port)
	cmds := [][]string{
		{"networksetup", "-setsocksfirewallproxy", svc, host, p},
		{"networksetup", "-setsocksfirewallproxystate", svc, "on"},
		{"networksetup", "-setwebproxy", svc, host, p},
		{"networksetup", "-setwebproxystate", svc, "on"},
		{"networksetup", "-setsecurewebproxy", svc, host, p},
		{"networksetup", "-setsecurewebproxystate", svc, "on"},
	}
	if len(bypass) > 0 {
		cmds = append(cmds, append([]string{"networksetup", "-setproxybypassdomains", svc}, bypass...))
	}
	return cmds
}

// activeNetworkServices returns every network service not marked disabled.
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
