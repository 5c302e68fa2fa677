package sysproxy

import (
	"fmt"
	"strings"
)

const gnomeProxySchema = "org.gnome.system.proxy"

// Enable sets the GNOME system proxy to the local mixed port.
func Enable(port int, bypass []string) error {
	for _, args := range enableCommands(port, bypass) {
		if err := run(args); err != nil {
			return fmt.Errorf("failed to enable system proxy: %w", err)
		}
	}
	return nil
}

// Disable switches the GNOME system proxy off.
func Disable() error {
	if err := run([]string{"gsettings", "set", gnomeProxySchema, "mode", "none"}); err != nil {
		return fmt.Errorf("failed to disable system proxy: %w", err)
	}
	return nil
}

func enableCommands(port int, bypass []string) [][]string {
	p := fmt.Sprint(port)
	cmds := [][]string{
		{"gsettings", "set", gnomeProxySchema, "mode", "manual"},
		{"gsettings", "set", gnomeProxySchema, "ignore-hosts", ignoreHosts(bypass)},
	}
	for _, sub := range []string{"socks", "http", "https"} {
		cmds = append(cmds,
			[]string{"gsettings", "set", gnomeProxySchema + "." + sub, "host", host},
			[]string{"gsettings", "set", gnomeProxySchema + "." + sub, "port", p},
		)
	}
	return cmds
}

// ignoreHosts renders bypass as a GVariant string array.
func ignoreHosts(bypass []string) string {
	quoted := make([]string, len(bypass))
	for i, h := range bypass {
		quoted[i] = "'" + strings.ReplaceAll(h, "'", "\\'") + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
