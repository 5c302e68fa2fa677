// Package sysproxy points the operating system's proxy settings at the
// engine's local mixed port.
package sysproxy

import (
	"fmt"
	"os/exec"
	"strings"
)

// host is where the engine's mixed port listens.
const host = "127.0.0.1"

func run(args []string) error {
	cmd := exec.Command(args[0], args[1:]...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return nil
}
