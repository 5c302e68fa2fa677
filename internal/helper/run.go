//go:build !windows

package helper

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"duck/internal/core/tun"
	"duck/internal/paths"
)

// Run is the body of `duck helperd`. It records its PID, then hands control
// to the TUN daemon until ctx is cancelled.
func Run(ctx context.Context) error {
	path, err := pidFilePath()
	if err != nil {
		return err
	}
	if pid, err := readPID(path); err == nil && pid != os.Getpid() && processAlive(pid) {
		return fmt.Errorf("helper daemon already running (pid %d)", pid)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	paths.ChownToRealUser(path)
	defer os.Remove(path)

	log.WithField("pid", os.Getpid()).Info("helper daemon started")
	d := tun.NewDaemon(logrus.WithField("component", "tun"))
	if err := d.Serve(ctx); err != nil {
		return fmt.Errorf("tun daemon: %w", err)
	}
	log.Info("helper daemon stopped")
	return nil
}
