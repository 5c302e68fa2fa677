//go:build !windows

package helper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"duck/internal/core/tun"
	"duck/internal/paths"
	apperrors "duck/pkg/errors"
)

// DaemonCommand is the hidden subcommand that runs the helper.
const DaemonCommand = "helperd"

// Daemon manages `duck helperd` as a detached root process tracked by a PID
// file in the cache directory.
type Daemon struct {
	// Executable is the binary to launch. Defaults to os.Executable().
	Executable string
	// Elevator is the command prefix used to gain root, e.g. sudo -n.
	// Empty means pick one automatically.
	Elevator []string
	// StartTimeout bounds how long Install waits for the PID file.
	StartTimeout time.Duration
	// StopTimeout bounds how long Stop waits for the helper to exit.
	StopTimeout time.Duration
}

func pidFilePath() (string, error) {
	dir, err := paths.CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "helperd.pid"), nil
}

func logFilePath() (string, error) {
	dir, err := paths.CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "helperd.log"), nil
}

// IsAvailable reports whether the process named in the PID file is alive.
func (d *Daemon) IsAvailable(context.Context) error {
	path, err := pidFilePath()
	if err != nil {
		return err
	}
	pid, err := readPID(path)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrServiceUnavailable, err)
	}
	if !processAlive(pid) {
		return fmt.Errorf("%w: pid %d is not running", apperrors.ErrServiceUnavailable, pid)
	}
	return nil
}

// Install launches the helper with elevated privileges and waits until it
// has written its PID file.
func (d *Daemon) Install(ctx context.Context) error {
	exe := d.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return fmt.Errorf("failed to locate executable: %w", err)
		}
	}

	args := append(append([]string(nil), d.elevator()...), exe, DaemonCommand)
	cmd := exec.Command(args[0], args[1:]...)
	// Detach so the helper survives the CLI exiting.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if path, err := logFilePath(); err == nil {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			defer f.Close()
			paths.ChownToRealUser(path)
			cmd.Stdout = f
			cmd.Stderr = f
		}
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", strings.Join(args, " "), err)
	}
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	timeout := d.StartTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if d.IsAvailable(ctx) == nil {
			return nil
		}
		select {
		case err := <-exited:
			if err == nil {
				err = errors.New("exited before becoming available")
			}
			return fmt.Errorf("helper daemon: %w", err)
		case <-ctx.Done():
			return fmt.Errorf("helper daemon did not start: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Stop sends SIGTERM to the helper and waits until it has exited. It refuses
// while the TUN device is up or requested, since the helper owns the routes.
// A missing or stale PID file is not an error.
func (d *Daemon) Stop(ctx context.Context) error {
	if tun.Active() || tun.Requested() {
		return apperrors.ErrTunActive
	}

	path, err := pidFilePath()
	if err != nil {
		return err
	}
	pid, err := readPID(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !processAlive(pid) {
		os.Remove(path)
		return nil
	}

	if err := d.terminate(ctx, pid); err != nil {
		return fmt.Errorf("failed to stop helper (pid %d): %w", pid, err)
	}

	timeout := d.StopTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) || !processAlive(pid) {
			os.Remove(path)
			log.WithField("pid", pid).Info("helper daemon stopped")
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("helper daemon (pid %d) did not exit: %w", pid, ctx.Err())
		case <-ticker.C:
		}
	}
}

// terminate signals pid directly, falling back to the elevator when the
// helper belongs to root.
func (d *Daemon) terminate(ctx context.Context, pid int) error {
	err := unix.Kill(pid, unix.SIGTERM)
	if !errors.Is(err, unix.EPERM) {
		return err
	}
	args := append(append([]string(nil), d.elevator()...), "kill", "-TERM", strconv.Itoa(pid))
	out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (d *Daemon) elevator() []string {
	if len(d.Elevator) > 0 {
		return d.Elevator
	}
	if unix.Geteuid() == 0 {
		return nil
	}
	if os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" {
		if _, err := exec.LookPath("pkexec"); err == nil {
			return []string{"pkexec"}
		}
	}
	return []string{"sudo", "-n"}
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s", path)
	}
	return pid, nil
}

// processAlive sends signal 0 to pid. EPERM means the process exists but
// belongs to root, which is the normal case for the helper.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
