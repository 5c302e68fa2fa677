package tun

import (
	"context"
	"fmt"
	"os"
	"time"
)

// pollInterval is how often Enable/Disable check on the helper daemon.
const pollInterval = 200 * time.Millisecond

// Enable asks the helper daemon to bring the TUN device up in front of the
// SOCKS5 proxy on socksPort and waits until it reports ready.
func Enable(ctx context.Context, socksPort int, bypass []string) error {
	path, err := requestFilePath()
	if err != nil {
		return fmt.Errorf("failed to get request file path: %w", err)
	}
	req := Request{Enable: true, SOCKSPort: socksPort, Bypass: bypass}
	if err := writeJSON(path, req); err != nil {
		return err
	}
	err = waitFor(ctx, func() bool {
		st, err := loadState()
		return err == nil && st.SOCKSPort == socksPort
	})
	if err != nil {
		// Withdraw the request so the daemon does not bring the device up
		// after the caller has given up.
		if werr := writeJSON(path, Request{Enable: false}); werr != nil {
			return fmt.Errorf("%w (withdrawing request: %v)", err, werr)
		}
	}
	return err
}

// Disable asks the helper daemon to tear the TUN device down and waits
// until the state file is gone.
func Disable(ctx context.Context) error {
	path, err := requestFilePath()
	if err != nil {
		return fmt.Errorf("failed to get request file path: %w", err)
	}
	if err := writeJSON(path, Request{Enable: false}); err != nil {
		return err
	}
	return waitFor(ctx, func() bool { return !Active() })
}

// Active reports whether the helper daemon has a configured TUN device.
func Active() bool {
	path, err := stateFilePath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Requested reports whether an enable request is pending or in force.
func Requested() bool {
	req, err := readRequest()
	return err == nil && req.Enable
}

func waitFor(ctx context.Context, done func() bool) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if done() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for helper daemon: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
