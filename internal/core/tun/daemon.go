package tun

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xjasonlyu/tun2socks/v2/engine"
)

// reconcileInterval is how often the daemon re-reads the request file.
const reconcileInterval = 500 * time.Millisecond

// Daemon owns the TUN device. It runs inside the privileged helper and
// converges the device towards whatever the request file asks for.
type Daemon struct {
	log     *logrus.Entry
	current *tunState
}

// NewDaemon returns a daemon that logs through log.
func NewDaemon(log *logrus.Entry) *Daemon {
	if log == nil {
		log = logrus.WithField("component", "tun")
	}
	return &Daemon{log: log}
}

// Serve reconciles until ctx is cancelled, then tears the device down.
func (d *Daemon) Serve(ctx context.Context) error {
	if err := checkPrivileges(); err != nil {
		return err
	}
	CleanupIfNeeded()

	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()
	defer d.stop()

	for {
		d.reconcile()
		select {
		case <-ctx.Done():
			d.log.Info("shutting down, restoring system state")
			return nil
		case <-ticker.C:
		}
	}
}

func (d *Daemon) reconcile() {
	req, err := readRequest()
	if err != nil {
		if !os.IsNotExist(err) {
			d.log.WithError(err).Warn("unreadable tun request")
		}
		return
	}

	switch {
	case !req.Enable && d.current != nil:
		d.stop()
	case req.Enable && d.current == nil:
		if err := d.start(req); err != nil {
			d.log.WithError(err).Error("failed to start tun device")
		}
	case req.Enable && !d.matches(req):
		d.stop()
		if err := d.start(req); err != nil {
			d.log.WithError(err).Error("failed to restart tun device")
		}
	}
}

func (d *Daemon) matches(req Request) bool {
	if d.current.SOCKSPort != req.SOCKSPort {
		return false
	}
	return slices.Equal(d.current.Bypass, bypassList(req.Bypass))
}

// bypassList adds the DNS servers that must stay off the tunnel.
func bypassList(addrs []string) []string {
	all := make([]string, 0, len(addrs)+1)
	all = append(all, addrs...)
	return append(all, tunDNS)
}

func (d *Daemon) start(req Request) error {
	log := d.log.WithField("socks_port", req.SOCKSPort)

	gateway, iface, err := detectGateway()
	if err != nil {
		return err
	}
	log = log.WithFields(logrus.Fields{"gateway": gateway, "iface": iface})

	before := listTUNInterfaces()
	engine.Insert(&engine.Key{
		Proxy:    fmt.Sprintf("socks5://127.0.0.1:%d", req.SOCKSPort),
		Device:   "tun://" + deviceHint,
		MTU:      DefaultMTU,
		LogLevel: "silent",
	})
	engine.Start()

	var device string
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if device = findNewTUNInterface(before); device != "" {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if device == "" {
		engine.Stop()
		return fmt.Errorf("failed to detect TUN device after creation")
	}
	log = log.WithField("device", device)

	st := &tunState{
		Gateway:    gateway,
		Interface:  iface,
		Bypass:     bypassList(req.Bypass),
		DeviceName: device,
		SOCKSPort:  req.SOCKSPort,
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"address", func() error { return configureTUNAddress(device, tunGateway) }},
		{"bypass routes", func() error { return addBypassRoutes(st.Bypass, gateway) }},
		{"default route", func() error { return setDefaultRouteTUN(device) }},
		{"dns", func() error { return configureDNS(device, tunDNS) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			restoreFromState(st)
			engine.Stop()
			return fmt.Errorf("failed to configure %s: %w", step.name, err)
		}
	}

	// The state file is what clients poll for, so it goes last.
	if err := saveState(*st); err != nil {
		restoreFromState(st)
		engine.Stop()
		return fmt.Errorf("failed to save TUN state: %w", err)
	}
	d.current = st
	log.Info("tun device ready")
	return nil
}

func (d *Daemon) stop() {
	if d.current == nil {
		return
	}
	restoreFromState(d.current)
	engine.Stop()
	removeState()
	d.log.WithField("device", d.current.DeviceName).Info("tun device removed")
	d.current = nil
}

func readRequest() (Request, error) {
	var req Request
	path, err := requestFilePath()
	if err != nil {
		return req, err
	}
	err = readJSON(path, &req)
	return req, err
}
