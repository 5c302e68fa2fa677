package tun

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"duck/internal/paths"
)

// tunState is written once the device is fully configured and removed on
// teardown. Its presence means "TUN is up".
type tunState struct {
	Gateway    string   `json:"gateway"`
	Interface  string   `json:"interface"`
	Bypass     []string `json:"bypass"`
	DeviceName string   `json:"device_name"`
	SOCKSPort  int      `json:"socks_port"`
}

func cacheFile(name string) (string, error) {
	dir, err := paths.CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func stateFilePath() (string, error)   { return cacheFile("tun.state") }
func requestFilePath() (string, error) { return cacheFile("tun.request") }

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	paths.ChownToRealUser(tmp)
	return os.Rename(tmp, path)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func saveState(st tunState) error {
	path, err := stateFilePath()
	if err != nil {
		return fmt.Errorf("failed to get state file path: %w", err)
	}
	return writeJSON(path, st)
}

func loadState() (*tunState, error) {
	path, err := stateFilePath()
	if err != nil {
		return nil, err
	}
	var st tunState
	if err := readJSON(path, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func removeState() {
	if path, err := stateFilePath(); err == nil {
		os.Remove(path)
	}
}

// restoreFromState undoes routes and DNS recorded in st. Errors are
// ignored: some of the changes may never have been made.
func restoreFromState(st *tunState) {
	restoreDNS(st.DeviceName)
	if st.Gateway != "" {
		restoreDefaultRoute(st.Gateway, st.DeviceName)
	}
	if len(st.Bypass) > 0 {
		removeBypassRoutes(st.Bypass)
	}
}

// CleanupIfNeeded restores routes left behind by a helper that died without
// tearing the device down. The helper calls it on startup.
func CleanupIfNeeded() {
	st, err := loadState()
	if err != nil {
		if !os.IsNotExist(err) {
			removeState()
		}
		return
	}
	restoreFromState(st)
	removeState()
}
