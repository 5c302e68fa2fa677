package paths

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

const appName = "duck"

// HomeDir returns the real user's home directory, even when running under sudo.
// The helper daemon runs as root but must share PID, request and config files
// with the unprivileged client, so both sides resolve the invoking user's home.
func HomeDir() (string, error) {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		u, err := user.Lookup(sudoUser)
		if err == nil {
			return u.HomeDir, nil
		}
	}
	if pkexecUID := os.Getenv("PKEXEC_UID"); pkexecUID != "" {
		u, err := user.LookupId(pkexecUID)
		if err == nil {
			return u.HomeDir, nil
		}
	}
	return os.UserHomeDir()
}

// RealUser returns the UID and GID of the real invoking user when running
// under sudo (via SUDO_UID / SUDO_GID). Returns ok=false when not under sudo.
func RealUser() (uid, gid int, ok bool) {
	sudoUID := os.Getenv("SUDO_UID")
	if sudoUID == "" {
		return 0, 0, false
	}
	u, err := strconv.ParseInt(sudoUID, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	var g int64
	if sudoGID := os.Getenv("SUDO_GID"); sudoGID != "" {
		g, _ = strconv.ParseInt(sudoGID, 10, 64)
	}
	return int(u), int(g), true
}

// ChownToRealUser changes the owner of path to the real invoking user when
// running under sudo. It is a no-op when not under sudo.
func ChownToRealUser(path string) {
	if uid, gid, ok := RealUser(); ok {
		os.Chown(path, uid, gid)
	}
}

func ensure(parts ...string) (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(append([]string{home}, parts...)...)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	ChownToRealUser(dir)
	return dir, nil
}

// CacheDir returns ~/.cache/duck, creating it if needed. The helper daemon
// keeps its PID, request, state and log files here.
func CacheDir() (string, error) {
	return ensure(".cache", appName)
}

// DataDir returns ~/.local/share/duck, creating it if needed.
func DataDir() (string, error) {
	return ensure(".local", "share", appName)
}

// ConfigDir returns ~/.config/duck, creating it if needed. duck.yaml lives here.
func ConfigDir() (string, error) {
	return ensure(".config", appName)
}
