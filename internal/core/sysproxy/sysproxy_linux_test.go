package sysproxy

import (
	"strings"
	"testing"
)

func TestIgnoreHosts(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, "[]"},
		{[]string{"localhost"}, "['localhost']"},
		{[]string{"localhost", "*.local"}, "['localhost', '*.local']"},
	}
	for _, tt := range tests {
		if got := ignoreHosts(tt.in); got != tt.want {
			t.Errorf("ignoreHosts(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestEnableCommandsUseMixedPort(t *testing.T) {
	cmds := enableCommands(7891, []string{"localhost"})

	if got := strings.Join(cmds[0], " "); got != "gsettings set org.gnome.system.proxy mode manual" {
		t.Errorf("first command = %q", got)
	}
	ports := 0
	for _, c := range cmds {
		if c[len(c)-2] == "port" {
			ports++
			if c[len(c)-1] != "7891" {
				t.Errorf("%v uses wrong port", c)
			}
		}
	}
	if ports != 3 {
		t.Errorf("got %d port commands, want 3", ports)
	}
}
