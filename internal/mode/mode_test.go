package mode

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw  string
		want ConnectionMode
	}{
		{"system", System},
		{"tun", Tun},
		{"combine", Combine},
		{"", System},
		{"TUN", System},
		{"Combine", System},
		{" tun", System},
		{"vpn", System},
	}
	for _, tt := range tests {
		if got := Parse(tt.raw); got != tt.want {
			t.Errorf("Parse(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestConnectionMode_Flags(t *testing.T) {
	tests := []struct {
		mode      ConnectionMode
		wantTun   bool
		wantProxy bool
		lower     string
	}{
		{System, false, true, "system"},
		{Tun, true, false, "tun"},
		{Combine, true, true, "combine"},
	}
	for _, tt := range tests {
		t.Run(tt.lower, func(t *testing.T) {
			if tt.mode.UsesTun() != tt.wantTun {
				t.Errorf("UsesTun() = %v, want %v", tt.mode.UsesTun(), tt.wantTun)
			}
			if tt.mode.UsesSystemProxy() != tt.wantProxy {
				t.Errorf("UsesSystemProxy() = %v, want %v", tt.mode.UsesSystemProxy(), tt.wantProxy)
			}
			if tt.mode.Lower() != tt.lower {
				t.Errorf("Lower() = %q, want %q", tt.mode.Lower(), tt.lower)
			}
			if Parse(tt.mode.Lower()) != tt.mode {
				t.Errorf("Parse(Lower()) does not round-trip for %v", tt.mode)
			}
		})
	}
}

func TestConnectionMode_Next(t *testing.T) {
	if System.Next() != Tun || Tun.Next() != Combine || Combine.Next() != System {
		t.Fatal("Next() does not cycle System -> Tun -> Combine -> System")
	}
}

func TestConnectionMode_UnmarshalRejectsUnknown(t *testing.T) {
	var cfg DuckConfig
	if err := yaml.Unmarshal([]byte("connection_mode: tun\n"), &cfg); err == nil {
		t.Fatal("expected lower-case value to be rejected on read")
	}
}
