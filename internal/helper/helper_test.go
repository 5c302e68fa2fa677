package helper

import (
	"context"
	"errors"
	"testing"

	"duck/internal/mode"
	apperrors "duck/pkg/errors"
)

type fakeManager struct {
	available             bool
	installMakesAvailable bool
	installErr            error
	checks                int
	installs              int
}

func (f *fakeManager) IsAvailable(context.Context) error {
	f.checks++
	if f.available {
		return nil
	}
	return apperrors.ErrServiceUnavailable
}

func (f *fakeManager) Install(context.Context) error {
	f.installs++
	if f.installErr != nil {
		return f.installErr
	}
	f.available = f.installMakesAvailable
	return nil
}

func TestEnsureAvailableFor(t *testing.T) {
	tests := []struct {
		name         string
		mode         mode.ConnectionMode
		manager      *fakeManager
		wantChecks   int
		wantInstalls int
		wantErr      bool
	}{
		{name: "system skips helper", mode: mode.System, manager: &fakeManager{}},
		{name: "tun available", mode: mode.Tun, manager: &fakeManager{available: true}, wantChecks: 1},
		{name: "combine available", mode: mode.Combine, manager: &fakeManager{available: true}, wantChecks: 1},
		{
			name:         "tun installs once",
			mode:         mode.Tun,
			manager:      &fakeManager{installMakesAvailable: true},
			wantChecks:   1,
			wantInstalls: 1,
		},
		{
			name:         "install failure",
			mode:         mode.Combine,
			manager:      &fakeManager{installErr: errors.New("sudo: a password is required")},
			wantChecks:   1,
			wantInstalls: 1,
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewGate(tt.manager).EnsureAvailableFor(context.Background(), tt.mode)

			if tt.manager.checks != tt.wantChecks || tt.manager.installs != tt.wantInstalls {
				t.Errorf("checks=%d installs=%d, want %d/%d", tt.manager.checks, tt.manager.installs, tt.wantChecks, tt.wantInstalls)
			}
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var svcErr *apperrors.ServiceError
			if !errors.As(err, &svcErr) {
				t.Fatalf("err = %v, want *ServiceError", err)
			}
			if svcErr.Mode != tt.mode.Lower() {
				t.Errorf("Mode = %q, want %q", svcErr.Mode, tt.mode.Lower())
			}
			if !errors.Is(err, apperrors.ErrServiceInstallFailed) {
				t.Errorf("err = %v, want ErrServiceInstallFailed", err)
			}
		})
	}
}
