package helper

import (
	"context"
	"errors"
	"fmt"

	apperrors "duck/pkg/errors"
)

// DaemonCommand is the hidden subcommand that runs the helper.
const DaemonCommand = "helperd"

var errUnsupported = errors.New("the helper daemon is not supported on windows")

// Daemon is unavailable on windows.
type Daemon struct{}

func (d *Daemon) IsAvailable(context.Context) error {
	return fmt.Errorf("%w: %v", apperrors.ErrServiceUnavailable, errUnsupported)
}

func (d *Daemon) Install(context.Context) error { return errUnsupported }

func (d *Daemon) Stop(context.Context) error { return errUnsupported }

// Run is unsupported on windows.
func Run(context.Context) error { return errUnsupported }
