package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"duck/internal/connection"
	"duck/internal/events"
)

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Connect when disconnected, disconnect when connected",
	Long: `Toggle routing through the engine using the persisted mode.

Tun and combine need the privileged helper; it is started on demand and may
prompt for elevation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		return runTransition(cmd.Context(), timeout, appInstance.Orchestrator.Toggle)
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Disable both the system proxy and the TUN device",
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		return runTransition(cmd.Context(), timeout, appInstance.Orchestrator.Disconnect)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connection status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		cfg := appInstance.Settings.Latest()
		state := events.StateDisconnected
		if appInstance.Connectivity.IsConnected() {
			state = events.StateConnected
		}

		fmt.Printf("Connection Status\n")
		fmt.Printf("═════════════════\n\n")
		fmt.Printf("State:         %s\n", state)
		fmt.Printf("Mode:          %s\n", appInstance.Modes.Get().Lower())
		fmt.Printf("System proxy:  %s\n", onOff(cfg.EnableSystemProxy))
		fmt.Printf("TUN:           %s\n", onOff(cfg.EnableTunMode))
		fmt.Printf("Mixed port:    %d\n", cfg.MixedPort)

		if err := appInstance.Helper.IsAvailable(ctx); err != nil {
			fmt.Printf("Helper:        not running\n")
		} else {
			fmt.Printf("Helper:        running\n")
		}

		if v, err := appInstance.Engine.Version(ctx); err != nil {
			fmt.Printf("Engine:        unreachable at %s\n", cfg.ControllerAddr)
		} else {
			fmt.Printf("Engine:        %s (%s)\n", v, cfg.ControllerAddr)
		}
		if sel := appInstance.Selector.GetSelector(ctx); sel != nil {
			fmt.Printf("Proxy:         %s / %s\n", sel.Name, sel.CurrentProxy)
		}
		return nil
	},
}

// runTransition starts a connection task, echoes state events while it runs
// and waits for it to finish.
func runTransition(ctx context.Context, timeout time.Duration, start func(context.Context) *connection.Task) error {
	unsubscribe := appInstance.Bus.Subscribe(func(ev events.Event) error {
		if ev.Name != events.ConnectionStateChanged {
			return nil
		}
		var payload events.ConnectionState
		if err := ev.Decode(&payload); err != nil {
			return err
		}
		fmt.Printf("→ %s\n", payload.State)
		return nil
	})
	defer unsubscribe()

	task := start(ctx)
	select {
	case <-task.Done():
		return task.Wait()
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %s waiting for the transition", timeout)
	}
}

func onOff(b *bool) string {
	if b != nil && *b {
		return "on"
	}
	return "off"
}

func init() {
	toggleCmd.Flags().Duration("timeout", 60*time.Second, "how long to wait for the transition")
	disconnectCmd.Flags().Duration("timeout", 30*time.Second, "how long to wait for the transition")

	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(statusCmd)
}
