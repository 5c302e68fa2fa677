package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"duck/internal/core/tun"
	"duck/internal/helper"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the privileged helper that owns the TUN device",
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the helper is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := appInstance.Helper.IsAvailable(ctx); err != nil {
			fmt.Printf("Helper: not running (%v)\n", err)
			return nil
		}
		fmt.Println("Helper: running")
		if tun.Active() {
			fmt.Println("TUN:    active")
		} else {
			fmt.Println("TUN:    inactive")
		}
		return nil
	},
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Start the helper with elevated privileges",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if appInstance.Helper.IsAvailable(ctx) == nil {
			fmt.Println("Helper is already running.")
			return nil
		}
		fmt.Println("Starting helper (may prompt for your password)...")
		if err := appInstance.Helper.Install(ctx); err != nil {
			return err
		}
		fmt.Println("🦆 Helper started")
		return nil
	},
}

var serviceStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the helper",
	Long: `Stop the privileged helper. This is refused while the TUN device is up;
run "duck disconnect" first. Stopping a root-owned helper may prompt for
your password.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := appInstance.Helper.Stop(ctx); err != nil {
			return err
		}
		fmt.Println("Helper stopped")
		return nil
	},
}

// helperdCmd is the hidden entry point launched by "duck service install"
// or on demand by toggle. Users should never invoke this directly.
var helperdCmd = &cobra.Command{
	Use:    helper.DaemonCommand,
	Short:  "Internal privileged helper (not for direct use)",
	Hidden: true,

	// The helper never touches the database.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Root().PersistentFlags().GetString("log-level")
		if level == "" {
			level = "info"
		}
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return err
		}
		logrus.SetLevel(lvl)
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return nil },

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
		defer stop()
		return helper.Run(ctx)
	},
}

func init() {
	serviceCmd.AddCommand(serviceStatusCmd)
	serviceCmd.AddCommand(serviceInstallCmd)
	serviceCmd.AddCommand(serviceStopCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(helperdCmd)
}
