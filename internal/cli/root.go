package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"duck/internal/app"
)

var (
	appInstance *app.App
	version     = "dev"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "duck",
	Short: "🦆 Duck - connection mode orchestrator for a Clash-compatible engine",
	Long: `🦆 Duck - connection mode orchestrator for a Clash-compatible engine

  Route traffic through a running engine using the OS system proxy, a TUN
  device, or both.

  Quick start:
    duck mode set tun
    duck toggle
    duck proxy list
    duck proxy select "HK 01"

  Modes:
    • system   system proxy pointed at the engine's mixed port
    • tun      TUN device routed into the engine (needs the helper)
    • combine  both at once`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		appInstance, err = app.New(appConfig(cmd))
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if appInstance != nil {
			return appInstance.Close()
		}
		return nil
	},
}

// appConfig collects the persistent overrides for app.New.
func appConfig(cmd *cobra.Command) app.Config {
	flags := cmd.Root().PersistentFlags()
	db, _ := flags.GetString("db")
	configDir, _ := flags.GetString("config-dir")
	controller, _ := flags.GetString("controller")
	level, _ := flags.GetString("log-level")
	return app.Config{
		DBPath:         db,
		ConfigDir:      configDir,
		ControllerAddr: controller,
		LogLevel:       level,
	}
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("db", "", "database path")
	rootCmd.PersistentFlags().String("config-dir", "", "directory holding duck.yaml")
	rootCmd.PersistentFlags().String("controller", "", "engine controller address (host:port)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("🦆 Duck %s\n", version)
	},
}
