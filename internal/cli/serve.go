package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"duck/internal/api"
	"duck/internal/settings"
	"duck/internal/tray"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control API and keep the tray menu fresh",
	Long: `Serve the local control API used by tray hosts and other UIs.

The process watches duck.yaml for mode changes made elsewhere and reloads
settings on every tray refresh so CLI toggles show up immediately.

Every route except /health needs "Authorization: Bearer <api_secret>". A
token is generated on first start; print it with "duck settings get
api_secret". Browser pages are refused unless their origin is listed in
api_allowed_origins.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg := appInstance.Settings.Latest()
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.APIAddr
		}

		secret, err := appInstance.Settings.EnsureAPISecret(ctx, uuid.NewString)
		if err != nil {
			return err
		}
		if cfg.APISecret == "" {
			logrus.Infof("generated an api token; print it with: duck settings get %s", settings.KeyAPISecret)
		}

		if err := appInstance.Modes.Watch(ctx); err != nil {
			logrus.WithError(err).Warn("mode file watching disabled")
		}

		scheduler, err := tray.NewScheduler(appInstance.Menu, cfg.TrayRefreshInterval, appInstance.Settings.Reload)
		if err != nil {
			return err
		}
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer scheduler.Stop()

		router := api.NewRouter(api.Deps{
			Modes:          appInstance.Modes,
			Toggler:        appInstance.Orchestrator,
			Selector:       appInstance.Selector,
			Connectivity:   appInstance.Connectivity,
			Bus:            appInstance.Bus,
			Tester:         appInstance.Tester,
			Menu:           appInstance.Menu,
			Secret:         secret,
			AllowedOrigins: cfg.APIAllowedOrigins,
		})

		if err := api.Serve(ctx, addr, router); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		logrus.Info("shut down")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from settings)")
	rootCmd.AddCommand(serveCmd)
}
