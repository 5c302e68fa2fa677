package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"duck/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive terminal UI",
	Long:  `Launch the full-screen terminal UI for toggling, switching modes and picking proxies.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, stop := tui.NewProgram(tui.Deps{
			Modes:        appInstance.Modes,
			Toggler:      appInstance.Orchestrator,
			Selector:     appInstance.Selector,
			Connectivity: appInstance.Connectivity,
			Settings:     appInstance.Settings,
			Tester:       appInstance.Tester,
			Bus:          appInstance.Bus,
		})
		defer stop()

		if _, err := p.Run(); err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
