package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"duck/internal/mode"
)

var modeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Show or change the connection mode",
	Long: `Show the persisted connection mode, or change it with "duck mode set".

The mode takes effect on the next toggle, or straight away with
"duck mode set --apply". Anything other than system, tun or combine is
stored as system.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(appInstance.Modes.Get().Lower())
		return nil
	},
}

var modeSetCmd = &cobra.Command{
	Use:               "set <system|tun|combine>",
	Short:             "Persist a new connection mode",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeModes,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := appInstance.Modes.Set(args[0])
		if err != nil {
			return err
		}
		if m.Lower() != args[0] {
			fmt.Printf("Unknown mode %q, using %s\n", args[0], m.Lower())
		}
		fmt.Printf("Connection mode: %s\n", m.Lower())
		if !appInstance.Connectivity.IsConnected() {
			return nil
		}
		if apply, _ := cmd.Flags().GetBool("apply"); apply {
			timeout, _ := cmd.Flags().GetDuration("timeout")
			return runTransition(cmd.Context(), timeout, appInstance.Orchestrator.Apply)
		}
		fmt.Println("Run again with --apply to switch the live connection")
		return nil
	},
}

var modeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available modes",
	RunE: func(cmd *cobra.Command, args []string) error {
		current := appInstance.Modes.Get()
		for _, m := range mode.Modes {
			marker := " "
			if m == current {
				marker = "*"
			}
			fmt.Printf("%s %-8s %s\n", marker, m.Lower(), describeMode(m))
		}
		return nil
	},
}

func describeMode(m mode.ConnectionMode) string {
	switch m {
	case mode.Tun:
		return "TUN device only"
	case mode.Combine:
		return "system proxy and TUN device"
	default:
		return "system proxy only"
	}
}

func init() {
	modeSetCmd.Flags().Bool("apply", false, "re-apply the new mode to a live connection")
	modeSetCmd.Flags().Duration("timeout", 60*time.Second, "how long to wait for --apply")

	modeCmd.AddCommand(modeSetCmd)
	modeCmd.AddCommand(modeListCmd)
	rootCmd.AddCommand(modeCmd)
}
