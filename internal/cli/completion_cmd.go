package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Print a shell completion script",
	Long: `Print a completion script for bash, zsh, fish or powershell.

Mode names, setting keys and the proxies of the selector group complete
dynamically, so the engine should be running for proxy names to show up.

  duck completion bash > ~/.local/share/bash-completion/completions/duck
  duck completion zsh > "${fpath[1]}/_duck"
  duck completion fish > ~/.config/fish/completions/duck.fish
  duck completion powershell >> $PROFILE`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),

	// Scripts are generated without opening the database.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },

	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		root := cmd.Root()
		switch args[0] {
		case "bash":
			return root.GenBashCompletionV2(out, true)
		case "zsh":
			return root.GenZshCompletion(out)
		case "fish":
			return root.GenFishCompletion(out, true)
		case "powershell":
			return root.GenPowerShellCompletionWithDesc(out)
		}
		return fmt.Errorf("unsupported shell %q", args[0])
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
