package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"duck/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:     "settings",
	Aliases: []string{"config"},
	Short:   "Show and change stored settings",
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		values := appInstance.Settings.Latest().Values()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE")
		fmt.Fprintln(w, "---\t-----")
		for _, key := range settings.Keys {
			value := values[key]
			if settings.IsSecret(key) && value != "" {
				value = "********"
			}
			fmt.Fprintf(w, "%s\t%s\n", key, value)
		}
		return w.Flush()
	},
}

var settingsGetCmd = &cobra.Command{
	Use:               "get <key>",
	Short:             "Print one setting",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !settings.IsKnown(args[0]) {
			return fmt.Errorf("unknown setting: %s", args[0])
		}
		fmt.Println(appInstance.Settings.Latest().Values()[args[0]])
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:               "set <key> <value>",
	Short:             "Validate and store one setting",
	Long:              `Store a setting. The connectivity flags are owned by toggle and disconnect and cannot be set here.`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if key == settings.KeyEnableSystemProxy || key == settings.KeyEnableTunMode {
			return fmt.Errorf("%s is managed by toggle/disconnect", key)
		}
		if err := appInstance.Settings.Set(context.Background(), key, value); err != nil {
			return err
		}
		fmt.Printf("Saved %s\n", key)
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
