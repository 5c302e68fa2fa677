package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"duck/internal/app"
	"duck/internal/mode"
	"duck/internal/settings"
)

// ensureApp lazily initializes appInstance for shell completion.
// Cobra may invoke ValidArgsFunction without running PersistentPreRunE.
func ensureApp(cmd *cobra.Command) error {
	if appInstance != nil {
		return nil
	}
	var err error
	appInstance, err = app.New(appConfig(cmd))
	return err
}

// completeModes provides shell completion for connection modes.
func completeModes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var completions []string
	for _, m := range mode.Modes {
		if strings.HasPrefix(m.Lower(), strings.ToLower(toComplete)) {
			completions = append(completions, m.Lower())
		}
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}

// completeProxyNames provides shell completion for proxies in the selector
// group.
func completeProxyNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if err := ensureApp(cmd); err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sel := appInstance.Selector.GetSelector(ctx)
	if sel == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var completions []string
	for _, name := range sel.Proxies {
		if strings.HasPrefix(strings.ToLower(name), strings.ToLower(toComplete)) {
			completions = append(completions, name)
		}
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}

// completeSettingKeys provides shell completion for setting keys.
func completeSettingKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var completions []string
	for _, key := range settings.Keys {
		if strings.HasPrefix(key, toComplete) {
			completions = append(completions, key)
		}
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}
