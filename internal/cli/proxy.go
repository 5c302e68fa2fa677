package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"duck/internal/latency"
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Inspect and switch the engine's selector group",
}

var proxyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List proxies in the selector group",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		sel, err := appInstance.Selector.Lookup(ctx)
		if err != nil {
			fmt.Printf("No selector group: %v\n", err)
			return nil
		}

		fmt.Printf("Group: %s\n\n", sel.Name)
		for _, name := range sel.Proxies {
			marker := " "
			if name == sel.CurrentProxy {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, name)
		}
		fmt.Printf("\nTotal: %d proxies\n", len(sel.Proxies))
		return nil
	},
}

var proxySelectCmd = &cobra.Command{
	Use:               "select <proxy>",
	Short:             "Switch the selector group to a proxy",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeProxyNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		group, _ := cmd.Flags().GetString("group")
		if group == "" {
			sel := appInstance.Selector.GetSelector(ctx)
			if sel == nil {
				return fmt.Errorf("no selector group found, pass --group")
			}
			group = sel.Name
		}

		if err := appInstance.Selector.SetCurrentProxy(ctx, group, args[0]); err != nil {
			return err
		}
		fmt.Printf("🦆 %s → %s\n", group, args[0])
		return nil
	},
}

var proxyTestCmd = &cobra.Command{
	Use:               "test [proxy...]",
	Short:             "Test proxy delays through the engine",
	Long:              `Test the given proxies, or every proxy of the selector group when none are named.`,
	ValidArgsFunction: completeProxyNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		proxies := args
		if len(proxies) == 0 {
			lookup, cancel := context.WithTimeout(ctx, 5*time.Second)
			sel := appInstance.Selector.GetSelector(lookup)
			cancel()
			if sel == nil {
				return fmt.Errorf("no selector group found (is the engine running?)")
			}
			proxies = sel.Proxies
		}
		if len(proxies) == 0 {
			fmt.Println("No proxies to test.")
			return nil
		}

		tester := appInstance.Tester
		if cmd.Flags().Changed("workers") || cmd.Flags().Changed("timeout") {
			tester = overrideTester(cmd)
		}

		if len(proxies) == 1 {
			fmt.Printf("Testing %s... ", proxies[0])
			result := tester.TestSingle(ctx, proxies[0])
			if result.Success {
				fmt.Printf("%d ms\n", result.LatencyMS)
			} else {
				fmt.Printf("FAILED (%s)\n", result.Error)
			}
			return nil
		}

		fmt.Printf("Testing %d proxies...\n\n", len(proxies))
		progress := func(result *latency.TestResult, current, total int) {
			if result.Success {
				fmt.Printf("  [%d/%d] %-40s %d ms\n", current, total, truncateName(result.Proxy, 40), result.LatencyMS)
			} else {
				fmt.Printf("  [%d/%d] %-40s FAILED\n", current, total, truncateName(result.Proxy, 40))
			}
		}
		batch := tester.TestBatch(ctx, proxies, progress)

		fmt.Printf("\n\nResults (sorted by delay):\n")
		fmt.Println(strings.Repeat("─", 60))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tPROXY\tDELAY\tSTATUS")
		fmt.Fprintln(w, "-\t-----\t-----\t------")
		for i, result := range batch.Results {
			delay := "N/A"
			status := "FAIL"
			if result.Success {
				delay = fmt.Sprintf("%d ms", result.LatencyMS)
				status = "OK"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, truncateName(result.Proxy, 40), delay, status)
		}
		w.Flush()

		fmt.Printf("\nTested: %d | OK: %d | Failed: %d | Duration: %s\n",
			batch.Tested, batch.Succeeded, batch.Failed, batch.Duration.Round(time.Millisecond))
		return nil
	},
}

// overrideTester builds a tester honouring the --workers/--timeout flags.
func overrideTester(cmd *cobra.Command) *latency.Tester {
	cfg := appInstance.Settings.Latest()
	workers := cfg.LatencyTestWorkers
	timeout := cfg.LatencyTestTimeout
	if cmd.Flags().Changed("workers") {
		workers, _ = cmd.Flags().GetInt64("workers")
	}
	if cmd.Flags().Changed("timeout") {
		ms, _ := cmd.Flags().GetInt64("timeout")
		timeout = time.Duration(ms) * time.Millisecond
	}
	return latency.NewTester(latency.TesterConfig{
		Workers: workers,
		Timeout: timeout,
		Strategy: &latency.EngineStrategy{
			Engine:  appInstance.Engine,
			URL:     cfg.LatencyTestURL,
			Timeout: timeout,
		},
	})
}

func truncateName(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func init() {
	proxySelectCmd.Flags().StringP("group", "g", "", "selector group (defaults to the first one)")
	proxyTestCmd.Flags().Int64P("workers", "w", 0, "concurrent tests (default from settings)")
	proxyTestCmd.Flags().Int64P("timeout", "t", 0, "timeout per test in ms (default from settings)")

	proxyCmd.AddCommand(proxyListCmd)
	proxyCmd.AddCommand(proxySelectCmd)
	proxyCmd.AddCommand(proxyTestCmd)
	rootCmd.AddCommand(proxyCmd)
}
