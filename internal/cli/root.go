// Package cli is the aibroker command surface: serve, estimate and
// budget subcommands built on cobra, matching the subcommand-per-file
// layout the pack's cobra-based CLIs use.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "aibroker",
	Short: "aibroker — a cost-aware router across LLM providers",
	Long: `aibroker routes generation requests to the cheapest model that can
handle them, caches near-duplicate responses, and enforces per-tier
monthly budgets before it ever calls a provider.

  aibroker serve     Run the HTTP health/metrics server
  aibroker estimate  Print a routing decision without dispatching
  aibroker budget     Print a user's current budget status`,
}

// Execute is the CLI entrypoint.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "aibroker.yaml", "Path to config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(budgetCmd)
}
