package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aixgo-dev/aibroker/internal/llm/domain"
	"github.com/aixgo-dev/aibroker/pkg/config"
)

var budgetTier string

var budgetCmd = &cobra.Command{
	Use:   "budget [user-id]",
	Short: "Print a user's current monthly budget status",
	Args:  cobra.ExactArgs(1),
	RunE:  runBudget,
}

func init() {
	budgetCmd.Flags().StringVar(&budgetTier, "tier", string(domain.TierCreator), "User tier")
}

func runBudget(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	b, err := buildBroker(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = b.store.Close() }()

	status, err := b.cost.Status(ctx, args[0], domain.Tier(budgetTier))
	if err != nil {
		return err
	}

	fmt.Printf("user=%s tier=%s usage=$%.4f limit=$%.4f (%.1f%%) remaining=$%.4f days_left=%d\n",
		status.UserID, status.Tier, status.CurrentUsage, status.MonthlyLimit,
		status.PercentageUsed, status.RemainingBudget, status.DaysRemainingInMonth)
	if status.ProjectedOverage != nil {
		fmt.Printf("projected overage this month: $%.4f\n", *status.ProjectedOverage)
	}
	return nil
}
