package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/aixgo-dev/aibroker/internal/llm/catalogue"
	"github.com/aixgo-dev/aibroker/internal/llm/domain"
	"github.com/aixgo-dev/aibroker/internal/llm/router"
)

var (
	estimateTask       string
	estimateTier       string
	estimateComplexity int
	estimateInteractive bool
)

var estimateCmd = &cobra.Command{
	Use:   "estimate [content]",
	Short: "Print the router's model choice and cost estimate without dispatching",
	RunE:  runEstimate,
}

func init() {
	estimateCmd.Flags().StringVar(&estimateTask, "task", string(domain.TaskAnalysis), "Task kind")
	estimateCmd.Flags().StringVar(&estimateTier, "tier", string(domain.TierCreator), "User tier")
	estimateCmd.Flags().IntVar(&estimateComplexity, "complexity", 3, "Request complexity (1-10)")
	estimateCmd.Flags().BoolVarP(&estimateInteractive, "interactive", "i", false, "Start an interactive REPL")
}

func runEstimate(cmd *cobra.Command, args []string) error {
	r := router.New(catalogue.Default)

	if estimateInteractive {
		return runEstimateREPL(r)
	}

	if len(args) == 0 {
		return fmt.Errorf("estimate: either pass content as an argument or use -i for interactive mode")
	}
	printEstimate(r, strings.Join(args, " "))
	return nil
}

// runEstimateREPL reads lines of candidate request content interactively
// and prints the router's decision for each, using peterh/liner for
// history-backed line editing the way an operator exploring routing
// behaviour would want.
func runEstimateREPL(r *router.Router) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("aibroker estimate REPL — enter request content, Ctrl-D to quit")
	for {
		content, err := line.Prompt("> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			return err
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		line.AppendHistory(content)
		printEstimate(r, content)
	}
}

func printEstimate(r *router.Router, content string) {
	req := domain.Request{
		TaskKind:   domain.TaskKind(estimateTask),
		Complexity: estimateComplexity,
		Content:    content,
		UserTier:   domain.Tier(estimateTier),
	}
	sel := r.Select(context.Background(), req)
	fmt.Printf("model=%s confidence=%.2f estimated_cost=$%.6f reason=%q fallbacks=%v\n",
		sel.Model, sel.Confidence, sel.EstimatedCost, sel.Reason, sel.FallbackModels)
}
