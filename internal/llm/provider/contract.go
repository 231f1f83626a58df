// Package provider holds one HTTP client per LLM provider: each speaks
// its own wire protocol, honours its own rate-limit headers, and
// produces a domain.Response with cost computed from the catalogue.
// The Pipeline depends only on the Client interface below, never on a
// concrete provider type.
package provider

import (
	"context"
	"math"
	"strings"

	"github.com/aixgo-dev/aibroker/internal/llm/domain"
)

// Client is the capability set every provider implements:
// generate/estimate_cost/test_connection from spec.md §9's design
// notes. The Pipeline pools these per provider and never depends on
// the concrete provider variant.
type Client interface {
	// Generate issues one completion call and returns a fully priced
	// Response, or a *domain.ProviderError with one of the closed error
	// codes.
	Generate(ctx context.Context, req domain.Request, temperature float64, maxTokens int) (domain.Response, error)

	// EstimateCost projects the dollar cost of running content through
	// this provider for a task kind, without calling out to it.
	EstimateCost(content string, task domain.TaskKind) float64

	// TestConnection makes the cheapest possible call to confirm
	// credentials and connectivity, without charging for real work.
	TestConnection(ctx context.Context) error

	// Name identifies the provider for logging, metrics and routing.
	Name() string
}

// systemPrompts is the fixed table of system prompts selected by task
// kind, used identically by every provider client.
var systemPrompts = map[domain.TaskKind]string{
	domain.TaskCodeGeneration:      "You are an expert software engineer. Write clean, correct, idiomatic code. Prefer clarity over cleverness.",
	domain.TaskComponentGeneration: "You are an expert frontend engineer. Produce a single, self-contained UI component with no unused imports.",
	domain.TaskContent:             "You are a skilled content writer. Produce clear, well-structured prose appropriate for the audience.",
	domain.TaskAnalysis:            "You are a careful analyst. Identify findings, support them with evidence, and state a recommendation.",
	domain.TaskOptimisation:        "You are a performance engineer. Identify concrete optimisations and explain their tradeoffs.",
	domain.TaskSummarisation:       "You are a precise summarizer. Preserve the key facts and omit everything else.",
	domain.TaskTranslation:         "You are a professional translator. Preserve meaning, tone and register.",
	domain.TaskCampaignAnalysis:    "You are a marketing analyst. Evaluate campaign performance and recommend next steps.",
	domain.TaskDesignReview:        "You are a senior design reviewer. Assess usability, accessibility and visual consistency.",
}

const defaultSystemPrompt = "You are a helpful assistant."

// SystemPrompt returns the fixed prompt for task, defaulting to a
// generic assistant prompt for any kind not in the table.
func SystemPrompt(task domain.TaskKind) string {
	if p, ok := systemPrompts[task]; ok {
		return p
	}
	return defaultSystemPrompt
}

// DefaultTemperature applies spec.md §4.A's temperature table: 0.7
// baseline, 0.3 for code/component tasks, and a further 0.8x for low
// complexity.
func DefaultTemperature(task domain.TaskKind, complexity int) float64 {
	temp := 0.7
	if task == domain.TaskCodeGeneration || task == domain.TaskComponentGeneration {
		temp = 0.3
	}
	if complexity <= 3 {
		temp *= 0.8
	}
	return temp
}

// DefaultMaxTokens applies spec.md §4.A's max_tokens defaults: 1000 for
// summarisation, 4000 for code, otherwise twice the estimated input
// token count capped at 4000.
func DefaultMaxTokens(task domain.TaskKind, content string) int {
	switch task {
	case domain.TaskSummarisation:
		return 1000
	case domain.TaskCodeGeneration, domain.TaskComponentGeneration:
		return 4000
	}
	inputWords := len(strings.Fields(content))
	estimated := 2 * int(math.Ceil(float64(inputWords)*1.3))
	if estimated > 4000 {
		return 4000
	}
	if estimated < 1 {
		return 1
	}
	return estimated
}

// EstimateTokens applies the inherited word_count*1.3 approximation
// (spec.md §9's open question 4) used whenever a provider omits token
// counts from its response.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) * 1.3))
}
