package router

import (
	"strings"

	"github.com/aixgo-dev/aibroker/internal/llm/catalogue"
	"github.com/aixgo-dev/aibroker/internal/llm/domain"
)

// wordsPerToken is the rough words-to-tokens ratio used for cost
// estimation before a provider has actually run the request. This stays
// an approximation by design: exact tokenization is provider-specific
// and the router only needs a consistent ordering, not a precise count.
const wordsPerToken = 1.3

// outputMultiplier scales estimated output tokens against input tokens,
// since a code-generation answer is typically much longer than its
// prompt. Task kinds not listed here use 1.0.
var outputMultiplier = map[domain.TaskKind]float64{
	domain.TaskCodeGeneration:      2.0,
	domain.TaskContent:             1.5,
	domain.TaskAnalysis:            1.2,
	domain.TaskOptimisation:        1.3,
	domain.TaskComponentGeneration: 2.5,
	domain.TaskCampaignAnalysis:    1.8,
}

// EstimateCost projects the dollar cost of running req against model
// before any tokens have actually been counted by a provider.
func EstimateCost(model catalogue.Model, req domain.Request) float64 {
	inputTokens := float64(len(strings.Fields(req.Content))) * wordsPerToken

	mult, ok := outputMultiplier[req.TaskKind]
	if !ok {
		mult = 1.0
	}
	outputTokens := inputTokens * mult

	images := 0
	if req.RequiresVision {
		images = 1
	}
	return model.Cost.Price(int(inputTokens), int(outputTokens), images)
}
