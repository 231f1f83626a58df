package catalogue

import "github.com/aixgo-dev/aibroker/internal/llm/domain"

// TierPreference lists model ids in descending preference order for a
// subscription tier. The router consults this both for the tier score of
// each candidate and for the fallback model when nothing scores.
var TierPreference = map[domain.Tier][]string{
	domain.TierFree:     {"deepseek-v3", "gemini-1.5-flash"},
	domain.TierCreator:  {"gemini-1.5-flash", "gemini-1.5-pro", "deepseek-v3"},
	domain.TierBusiness: {"gemini-1.5-pro", "claude-3-5-sonnet", "gemini-1.5-flash"},
	domain.TierAgency:   {"claude-3-opus-bedrock", "claude-3-5-sonnet", "gpt-4-turbo", "gemini-1.5-pro"},
}

// HighComplexityModels are the models the router's smart fallback accepts
// as a tier default for complexity > 7; normal candidate scoring does not
// consult this set.
var HighComplexityModels = map[string]bool{
	"claude-3-5-sonnet":     true,
	"gpt-4-turbo":           true,
	"claude-3-opus-bedrock": true,
}

// VisionFallback is the model forced for vision requests when a tier's
// preferred fallback can't see images.
const VisionFallback = "gpt-4-vision"

// DefaultFallback is the tier's first preference, used when no other
// signal overrides it.
func DefaultFallback(tier domain.Tier) string {
	prefs := TierPreference[tier]
	if len(prefs) == 0 {
		return "deepseek-v3"
	}
	return prefs[0]
}

// TierIndex returns the position of model within tier's preference list,
// or len(list) if the model isn't named there. The router does not call
// it; its ties break on estimated cost.
func TierIndex(tier domain.Tier, model string) int {
	prefs := TierPreference[tier]
	for i, id := range prefs {
		if id == model {
			return i
		}
	}
	return len(prefs)
}
