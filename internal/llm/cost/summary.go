package cost

import (
	"context"
	"fmt"
	"sort"
)

// UsageSummary is the read-only advisory query SPEC_FULL.md §3 adds on
// top of Track/Check/Status: a breakdown of what a user actually spent
// over the trailing window, by model and by task kind, plus a daily
// trend series.
type UsageSummary struct {
	Days          int
	TotalCost     float64
	ByModel       map[string]float64
	ByTaskKind    map[string]float64
	DailyTrend    map[string]float64
}

// UsageSummary reports a user's spend breakdown over the trailing
// `days` days. Only MemoryStore can answer this directly today; a
// relational UsageStore would back it with a GROUP BY query.
func (t *Tracker) UsageSummary(ctx context.Context, userID string, days int, mem *MemoryStore) (UsageSummary, error) {
	since := t.now().AddDate(0, 0, -days)
	summary := UsageSummary{
		Days:       days,
		ByModel:    make(map[string]float64),
		ByTaskKind: make(map[string]float64),
		DailyTrend: make(map[string]float64),
	}
	for _, rec := range mem.Records() {
		if rec.UserID != userID || rec.CreatedAt.Before(since) {
			continue
		}
		summary.TotalCost += rec.Cost
		summary.ByModel[rec.Model] += rec.Cost
		summary.ByTaskKind[string(rec.TaskKind)] += rec.Cost
		summary.DailyTrend[rec.CreatedAt.UTC().Format("2006-01-02")] += rec.Cost
	}
	return summary, nil
}

// Recommendation is one heuristic cost-optimisation suggestion.
type Recommendation struct {
	Kind    string
	Message string
}

// OptimizationRecommendations applies a few simple heuristics over a
// user's recent spend: a single model dominating cost, a task kind
// dominating cost, or usage crossing 85% of the tier limit without yet
// exceeding it. Grounded in the original `cost_tracker.py`'s
// `get_cost_optimization_recommendations`.
func OptimizationRecommendations(summary UsageSummary, status BudgetStatus) []Recommendation {
	var recs []Recommendation

	if top, share := dominantShare(summary.ByModel, summary.TotalCost); share > 0.6 {
		recs = append(recs, Recommendation{
			Kind:    "switch_model",
			Message: fmt.Sprintf("%s accounts for %.0f%% of recent spend; consider a cheaper model for routine requests", top, share*100),
		})
	}
	if top, share := dominantShare(summary.ByTaskKind, summary.TotalCost); share > 0.6 {
		recs = append(recs, Recommendation{
			Kind:    "batch_workflow",
			Message: fmt.Sprintf("%s tasks account for %.0f%% of recent spend; batching similar requests may reduce it", top, share*100),
		})
	}
	if status.PercentageUsed >= 85 && status.PercentageUsed < 100 {
		recs = append(recs, Recommendation{
			Kind:    "upgrade_tier",
			Message: fmt.Sprintf("%s tier is at %.0f%% of its monthly budget; an upgrade may avoid mid-month downgrades", status.Tier, status.PercentageUsed),
		})
	}
	return recs
}

func dominantShare(byKey map[string]float64, total float64) (string, float64) {
	if total <= 0 {
		return "", 0
	}
	var top string
	var topCost float64
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if byKey[k] > topCost {
			top, topCost = k, byKey[k]
		}
	}
	return top, topCost / total
}
