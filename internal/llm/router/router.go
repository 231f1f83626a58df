// Package router picks the model that best serves a request under its
// cost, suitability, performance and tier constraints, and keeps enough
// history to load-balance across near-equal candidates and report on
// its own behaviour.
package router

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/aixgo-dev/aibroker/internal/llm/catalogue"
	"github.com/aixgo-dev/aibroker/internal/llm/domain"
	"github.com/aixgo-dev/aibroker/internal/observability"
)

const historyWindow = 1000

// loadBalancePenalty is applied to a model's score when it has handled
// more than its share of the last 100 selections, so no single model
// monopolises traffic purely on a narrow scoring edge.
func loadBalancePenalty(usageCount int) float64 {
	switch {
	case usageCount > 40:
		return 0.7
	case usageCount > 30:
		return 0.8
	case usageCount > 20:
		return 0.9
	default:
		return 1.0
	}
}

type selectionRecord struct {
	at            time.Time
	taskKind      domain.TaskKind
	tier          domain.Tier
	model         string
	confidence    float64
	estimatedCost float64
	contentLen    int
}

// Router scores the model catalogue against each incoming request and
// remembers enough about its own recent choices to load-balance and
// report selection analytics.
type Router struct {
	cat     *catalogue.Catalogue
	metrics *metricsTable

	mu      sync.RWMutex
	history []selectionRecord
}

// New builds a Router over cat. Pass catalogue.Default in production.
func New(cat *catalogue.Catalogue) *Router {
	return &Router{
		cat:     cat,
		metrics: newMetricsTable(cat),
	}
}

// Select applies the router's pre-optimisation pass, scores every
// candidate model, and returns the chosen model plus up to two
// fallbacks. It never returns an error: when no candidate clears the
// complexity/vision filter, a tier-appropriate fallback is returned
// with a fixed, lower confidence.
func (r *Router) Select(ctx context.Context, req domain.Request) domain.Selection {
	_, span := observability.StartSpan(ctx, "router.Select")
	defer span.End()

	optimised := applyOptimisations(req)

	candidates := r.cat.Candidates(optimised.TaskKind, optimised.Complexity, optimised.RequiresVision)
	if len(candidates) == 0 {
		fallback := r.smartFallback(optimised)
		sel := domain.Selection{
			Model:          fallback.ID,
			Confidence:     0.5,
			Reason:         "smart fallback selection - no optimal candidates found",
			EstimatedCost:  EstimateCost(fallback, optimised),
			FallbackModels: []string{"deepseek-v3"},
		}
		log.Printf("router: no suitable models for task=%s complexity=%d, falling back to %s", optimised.TaskKind, optimised.Complexity, fallback.ID)
		r.record(optimised, sel)
		return sel
	}

	type scored struct {
		model         catalogue.Model
		adjustedScore float64
		rawScore      float64
	}

	ranked := make([]scored, 0, len(candidates))
	for _, m := range candidates {
		raw := score(m, optimised, r.metrics.get(m.ID))
		adjusted := raw * loadBalancePenalty(r.recentUsage(m.ID))
		ranked = append(ranked, scored{model: m, adjustedScore: adjusted, rawScore: raw})
	}

	// Ties on adjusted score break on lower estimated cost, then on
	// catalogue insertion order (preserved by sort.SliceStable over the
	// Candidates() order already used to build ranked).
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].adjustedScore != ranked[j].adjustedScore {
			return ranked[i].adjustedScore > ranked[j].adjustedScore
		}
		return EstimateCost(ranked[i].model, optimised) < EstimateCost(ranked[j].model, optimised)
	})

	best := ranked[0]
	var fallbacks []string
	for _, s := range ranked[1:min(3, len(ranked))] {
		fallbacks = append(fallbacks, s.model.ID)
	}

	confidence := best.rawScore / 100.0
	if confidence > 1.0 {
		confidence = 1.0
	}
	if len(ranked) > 1 {
		secondBest := ranked[1].rawScore
		gap := (best.rawScore - secondBest) / 100.0
		if ceiling := 0.5 + gap; confidence > ceiling {
			confidence = ceiling
		}
	}

	sel := domain.Selection{
		Model:          best.model.ID,
		Confidence:     confidence,
		Reason:         explain(best.model, optimised, best.rawScore),
		EstimatedCost:  EstimateCost(best.model, optimised),
		FallbackModels: fallbacks,
	}
	r.record(optimised, sel)
	return sel
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// smartFallback picks the tier's preferred model, forced to the vision
// model when the request needs vision, or to a high-complexity model
// when the tier default can't handle the complexity.
func (r *Router) smartFallback(req domain.Request) catalogue.Model {
	if req.RequiresVision {
		m, _ := r.cat.Get(catalogue.VisionFallback)
		return m
	}

	fallback := catalogue.DefaultFallback(req.UserTier)
	if req.Complexity > 7 && !catalogue.HighComplexityModels[fallback] {
		fallback = "claude-3-5-sonnet"
	}
	m, ok := r.cat.Get(fallback)
	if !ok {
		m, _ = r.cat.Get("deepseek-v3")
	}
	return m
}

func explain(model catalogue.Model, req domain.Request, rawScore float64) string {
	cost := EstimateCost(model, req)

	var reasons []string
	switch {
	case cost < 0.001:
		reasons = append(reasons, "ultra-low cost")
	case cost < 0.01:
		reasons = append(reasons, "cost-effective")
	case cost < 0.05:
		reasons = append(reasons, "balanced cost/quality")
	default:
		reasons = append(reasons, "premium quality justified")
	}

	if model.Handles(req.TaskKind) {
		reasons = append(reasons, fmt.Sprintf("optimized for %s", req.TaskKind))
	}
	if req.Complexity <= model.Capability.MaxComplexity {
		reasons = append(reasons, "complexity match")
	}
	if isTierAppropriate(model, req.UserTier) {
		reasons = append(reasons, fmt.Sprintf("tier-appropriate for %s", req.UserTier))
	}

	joined := reasons[0]
	for _, r := range reasons[1:] {
		joined += ", " + r
	}
	return fmt.Sprintf("selected %s (score: %.1f) - %s", model.ID, rawScore, joined)
}

func isTierAppropriate(model catalogue.Model, tier domain.Tier) bool {
	prefs := catalogue.TierPreference[tier]
	// "tier-appropriate" in the explanation only credits the top two
	// preferences, distinct from the full preference list tierScore uses.
	for i, id := range prefs {
		if i >= 2 {
			break
		}
		if id == model.ID {
			return true
		}
	}
	return false
}

func (r *Router) recentUsage(model string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.history)
	start := 0
	if n > 100 {
		start = n - 100
	}
	count := 0
	for _, rec := range r.history[start:] {
		if rec.model == model {
			count++
		}
	}
	return count
}

func (r *Router) record(req domain.Request, sel domain.Selection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, selectionRecord{
		at:            time.Now(),
		taskKind:      req.TaskKind,
		tier:          req.UserTier,
		model:         sel.Model,
		confidence:    sel.Confidence,
		estimatedCost: sel.EstimatedCost,
		contentLen:    len(req.Content),
	})
	if len(r.history) > historyWindow {
		r.history = r.history[len(r.history)-historyWindow:]
	}
}

// UpdatePerformanceMetrics folds a completed response back into the
// router's per-model EMA metrics, so future scoring reflects how the
// model has actually been doing. success is nil when no feedback signal
// is available for this response.
func (r *Router) UpdatePerformanceMetrics(resp domain.Response, success *bool) {
	r.metrics.update(resp.Model, resp, success)
	log.Printf("router: updated metrics for %s", resp.Model)
}
