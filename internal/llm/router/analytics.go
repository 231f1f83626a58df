package router

import (
	"sort"

	"github.com/aixgo-dev/aibroker/internal/llm/catalogue"
	"github.com/aixgo-dev/aibroker/internal/llm/domain"
)

const recommendationComplexity = 5
const mockContentLength = 20

// Recommend scores the catalogue for a task/tier pair the same way
// Select does, without logging the result to history, and returns the
// top three model ids in descending score order. Useful for advisory
// "what would you pick" UIs.
func (r *Router) Recommend(taskKind domain.TaskKind, tier domain.Tier) []string {
	mock := domain.Request{
		TaskKind:   taskKind,
		Complexity: recommendationComplexity,
		Content:    "sample content for analysis",
		UserTier:   tier,
	}

	candidates := r.cat.Candidates(mock.TaskKind, mock.Complexity, mock.RequiresVision)
	type ranked struct {
		id    string
		score float64
	}
	scored := make([]ranked, 0, len(candidates))
	for _, m := range candidates {
		scored = append(scored, ranked{id: m.ID, score: score(m, mock, r.metrics.get(m.ID))})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	n := 3
	if n > len(scored) {
		n = len(scored)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = scored[i].id
	}
	return out
}

// CostAnalysis projects the dollar cost of every catalogue model for a
// task of the given content length, using the business tier as the
// neutral scoring context (cost estimation doesn't depend on tier).
func (r *Router) CostAnalysis(taskKind domain.TaskKind, contentLength int) map[string]float64 {
	content := make([]byte, 0, contentLength*2)
	for i := 0; i < contentLength; i++ {
		content = append(content, 'x', ' ')
	}
	mock := domain.Request{
		TaskKind:   taskKind,
		Complexity: recommendationComplexity,
		Content:    string(content),
		UserTier:   domain.TierBusiness,
	}

	out := make(map[string]float64, len(r.cat.Order()))
	for _, id := range r.cat.Order() {
		m, _ := r.cat.Get(id)
		out[id] = EstimateCost(m, mock)
	}
	return out
}

// Analytics summarises the router's last 100 selections, except
// HighestAvgCostModel and LowestAvgCostModel, which name the catalogue
// models with the highest and lowest output price.
type Analytics struct {
	TotalSelections      int
	ModelDistribution    map[string]int
	TaskKindDistribution map[domain.TaskKind]int
	TierDistribution     map[domain.Tier]int
	AvgEstimatedCost     float64
	TotalEstimatedCost   float64
	AvgConfidence        float64
	MostUsedModel        string
	HighestAvgCostModel  string
	LowestAvgCostModel   string
}

// SelectionAnalytics reports on the most recent selections, up to the
// last 100, matching the window the load-balancing factor itself uses.
func (r *Router) SelectionAnalytics() Analytics {
	r.mu.RLock()
	n := len(r.history)
	start := 0
	if n > 100 {
		start = n - 100
	}
	recent := make([]selectionRecord, len(r.history[start:]))
	copy(recent, r.history[start:])
	r.mu.RUnlock()

	a := Analytics{
		ModelDistribution:    make(map[string]int),
		TaskKindDistribution: make(map[domain.TaskKind]int),
		TierDistribution:     make(map[domain.Tier]int),
	}
	if len(recent) == 0 {
		return a
	}

	var totalCost, totalConfidence float64
	for _, rec := range recent {
		a.ModelDistribution[rec.model]++
		a.TaskKindDistribution[rec.taskKind]++
		a.TierDistribution[rec.tier]++
		totalCost += rec.estimatedCost
		totalConfidence += rec.confidence
	}

	a.TotalSelections = len(recent)
	a.TotalEstimatedCost = totalCost
	a.AvgEstimatedCost = totalCost / float64(len(recent))
	a.AvgConfidence = totalConfidence / float64(len(recent))

	best, bestCount := "", -1
	for model, count := range a.ModelDistribution {
		if count > bestCount {
			best, bestCount = model, count
		}
	}
	a.MostUsedModel = best

	a.HighestAvgCostModel, a.LowestAvgCostModel = extremeCostModels(r.cat)
	return a
}

func extremeCostModels(cat *catalogue.Catalogue) (highest, lowest string) {
	var highCost, lowCost = -1.0, -1.0
	for _, id := range cat.Order() {
		m, _ := cat.Get(id)
		c := m.Cost.OutputPerMillion
		if highCost < 0 || c > highCost {
			highCost, highest = c, id
		}
		if lowCost < 0 || c < lowCost {
			lowCost, lowest = c, id
		}
	}
	return highest, lowest
}
