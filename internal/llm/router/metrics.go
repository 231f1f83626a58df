package router

import (
	"sync"
	"time"

	"github.com/aixgo-dev/aibroker/internal/llm/catalogue"
	"github.com/aixgo-dev/aibroker/internal/llm/domain"
)

// modelMetrics tracks a model's observed quality over time. Seeded with
// optimistic defaults so a brand-new model competes fairly before any
// real feedback arrives.
type modelMetrics struct {
	successRate    float64
	avgQuality     float64
	avgRespTime    time.Duration
	costEfficiency float64
	lastUpdated    time.Time
}

func defaultMetrics() modelMetrics {
	return modelMetrics{
		successRate:    0.95,
		avgQuality:     0.8,
		avgRespTime:    5 * time.Second,
		costEfficiency: 1.0,
	}
}

// metricsTable is the sync.RWMutex-guarded per-model performance store,
// mirroring the provider package's Registry.
type metricsTable struct {
	mu      sync.RWMutex
	byModel map[string]modelMetrics
}

func newMetricsTable(cat *catalogue.Catalogue) *metricsTable {
	t := &metricsTable{byModel: make(map[string]modelMetrics)}
	for _, id := range cat.Order() {
		t.byModel[id] = defaultMetrics()
	}
	return t
}

func (t *metricsTable) get(model string) modelMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if m, ok := t.byModel[model]; ok {
		return m
	}
	return defaultMetrics()
}

// update applies the exponential moving averages the router uses to
// learn from real provider responses: quality and cost-efficiency adapt
// slowly (0.1 weight on the new sample), success rate adapts slower
// still (0.05) so a single failure doesn't swing it.
func (t *metricsTable) update(model string, resp domain.Response, success *bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.byModel[model]
	if !ok {
		m = defaultMetrics()
	}

	if resp.QualityScore != nil {
		m.avgQuality = m.avgQuality*0.9 + *resp.QualityScore*0.1
	}
	if resp.ProcessingTime > 0 {
		m.avgRespTime = time.Duration(float64(m.avgRespTime)*0.9 + float64(resp.ProcessingTime)*0.1)
	}
	if totalTokens := resp.InputTokens + resp.OutputTokens; totalTokens > 0 && resp.Cost > 0 {
		costPerToken := resp.Cost / float64(totalTokens)
		if costPerToken < 0.000001 {
			costPerToken = 0.000001
		}
		efficiency := 1.0 / costPerToken
		m.costEfficiency = m.costEfficiency*0.9 + efficiency*0.1
	}
	if success != nil {
		newSuccess := 0.0
		if *success {
			newSuccess = 1.0
		}
		m.successRate = m.successRate*0.95 + newSuccess*0.05
	}

	m.lastUpdated = resp.Timestamp
	t.byModel[model] = m
}
