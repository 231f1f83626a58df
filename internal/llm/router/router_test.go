package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixgo-dev/aibroker/internal/llm/catalogue"
	"github.com/aixgo-dev/aibroker/internal/llm/domain"
)

func TestSelect_ChoosesATierAppropriateLowComplexityModel(t *testing.T) {
	r := New(catalogue.Default)
	sel := r.Select(context.Background(), domain.Request{
		TaskKind:   domain.TaskContent,
		Complexity: 2,
		Content:    "Write a short blog teaser",
		UserTier:   domain.TierFree,
	})

	require.NotEmpty(t, sel.Model)
	assert.Greater(t, sel.Confidence, 0.0)
	assert.Contains(t, sel.Reason, sel.Model)
}

func TestSelect_NoCandidatesFallsBackByTier(t *testing.T) {
	r := New(catalogue.Default)
	sel := r.Select(context.Background(), domain.Request{
		TaskKind:   domain.TaskAnalysis,
		Complexity: 11,
		Content:    "impossible complexity request that no catalogue model can take on",
		UserTier:   domain.TierFree,
	})

	assert.Equal(t, 0.5, sel.Confidence)
	assert.Contains(t, sel.Reason, "smart fallback")
	assert.Contains(t, sel.FallbackModels, "deepseek-v3")
}

func TestSelect_RequiresVisionFallsBackToVisionModel(t *testing.T) {
	r := New(catalogue.Default)
	sel := r.Select(context.Background(), domain.Request{
		TaskKind:       domain.TaskAnalysis,
		Complexity:     11,
		Content:        "describe this screenshot of the dashboard layout in full detail please",
		UserTier:       domain.TierFree,
		RequiresVision: true,
	})

	m, ok := catalogue.Default.Get(catalogue.VisionFallback)
	require.True(t, ok)
	assert.Equal(t, m.ID, sel.Model)
}

func TestSelect_RepeatedSelectionTriggersLoadBalancePenalty(t *testing.T) {
	r := New(catalogue.Default)
	req := domain.Request{
		TaskKind:   domain.TaskContent,
		Complexity: 2,
		Content:    "Write a short blog teaser",
		UserTier:   domain.TierFree,
	}

	first := r.Select(context.Background(), req)
	counts := map[string]int{}
	for i := 0; i < 45; i++ {
		sel := r.Select(context.Background(), req)
		counts[sel.Model]++
	}

	assert.Less(t, counts[first.Model], 45, "a single model must not monopolise every selection once it crosses the load-balance thresholds")
}

func TestSelect_RecordsSelectionHistoryCappedAtWindow(t *testing.T) {
	r := New(catalogue.Default)
	req := domain.Request{TaskKind: domain.TaskContent, Complexity: 2, Content: "hi", UserTier: domain.TierFree}

	for i := 0; i < historyWindow+10; i++ {
		r.Select(context.Background(), req)
	}

	r.mu.RLock()
	n := len(r.history)
	r.mu.RUnlock()
	assert.Equal(t, historyWindow, n)
}

func TestApplyOptimisations_ShortContentReducesComplexity(t *testing.T) {
	req := domain.Request{TaskKind: domain.TaskContent, Complexity: 5, Content: "short"}
	optimised := applyOptimisations(req)
	assert.Equal(t, 4, optimised.Complexity)
}

func TestApplyOptimisations_LongContentIncreasesComplexity(t *testing.T) {
	long := make([]byte, 2500)
	for i := range long {
		long[i] = 'x'
	}
	req := domain.Request{TaskKind: domain.TaskContent, Complexity: 3, Content: string(long)}
	optimised := applyOptimisations(req)
	assert.Equal(t, 4, optimised.Complexity)
}

func TestApplyOptimisations_RetagsContentToCodeGenerationOnCodeIndicators(t *testing.T) {
	req := domain.Request{TaskKind: domain.TaskContent, Complexity: 3, Content: "write a react component for the header"}
	optimised := applyOptimisations(req)
	assert.Equal(t, domain.TaskCodeGeneration, optimised.TaskKind)
}

func TestApplyOptimisations_RetagsContentToAnalysisOnAnalysisIndicators(t *testing.T) {
	req := domain.Request{TaskKind: domain.TaskContent, Complexity: 3, Content: "please review and evaluate this plan"}
	optimised := applyOptimisations(req)
	assert.Equal(t, domain.TaskAnalysis, optimised.TaskKind)
}

func TestApplyOptimisations_DoesNotMutateOriginalRequest(t *testing.T) {
	req := domain.Request{TaskKind: domain.TaskContent, Complexity: 5, Content: "short"}
	_ = applyOptimisations(req)
	assert.Equal(t, 5, req.Complexity)
	assert.Equal(t, domain.TaskContent, req.TaskKind)
}

func TestUpdatePerformanceMetrics_QualityMovesTowardNewSample(t *testing.T) {
	r := New(catalogue.Default)
	quality := 0.2
	modelID := catalogue.Default.Order()[0]

	before := r.metrics.get(modelID).avgQuality
	r.UpdatePerformanceMetrics(domain.Response{Model: modelID, QualityScore: &quality}, nil)
	after := r.metrics.get(modelID).avgQuality

	assert.Less(t, after, before, "a low-quality sample must pull the EMA down")
}

func TestUpdatePerformanceMetrics_SuccessRateRespondsToFailure(t *testing.T) {
	r := New(catalogue.Default)
	modelID := catalogue.Default.Order()[0]
	failed := false

	before := r.metrics.get(modelID).successRate
	r.UpdatePerformanceMetrics(domain.Response{Model: modelID}, &failed)
	after := r.metrics.get(modelID).successRate

	assert.Less(t, after, before)
}

func TestEstimateCost_VisionAddsImagePrice(t *testing.T) {
	m, ok := catalogue.Default.Get(catalogue.VisionFallback)
	require.True(t, ok)

	withoutVision := EstimateCost(m, domain.Request{TaskKind: domain.TaskAnalysis, Content: "describe the chart"})
	withVision := EstimateCost(m, domain.Request{TaskKind: domain.TaskAnalysis, Content: "describe the chart", RequiresVision: true})

	assert.Greater(t, withVision, withoutVision)
}

func TestRecommend_ReturnsUpToThreeModelsInDescendingScoreOrder(t *testing.T) {
	r := New(catalogue.Default)
	ids := r.Recommend(domain.TaskContent, domain.TierCreator)
	assert.LessOrEqual(t, len(ids), 3)
	assert.NotEmpty(t, ids)
}

func TestCostAnalysis_CoversEveryCatalogueModel(t *testing.T) {
	r := New(catalogue.Default)
	out := r.CostAnalysis(domain.TaskContent, 100)
	assert.Len(t, out, len(catalogue.Default.Order()))
	for _, cost := range out {
		assert.GreaterOrEqual(t, cost, 0.0)
	}
}

func TestSelectionAnalytics_EmptyBeforeAnySelections(t *testing.T) {
	r := New(catalogue.Default)
	a := r.SelectionAnalytics()
	assert.Equal(t, 0, a.TotalSelections)
}

func TestSelectionAnalytics_SummarisesRecentSelections(t *testing.T) {
	r := New(catalogue.Default)
	req := domain.Request{TaskKind: domain.TaskContent, Complexity: 2, Content: "hi", UserTier: domain.TierFree}
	for i := 0; i < 5; i++ {
		r.Select(context.Background(), req)
	}

	a := r.SelectionAnalytics()
	assert.Equal(t, 5, a.TotalSelections)
	assert.NotEmpty(t, a.MostUsedModel)
	assert.NotEmpty(t, a.HighestAvgCostModel)
	assert.NotEmpty(t, a.LowestAvgCostModel)
}
