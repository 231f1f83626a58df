package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixgo-dev/aibroker/internal/kv"
	"github.com/aixgo-dev/aibroker/internal/llm/cache"
	"github.com/aixgo-dev/aibroker/internal/llm/catalogue"
	"github.com/aixgo-dev/aibroker/internal/llm/cost"
	"github.com/aixgo-dev/aibroker/internal/llm/domain"
	"github.com/aixgo-dev/aibroker/internal/llm/provider"
	"github.com/aixgo-dev/aibroker/internal/llm/router"
)

// stubClient is a scripted provider.Client used to drive the pipeline
// through its success, error and fallback paths without a real SDK.
type stubClient struct {
	name     string
	calls    int
	err      error
	response domain.Response
}

func (s *stubClient) Name() string { return s.name }

func (s *stubClient) Generate(_ context.Context, req domain.Request, _ float64, _ int) (domain.Response, error) {
	s.calls++
	if s.err != nil {
		return domain.Response{}, s.err
	}
	resp := s.response
	resp.Model = s.name
	return resp, nil
}

func (s *stubClient) EstimateCost(content string, task domain.TaskKind) float64 { return 0.001 }

func (s *stubClient) TestConnection(ctx context.Context) error { return nil }

func quality(v float64) *float64 { return &v }

func newTestPipeline(t *testing.T) (*Pipeline, kv.Store) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := kv.NewRedisStoreFromClient(client)

	c := cache.New(store)
	r := router.New(catalogue.Default)
	tr := cost.New(cost.NewMemoryStore(), store)

	return &Pipeline{
		Cache:          c,
		Router:         r,
		Cost:           tr,
		Providers:      provider.NewRegistry(),
		ValidateBudget: true,
		AllowFallback:  true,
	}, store
}

func baseRequest() domain.Request {
	return domain.Request{
		TaskKind:   domain.TaskAnalysis,
		Complexity: 3,
		Content:    "summarize this quarter's churn numbers for the board",
		UserTier:   domain.TierCreator,
	}
}

func TestExecute_ColdRequestWithinBudget(t *testing.T) {
	p, _ := newTestPipeline(t)
	sel := p.Router.Select(context.Background(), baseRequest())

	stub := &stubClient{name: sel.Model, response: domain.Response{
		Content: "the churn rate fell two points", InputTokens: 50, OutputTokens: 40,
		Cost: 0.002, QualityScore: quality(0.8),
	}}
	p.Providers.Register(sel.Model, stub)

	resp, err := p.Execute(context.Background(), User{ID: "u1", Tier: domain.TierCreator}, baseRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, sel.Model, resp.Model)
	assert.NotZero(t, resp.ProcessingTime)
}

func TestExecute_SecondIdenticalRequestIsCacheHit(t *testing.T) {
	p, _ := newTestPipeline(t)
	req := baseRequest()
	sel := p.Router.Select(context.Background(), req)

	stub := &stubClient{response: domain.Response{
		Content: "the churn rate fell two points", InputTokens: 50, OutputTokens: 40,
		Cost: 0.002, QualityScore: quality(0.9),
	}}
	p.Providers.Register(sel.Model, stub)

	user := User{ID: "u2", Tier: domain.TierCreator}
	_, err := p.Execute(context.Background(), user, req)
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls)

	resp2, err := p.Execute(context.Background(), user, req)
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls, "second identical request must be served from cache, not dispatched again")
	assert.Equal(t, "the churn rate fell two points", resp2.Content)
}

func TestExecute_LowQualityResponseIsNotCached(t *testing.T) {
	p, _ := newTestPipeline(t)
	req := baseRequest()
	sel := p.Router.Select(context.Background(), req)

	stub := &stubClient{response: domain.Response{
		Content: "vague answer", InputTokens: 10, OutputTokens: 5,
		Cost: 0.0005, QualityScore: quality(0.3),
	}}
	p.Providers.Register(sel.Model, stub)

	user := User{ID: "u3", Tier: domain.TierCreator}
	_, err := p.Execute(context.Background(), user, req)
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), user, req)
	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls, "a response below the quality floor must not be cached")
}

func TestExecute_BudgetExhaustedReturnsInsufficientBudget(t *testing.T) {
	p, _ := newTestPipeline(t)
	req := baseRequest()
	req.UserTier = domain.TierFree
	sel := p.Router.Select(context.Background(), req)

	stub := &stubClient{response: domain.Response{
		Content: "ok", InputTokens: 5, OutputTokens: 5, Cost: 0.001, QualityScore: quality(0.5),
	}}
	p.Providers.Register(sel.Model, stub)
	p.Providers.Register(fallbackModel, stub)

	user := User{ID: "u4", Tier: domain.TierFree}
	_, err := p.Cost.Track(context.Background(), user.ID, cost.UsageRecord{
		Model: sel.Model, TaskKind: req.TaskKind, Cost: cost.TierLimits[domain.TierFree],
		UserTier: domain.TierFree,
	})
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), user, req)
	require.Error(t, err)

	var provErr *domain.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, domain.ErrInsufficientBudget, provErr.Code)
}

func TestExecute_NetworkErrorFallsBackToDeepSeek(t *testing.T) {
	p, _ := newTestPipeline(t)
	req := baseRequest()
	req.Complexity = 8
	req.RequiresVision = true
	sel := p.Router.Select(context.Background(), req)

	failing := &stubClient{name: sel.Model, err: domain.NewNetworkError(sel.Model, errors.New("connection reset"))}
	fallback := &stubClient{name: fallbackModel, response: domain.Response{
		Content: "fallback answer", InputTokens: 20, OutputTokens: 15,
		Cost: 0.0004, QualityScore: quality(0.75),
	}}
	p.Providers.Register(sel.Model, failing)
	p.Providers.Register(fallbackModel, fallback)

	resp, err := p.Execute(context.Background(), User{ID: "u5", Tier: domain.TierCreator}, req)
	require.NoError(t, err)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, fallback.calls)
	assert.Equal(t, fallbackModel, resp.Model)
}

func TestExecute_FallbackFailureSurfacesOriginalError(t *testing.T) {
	p, _ := newTestPipeline(t)
	req := baseRequest()
	req.Complexity = 8
	req.RequiresVision = true
	sel := p.Router.Select(context.Background(), req)

	primaryErr := domain.NewNetworkError(sel.Model, errors.New("connection reset"))
	failing := &stubClient{err: primaryErr}
	fallbackFailing := &stubClient{err: domain.NewTimeout(fallbackModel, errors.New("fallback also timed out"))}
	p.Providers.Register(sel.Model, failing)
	p.Providers.Register(fallbackModel, fallbackFailing)

	_, err := p.Execute(context.Background(), User{ID: "u7", Tier: domain.TierCreator}, req)
	require.Error(t, err)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, fallbackFailing.calls)

	var provErr *domain.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, domain.ErrNetworkError, provErr.Code, "fallback failure must surface the primary provider's error, not the fallback's")
}

func TestExecute_RateLimitedErrorIsNotEligibleForFallback(t *testing.T) {
	p, _ := newTestPipeline(t)
	req := baseRequest()
	sel := p.Router.Select(context.Background(), req)

	limited := &stubClient{err: domain.NewRateLimited(sel.Model, 5.0)}
	fallback := &stubClient{response: domain.Response{Content: "unused", QualityScore: quality(0.9)}}
	p.Providers.Register(sel.Model, limited)
	p.Providers.Register(fallbackModel, fallback)

	_, err := p.Execute(context.Background(), User{ID: "u6", Tier: domain.TierCreator}, req)
	require.Error(t, err)
	assert.Equal(t, 0, fallback.calls, "rate-limit errors must not trigger the fallback retry")

	var provErr *domain.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, domain.ErrRateLimited, provErr.Code)
}

func TestExecute_CacheDisabledAlwaysDispatches(t *testing.T) {
	p, _ := newTestPipeline(t)
	p.Cache = nil
	req := baseRequest()
	sel := p.Router.Select(context.Background(), req)

	stub := &stubClient{response: domain.Response{
		Content: "answer", InputTokens: 10, OutputTokens: 10, Cost: 0.001, QualityScore: quality(0.9),
	}}
	p.Providers.Register(sel.Model, stub)

	user := User{ID: "u7", Tier: domain.TierCreator}
	_, err := p.Execute(context.Background(), user, req)
	require.NoError(t, err)
	_, err = p.Execute(context.Background(), user, req)
	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls)
}

func TestWarmRegistry_RegistersEveryClient(t *testing.T) {
	reg := WarmRegistry(map[string]provider.Client{
		"deepseek-v3": &stubClient{name: "deepseek-v3"},
		"gemini-pro":  &stubClient{name: "gemini-pro"},
	})

	c, err := reg.Get("deepseek-v3")
	require.NoError(t, err)
	assert.Equal(t, "deepseek-v3", c.Name())

	_, err = reg.Get("does-not-exist")
	assert.Error(t, err)
}
