// Package pipeline orchestrates the broker's request lifecycle: cache
// lookup, router selection, budget check, provider dispatch, usage
// recording, and the single-retry fallback path. It is the only
// component that calls every other one.
package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/aixgo-dev/aibroker/internal/llm/cache"
	"github.com/aixgo-dev/aibroker/internal/llm/cost"
	"github.com/aixgo-dev/aibroker/internal/llm/domain"
	"github.com/aixgo-dev/aibroker/internal/llm/provider"
	"github.com/aixgo-dev/aibroker/internal/llm/router"
	"github.com/aixgo-dev/aibroker/internal/observability"
)

// State names the request state-machine node the pipeline most
// recently reached, for logging the path taken (spec.md §4.F's state
// machine).
type State string

const (
	StateNew                    State = "new"
	StateCacheHit                State = "cache_hit"
	StateSelected                State = "selected"
	StateBudgetOK                 State = "budget_ok"
	StateBudgetShort              State = "budget_short"
	StateReSelected               State = "re_selected"
	StateReSelectedTooExpensive   State = "re_selected_too_expensive"
	StateDispatched               State = "dispatched"
	StateProviderError            State = "provider_error"
	StateFallbackDispatched       State = "fallback_dispatched"
	StateSucceeded                State = "succeeded"
	StateFailed                   State = "failed"
)

const fallbackModel = "deepseek-v3"
const cacheQualityFloor = 0.7

// User is the minimal identity/tier view the pipeline needs; the full
// user record lives in the external relational store.
type User struct {
	ID   string
	Tier domain.Tier
}

// Pipeline wires the cache, router, cost tracker and provider registry
// together. All fields are safe for concurrent use from independent
// requests.
type Pipeline struct {
	Cache     *cache.Cache // nil disables caching
	Router    *router.Router
	Cost      *cost.Tracker
	Providers *provider.Registry

	// ValidateBudget gates step 3 of spec.md §4.F; Pipelines that don't
	// enforce budget (e.g. an internal batch job) can disable it.
	ValidateBudget bool
	// AllowFallback gates step 4's single retry against the cheapest
	// model after a network/timeout failure.
	AllowFallback bool
}

// Execute runs one request through the full pipeline and returns the
// Response, or a *domain.ProviderError describing why it failed.
func (p *Pipeline) Execute(ctx context.Context, user User, req domain.Request) (domain.Response, error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.Execute")
	defer span.End()

	start := time.Now()
	state := StateNew

	if p.Cache != nil {
		if resp, match, err := p.Cache.Lookup(ctx, req, user.ID); err != nil {
			log.Printf("pipeline: cache lookup failed, treating as miss: %v", err)
		} else if match != cache.MatchNone {
			state = StateCacheHit
			observability.RecordRequest(string(req.TaskKind), "cache_hit", time.Since(start))
			return *resp, nil
		}
	}

	sel := p.Router.Select(ctx, req)
	state = StateSelected
	observability.RecordSelection(sel.Model, sel.Confidence)

	effectiveReq := req
	if p.ValidateBudget && p.Cost != nil {
		check, err := p.Cost.Check(ctx, user.ID, user.Tier, sel.EstimatedCost)
		if err != nil {
			log.Printf("pipeline: warning: budget check failed, proceeding without enforcement: %v", err)
		} else if !check.CanProceed {
			state = StateBudgetShort
			constrained := req.Clone()
			if constrained.Complexity > 1 {
				constrained.Complexity--
			}
			remaining := check.RemainingBudget
			constrained.MaxCost = &remaining

			cheaper := p.Router.Select(ctx, constrained)
			if cheaper.EstimatedCost > check.RemainingBudget {
				state = StateReSelectedTooExpensive
				observability.RecordRequest(string(req.TaskKind), "insufficient_budget", time.Since(start))
				return domain.Response{}, domain.NewInsufficientBudget(cheaper.EstimatedCost, check.RemainingBudget)
			}
			state = StateReSelected
			sel = cheaper
			effectiveReq = constrained
		} else {
			state = StateBudgetOK
		}
	}

	client, err := p.Providers.Get(sel.Model)
	if err != nil {
		observability.RecordRequest(string(req.TaskKind), "no_provider", time.Since(start))
		return domain.Response{}, domain.NewProtocolError("pipeline", err.Error())
	}

	temperature := provider.DefaultTemperature(effectiveReq.TaskKind, effectiveReq.Complexity)
	maxTokens := provider.DefaultMaxTokens(effectiveReq.TaskKind, effectiveReq.Content)

	state = StateDispatched
	resp, genErr := client.Generate(ctx, effectiveReq, temperature, maxTokens)
	usedModel := sel.Model

	if genErr != nil {
		state = StateProviderError
		primaryErr := genErr
		if !p.AllowFallback || !isFallbackEligible(genErr) {
			observability.RecordRequest(string(req.TaskKind), "error", time.Since(start))
			return domain.Response{}, primaryErr
		}

		fallbackReq := effectiveReq.Clone()
		if fallbackReq.Complexity > 3 {
			fallbackReq.Complexity = 3
		}
		fallbackReq.RequiresVision = false

		fallbackClient, ferr := p.Providers.Get(fallbackModel)
		if ferr != nil {
			observability.RecordRequest(string(req.TaskKind), "error", time.Since(start))
			return domain.Response{}, primaryErr
		}

		state = StateFallbackDispatched
		fallbackTemp := provider.DefaultTemperature(fallbackReq.TaskKind, fallbackReq.Complexity)
		fallbackMaxTokens := provider.DefaultMaxTokens(fallbackReq.TaskKind, fallbackReq.Content)
		var fallbackErr error
		resp, fallbackErr = fallbackClient.Generate(ctx, fallbackReq, fallbackTemp, fallbackMaxTokens)
		if fallbackErr != nil {
			state = StateFailed
			log.Printf("pipeline: fallback to %s failed: %v", fallbackModel, fallbackErr)
			observability.RecordRequest(string(req.TaskKind), "fallback_failed", time.Since(start))
			return domain.Response{}, primaryErr
		}
		usedModel = fallbackModel
		effectiveReq = fallbackReq
	}

	resp.ProcessingTime = time.Since(start)
	resp.Timestamp = time.Now()

	if p.Cost != nil {
		record := cost.UsageRecord{
			Model:          usedModel,
			TaskKind:       req.TaskKind,
			InputTokens:    resp.InputTokens,
			OutputTokens:   resp.OutputTokens,
			Cost:           resp.Cost,
			ProcessingTime: resp.ProcessingTime,
			QualityScore:   resp.QualityScore,
			UserTier:       user.Tier,
		}
		if alert, err := p.Cost.Track(ctx, user.ID, record); err != nil {
			log.Printf("pipeline: warning: usage tracking failed: %v", err)
		} else if alert != nil {
			log.Printf("pipeline: budget alert for user=%s: %s", user.ID, alert.Message)
		}
	}

	success := genErr == nil
	p.Router.UpdatePerformanceMetrics(resp, &success)

	if p.Cache != nil && resp.QualityScore != nil && *resp.QualityScore > cacheQualityFloor {
		if err := p.Cache.Store(ctx, req, user.ID, resp); err != nil {
			log.Printf("pipeline: warning: cache store failed: %v", err)
		}
	}

	state = StateSucceeded
	observability.RecordRequest(string(req.TaskKind), "success", resp.ProcessingTime)
	log.Printf("pipeline: request for user=%s reached state=%s model=%s cost=%.6f", user.ID, state, usedModel, resp.Cost)
	return resp, nil
}

func isFallbackEligible(err error) bool {
	perr, ok := err.(*domain.ProviderError)
	if !ok {
		return false
	}
	return perr.IsRetryableByPipeline()
}

// WarmRegistry builds a provider.Registry from a model-id -> Client map,
// used by cmd/aibroker at startup.
func WarmRegistry(clients map[string]provider.Client) *provider.Registry {
	reg := provider.NewRegistry()
	for modelID, c := range clients {
		reg.Register(modelID, c)
	}
	return reg
}
