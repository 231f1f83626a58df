package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/aixgo-dev/aibroker/internal/kv"
	"github.com/aixgo-dev/aibroker/internal/llm/cache"
	"github.com/aixgo-dev/aibroker/internal/llm/catalogue"
	"github.com/aixgo-dev/aibroker/internal/llm/cost"
	"github.com/aixgo-dev/aibroker/internal/llm/pipeline"
	"github.com/aixgo-dev/aibroker/internal/llm/provider"
	"github.com/aixgo-dev/aibroker/internal/llm/router"
	"github.com/aixgo-dev/aibroker/pkg/config"
)

// broker bundles the pieces every subcommand needs, built once from the
// loaded Config.
type broker struct {
	cfg    *config.Config
	store  kv.Store
	cache  *cache.Cache
	router *router.Router
	cost   *cost.Tracker
	pipe   *pipeline.Pipeline
}

func buildBroker(ctx context.Context, cfg *config.Config) (*broker, error) {
	store, err := kv.NewRedisStore(kv.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("cli: connect to key-value store: %w", err)
	}

	for tier, limit := range cfg.TierLimits() {
		cost.TierLimits[tier] = limit
	}

	c := cache.New(store)
	r := router.New(catalogue.Default)
	tr := cost.New(cost.NewMemoryStore(), store)

	reg := registerProviders(ctx, cfg)

	return &broker{
		cfg:    cfg,
		store:  store,
		cache:  c,
		router: r,
		cost:   tr,
		pipe: &pipeline.Pipeline{
			Cache:          c,
			Router:         r,
			Cost:           tr,
			Providers:      reg,
			ValidateBudget: true,
			AllowFallback:  true,
		},
	}, nil
}

// registerProviders builds one client per configured credential. A
// provider with no key configured is simply absent from the registry;
// the router may still select its model, but Pipeline.Execute will fail
// with a clear "no client registered" error rather than guessing.
func registerProviders(ctx context.Context, cfg *config.Config) *provider.Registry {
	clients := make(map[string]provider.Client)

	if cfg.DeepSeekAPIKey != "" {
		clients["deepseek-v3"] = provider.NewDeepSeekClient(cfg.DeepSeekAPIKey, cfg.ProviderBaseURLs["deepseek"])
	}

	if cfg.GeminiAPIKey != "" {
		for _, variant := range []string{"gemini-1.5-flash", "gemini-1.5-pro"} {
			gc, err := provider.NewGeminiClient(ctx, cfg.GeminiAPIKey, variant)
			if err != nil {
				log.Printf("cli: warning: gemini client for %s unavailable: %v", variant, err)
				continue
			}
			clients[variant] = gc
		}
	}

	if cfg.OpenAIAPIKey != "" {
		clients["gpt-4-turbo"] = provider.NewOpenAIClient(cfg.OpenAIAPIKey, "gpt-4-turbo")
		clients["gpt-4-vision"] = provider.NewOpenAIClient(cfg.OpenAIAPIKey, "gpt-4-vision")
	}

	if cfg.AnthropicAPIKey != "" {
		clients["claude-3-5-sonnet"] = provider.NewAnthropicClient(cfg.AnthropicAPIKey)
	}

	if cfg.BedrockRegion != "" {
		bc, err := provider.NewBedrockClient(ctx, cfg.BedrockRegion)
		if err != nil {
			log.Printf("cli: warning: bedrock client unavailable: %v", err)
		} else {
			clients["claude-3-opus-bedrock"] = bc
		}
	}

	return pipeline.WarmRegistry(clients)
}
