package provider

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/aixgo-dev/aibroker/internal/llm/catalogue"
	"github.com/aixgo-dev/aibroker/internal/llm/domain"
)

const anthropicModel = "claude-3-5-sonnet"

// AnthropicClient backs the catalogue's directly-keyed Claude model
// (distinct from the Bedrock-routed claude-3-opus-bedrock), giving the
// business/agency tier preference lists a client the router can
// actually dispatch to.
type AnthropicClient struct {
	client  anthropic.Client
	limiter *RateLimiter
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		limiter: NewRateLimiter(),
	}
}

func (c *AnthropicClient) Name() string { return "anthropic" }

func (c *AnthropicClient) Generate(ctx context.Context, req domain.Request, temperature float64, maxTokens int) (domain.Response, error) {
	if err := c.limiter.BeforeCall(ctx); err != nil {
		return domain.Response{}, domain.NewTimeout(c.Name(), err)
	}
	start := time.Now()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(anthropicModel),
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: SystemPrompt(req.TaskKind)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Content)),
		},
		Temperature: anthropic.Float(temperature),
	}

	resp, err := c.client.Messages.New(ctx, params)
	c.limiter.DecrementLocal()
	if err != nil {
		return domain.Response{}, classifyAnthropicError(c.Name(), err, ctx)
	}
	if len(resp.Content) == 0 {
		return domain.Response{}, domain.NewProtocolError(c.Name(), "no content blocks returned")
	}

	var content string
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += text.Text
		}
	}

	inputTokens := int(resp.Usage.InputTokens)
	if inputTokens == 0 {
		inputTokens = EstimateTokens(req.Content)
	}
	outputTokens := int(resp.Usage.OutputTokens)
	if outputTokens == 0 {
		outputTokens = EstimateTokens(content)
	}

	model, _ := catalogue.Default.Get(anthropicModel)
	cost := model.Cost.Price(inputTokens, outputTokens, 0)

	quality := QualityHeuristic(req.TaskKind, content, 0.75)
	if isSafetyFinish(string(resp.StopReason)) {
		quality = ApplySafetyPenalty(quality, true)
	}

	return domain.Response{
		Content:        content,
		Model:          anthropicModel,
		InputTokens:    inputTokens,
		OutputTokens:   outputTokens,
		Cost:           cost,
		QualityScore:   &quality,
		ProcessingTime: time.Since(start),
		Timestamp:      time.Now(),
	}, nil
}

func classifyAnthropicError(providerName string, err error, ctx context.Context) error {
	if ctx.Err() != nil {
		return domain.NewTimeout(providerName, err)
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401:
			return domain.NewInvalidCredentials(providerName, apiErr.Error())
		case 429:
			return domain.NewRateLimited(providerName, 1.0)
		case 400:
			return domain.NewBadRequest(providerName, apiErr.Error())
		}
		return domain.NewProtocolError(providerName, apiErr.Error())
	}
	return domain.NewNetworkError(providerName, err)
}

func (c *AnthropicClient) EstimateCost(content string, task domain.TaskKind) float64 {
	model, _ := catalogue.Default.Get(anthropicModel)
	inputTokens := EstimateTokens(content)
	outputTokens := int(float64(inputTokens) * 1.2)
	return model.Cost.Price(inputTokens, outputTokens, 0)
}

func (c *AnthropicClient) TestConnection(ctx context.Context) error {
	_, err := c.Generate(ctx, domain.Request{
		TaskKind:   domain.TaskSummarisation,
		Complexity: 1,
		Content:    "ping",
	}, 0.0, 8)
	return err
}
