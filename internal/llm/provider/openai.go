package provider

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aixgo-dev/aibroker/internal/llm/catalogue"
	"github.com/aixgo-dev/aibroker/internal/llm/domain"
)

// OpenAIClient backs the catalogue's enterprise-tier models
// (gpt-4-turbo, gpt-4-vision) through the go-openai SDK, the same
// client the teacher's huggingface/openai provider files relied on for
// chat completions.
type OpenAIClient struct {
	variant string
	client  *openai.Client
	limiter *RateLimiter
}

func NewOpenAIClient(apiKey, variant string) *OpenAIClient {
	return &OpenAIClient{
		variant: variant,
		client:  openai.NewClient(apiKey),
		limiter: NewRateLimiter(),
	}
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) Generate(ctx context.Context, req domain.Request, temperature float64, maxTokens int) (domain.Response, error) {
	if err := c.limiter.BeforeCall(ctx); err != nil {
		return domain.Response{}, domain.NewTimeout(c.Name(), err)
	}
	start := time.Now()

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(req.TaskKind)},
		{Role: openai.ChatMessageRoleUser, Content: req.Content},
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.variant,
		Messages:    messages,
		Temperature: float32(temperature),
		MaxTokens:   maxTokens,
	})
	c.updateRateLimitFromHeaders(resp)
	if err != nil {
		return domain.Response{}, classifyOpenAIError(c.Name(), err, ctx)
	}
	if len(resp.Choices) == 0 {
		return domain.Response{}, domain.NewProtocolError(c.Name(), "no choices returned")
	}

	content := resp.Choices[0].Message.Content
	inputTokens := resp.Usage.PromptTokens
	if inputTokens == 0 {
		inputTokens = EstimateTokens(req.Content)
	}
	outputTokens := resp.Usage.CompletionTokens
	if outputTokens == 0 {
		outputTokens = EstimateTokens(content)
	}

	model, _ := catalogue.Default.Get(c.variant)
	images := 0
	if req.RequiresVision {
		images = 1
	}
	cost := model.Cost.Price(inputTokens, outputTokens, images)

	quality := QualityHeuristic(req.TaskKind, content, 0.75)
	if isSafetyFinish(string(resp.Choices[0].FinishReason)) {
		quality = ApplySafetyPenalty(quality, true)
	}

	return domain.Response{
		Content:        content,
		Model:          c.variant,
		InputTokens:    inputTokens,
		OutputTokens:   outputTokens,
		Cost:           cost,
		QualityScore:   &quality,
		ProcessingTime: time.Since(start),
		Timestamp:      time.Now(),
	}, nil
}

// updateRateLimitFromHeaders reads no headers: go-openai does not
// surface response headers from CreateChatCompletion, so this client
// decrements the local estimate like Gemini does.
func (c *OpenAIClient) updateRateLimitFromHeaders(_ openai.ChatCompletionResponse) {
	c.limiter.DecrementLocal()
}

func classifyOpenAIError(providerName string, err error, ctx context.Context) error {
	if ctx.Err() != nil {
		return domain.NewTimeout(providerName, err)
	}
	var apiErr *openai.APIError
	if ok := asOpenAIAPIError(err, &apiErr); ok {
		switch apiErr.HTTPStatusCode {
		case 401:
			return domain.NewInvalidCredentials(providerName, apiErr.Message)
		case 429:
			return domain.NewRateLimited(providerName, 1.0)
		case 400:
			return domain.NewBadRequest(providerName, apiErr.Message)
		}
		return domain.NewProtocolError(providerName, apiErr.Message)
	}
	return domain.NewNetworkError(providerName, err)
}

func asOpenAIAPIError(err error, target **openai.APIError) bool {
	if apiErr, ok := err.(*openai.APIError); ok {
		*target = apiErr
		return true
	}
	return false
}

func (c *OpenAIClient) EstimateCost(content string, task domain.TaskKind) float64 {
	model, _ := catalogue.Default.Get(c.variant)
	inputTokens := EstimateTokens(content)
	outputTokens := int(float64(inputTokens) * 1.2)
	return model.Cost.Price(inputTokens, outputTokens, 0)
}

func (c *OpenAIClient) TestConnection(ctx context.Context) error {
	_, err := c.Generate(ctx, domain.Request{
		TaskKind:   domain.TaskSummarisation,
		Complexity: 1,
		Content:    "ping",
	}, 0.0, 8)
	return err
}
