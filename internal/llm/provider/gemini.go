package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/aixgo-dev/aibroker/internal/llm/catalogue"
	"github.com/aixgo-dev/aibroker/internal/llm/domain"
)

// GeminiClient calls one Gemini model variant; the catalogue
// carries both gemini-1.5-flash and gemini-1.5-pro as separate entries
// sharing this client shape.
type GeminiClient struct {
	variant string // catalogue model id, e.g. "gemini-1.5-flash"
	client  *genai.Client
	limiter *RateLimiter
}

// NewGeminiClient builds a client for one Gemini model variant. Gemini
// never returns rate-limit headers, so this client only ever drives its
// limiter through DecrementLocal (spec.md §4.A).
func NewGeminiClient(ctx context.Context, apiKey, variant string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiClient{variant: variant, client: client, limiter: NewRateLimiter()}, nil
}

func (c *GeminiClient) Name() string { return "gemini" }

var geminiSafetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
}

func (c *GeminiClient) Generate(ctx context.Context, req domain.Request, temperature float64, maxTokens int) (domain.Response, error) {
	if err := c.limiter.BeforeCall(ctx); err != nil {
		return domain.Response{}, domain.NewTimeout(c.Name(), err)
	}
	start := time.Now()

	temp := float32(temperature)
	topP := float32(0.95)
	topK := float32(40)
	maxOut := int32(maxTokens)

	config := &genai.GenerateContentConfig{
		Temperature:       &temp,
		TopP:              &topP,
		TopK:              &topK,
		CandidateCount:    1,
		MaxOutputTokens:   maxOut,
		SafetySettings:    geminiSafetySettings,
		SystemInstruction: genai.NewContentFromText(SystemPrompt(req.TaskKind), genai.RoleUser),
	}

	result, err := c.client.Models.GenerateContent(ctx, c.variant, genai.Text(req.Content), config)
	c.limiter.DecrementLocal()
	if err != nil {
		if ctx.Err() != nil {
			return domain.Response{}, domain.NewTimeout(c.Name(), err)
		}
		if isGeminiAuthError(err) {
			return domain.Response{}, domain.NewInvalidCredentials(c.Name(), err.Error())
		}
		return domain.Response{}, domain.NewNetworkError(c.Name(), err)
	}
	if result == nil || len(result.Candidates) == 0 {
		return domain.Response{}, domain.NewProtocolError(c.Name(), "no candidates returned")
	}

	candidate := result.Candidates[0]
	content := candidateText(candidate)

	inputTokens := 0
	outputTokens := 0
	if result.UsageMetadata != nil {
		inputTokens = int(result.UsageMetadata.PromptTokenCount)
		outputTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}
	if inputTokens == 0 {
		inputTokens = EstimateTokens(req.Content)
	}
	if outputTokens == 0 {
		outputTokens = EstimateTokens(content)
	}

	model, _ := catalogue.Default.Get(c.variant)
	cost := model.Cost.Price(inputTokens, outputTokens, 0)

	quality := QualityHeuristic(req.TaskKind, content, 0.70)
	if isSafetyFinish(string(candidate.FinishReason)) {
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

func candidateText(candidate *genai.Candidate) string {
	if candidate.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

func isGeminiAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "api key") || strings.Contains(msg, "unauthenticated") || strings.Contains(msg, "permission_denied")
}

func (c *GeminiClient) EstimateCost(content string, task domain.TaskKind) float64 {
	model, _ := catalogue.Default.Get(c.variant)
	inputTokens := EstimateTokens(content)
	outputTokens := int(float64(inputTokens) * 1.2)
	return model.Cost.Price(inputTokens, outputTokens, 0)
}

func (c *GeminiClient) TestConnection(ctx context.Context) error {
	_, err := c.Generate(ctx, domain.Request{
		TaskKind:   domain.TaskSummarisation,
		Complexity: 1,
		Content:    "ping",
	}, 0.0, 8)
	return err
}
