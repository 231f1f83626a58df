package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aixgo-dev/aibroker/internal/llm/catalogue"
	"github.com/aixgo-dev/aibroker/internal/llm/domain"
)

const deepseekModel = "deepseek-v3"
const deepseekDefaultBaseURL = "https://api.deepseek.com"

// DeepSeekClient speaks the DeepSeek chat-completions API directly:
// there is no official Go SDK in the examined dependency corpus for it,
// so this talks plain JSON over net/http the way spec.md §6.1 specifies
// bit-for-bit (see DESIGN.md for why no third-party client is used
// here).
type DeepSeekClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *RateLimiter
	timeout time.Duration
}

func NewDeepSeekClient(apiKey, baseURL string) *DeepSeekClient {
	if baseURL == "" {
		baseURL = deepseekDefaultBaseURL
	}
	return &DeepSeekClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
		limiter: NewRateLimiter(),
		timeout: 60 * time.Second,
	}
}

func (c *DeepSeekClient) Name() string { return "deepseek" }

type deepseekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepseekRequest struct {
	Model            string             `json:"model"`
	Messages         []deepseekMessage  `json:"messages"`
	Temperature      float64            `json:"temperature"`
	MaxTokens        int                `json:"max_tokens"`
	TopP             float64            `json:"top_p"`
	FrequencyPenalty float64            `json:"frequency_penalty"`
	PresencePenalty  float64            `json:"presence_penalty"`
	Stream           bool               `json:"stream"`
}

type deepseekUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type deepseekChoice struct {
	Message      deepseekMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type deepseekResponse struct {
	Choices []deepseekChoice `json:"choices"`
	Usage   deepseekUsage    `json:"usage"`
}

func (c *DeepSeekClient) Generate(ctx context.Context, req domain.Request, temperature float64, maxTokens int) (domain.Response, error) {
	if err := c.limiter.BeforeCall(ctx); err != nil {
		return domain.Response{}, domain.NewTimeout(c.Name(), err)
	}

	start := time.Now()
	body := deepseekRequest{
		Model: deepseekModel,
		Messages: []deepseekMessage{
			{Role: "system", Content: SystemPrompt(req.TaskKind)},
			{Role: "user", Content: req.Content},
		},
		Temperature:      temperature,
		MaxTokens:        maxTokens,
		TopP:             0.95,
		FrequencyPenalty: 0,
		PresencePenalty:  0,
		Stream:           false,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return domain.Response{}, domain.NewBadRequest(c.Name(), err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return domain.Response{}, domain.NewBadRequest(c.Name(), err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Response{}, domain.NewTimeout(c.Name(), err)
		}
		return domain.Response{}, domain.NewNetworkError(c.Name(), err)
	}
	defer resp.Body.Close()

	c.updateRateLimitFromHeaders(resp.Header)

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Response{}, domain.NewNetworkError(c.Name(), err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through
	case http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return domain.Response{}, domain.NewRateLimited(c.Name(), retryAfter)
	case http.StatusUnauthorized:
		return domain.Response{}, domain.NewInvalidCredentials(c.Name(), string(payload))
	case http.StatusBadRequest:
		return domain.Response{}, domain.NewBadRequest(c.Name(), string(payload))
	default:
		return domain.Response{}, domain.NewProtocolError(c.Name(), fmt.Sprintf("status %d: %s", resp.StatusCode, string(payload)))
	}

	var parsed deepseekResponse
	if err := json.Unmarshal(payload, &parsed); err != nil || len(parsed.Choices) == 0 {
		return domain.Response{}, domain.NewProtocolError(c.Name(), "unexpected response shape")
	}

	content := parsed.Choices[0].Message.Content
	inputTokens := parsed.Usage.PromptTokens
	if inputTokens == 0 {
		inputTokens = EstimateTokens(req.Content)
	}
	outputTokens := parsed.Usage.CompletionTokens
	if outputTokens == 0 {
		outputTokens = EstimateTokens(content)
	}

	model, _ := catalogue.Default.Get(deepseekModel)
	cost := model.Cost.Price(inputTokens, outputTokens, 0)

	quality := QualityHeuristic(req.TaskKind, content, 0.72)
	if isSafetyFinish(parsed.Choices[0].FinishReason) {
		quality = ApplySafetyPenalty(quality, true)
	}

	return domain.Response{
		Content:        content,
		Model:          deepseekModel,
		InputTokens:    inputTokens,
		OutputTokens:   outputTokens,
		Cost:           cost,
		QualityScore:   &quality,
		ProcessingTime: time.Since(start),
		Timestamp:      time.Now(),
	}, nil
}

func (c *DeepSeekClient) updateRateLimitFromHeaders(h http.Header) {
	remaining, ok := parseIntHeader(h.Get("x-ratelimit-remaining"))
	if !ok {
		c.limiter.DecrementLocal()
		return
	}
	resetSeconds, _ := parseIntHeader(h.Get("x-ratelimit-reset"))
	resetAt := time.Now().Add(time.Duration(resetSeconds) * time.Second)
	c.limiter.UpdateFromHeaders(remaining, resetAt)
}

func parseIntHeader(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseRetryAfter(v string) float64 {
	if v == "" {
		return 1.0
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n
	}
	return 1.0
}

func isSafetyFinish(reason string) bool {
	lower := strings.ToLower(reason)
	return strings.Contains(lower, "safety") || strings.Contains(lower, "content_filter")
}

func (c *DeepSeekClient) EstimateCost(content string, task domain.TaskKind) float64 {
	model, _ := catalogue.Default.Get(deepseekModel)
	inputTokens := EstimateTokens(content)
	outputTokens := int(float64(inputTokens) * 1.2)
	return model.Cost.Price(inputTokens, outputTokens, 0)
}

func (c *DeepSeekClient) TestConnection(ctx context.Context) error {
	_, err := c.Generate(ctx, domain.Request{
		TaskKind:   domain.TaskSummarisation,
		Complexity: 1,
		Content:    "ping",
	}, 0.0, 8)
	return err
}
