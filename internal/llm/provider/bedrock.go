package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/aixgo-dev/aibroker/internal/llm/catalogue"
	"github.com/aixgo-dev/aibroker/internal/llm/domain"
)

const bedrockModel = "claude-3-opus-bedrock"
const bedrockModelARN = "anthropic.claude-3-opus-20240229-v1:0"

// BedrockClient gives the agency tier a premium alternative to the
// directly-keyed Anthropic/OpenAI/Gemini clients, served through AWS
// Bedrock's InvokeModel API using Anthropic's Messages wire format.
type BedrockClient struct {
	client  *bedrockruntime.Client
	limiter *RateLimiter
}

func NewBedrockClient(ctx context.Context, region string) (*BedrockClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("provider: load aws config: %w", err)
	}
	return &BedrockClient{
		client:  bedrockruntime.NewFromConfig(cfg),
		limiter: NewRateLimiter(),
	}, nil
}

func (c *BedrockClient) Name() string { return "bedrock" }

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float64          `json:"temperature"`
	System           string           `json:"system"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type bedrockUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type bedrockResponse struct {
	Content    []bedrockContentBlock `json:"content"`
	StopReason string                `json:"stop_reason"`
	Usage      bedrockUsage          `json:"usage"`
}

func (c *BedrockClient) Generate(ctx context.Context, req domain.Request, temperature float64, maxTokens int) (domain.Response, error) {
	if err := c.limiter.BeforeCall(ctx); err != nil {
		return domain.Response{}, domain.NewTimeout(c.Name(), err)
	}
	start := time.Now()

	body := bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Temperature:      temperature,
		System:           SystemPrompt(req.TaskKind),
		Messages:         []bedrockMessage{{Role: "user", Content: req.Content}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.Response{}, domain.NewBadRequest(c.Name(), err.Error())
	}

	out, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(bedrockModelARN),
		Body:        payload,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	c.limiter.DecrementLocal()
	if err != nil {
		return domain.Response{}, classifyBedrockError(c.Name(), err, ctx)
	}

	var parsed bedrockResponse
	if err := json.Unmarshal(out.Body, &parsed); err != nil || len(parsed.Content) == 0 {
		return domain.Response{}, domain.NewProtocolError(c.Name(), "unexpected response shape")
	}

	content := parsed.Content[0].Text
	inputTokens := parsed.Usage.InputTokens
	if inputTokens == 0 {
		inputTokens = EstimateTokens(req.Content)
	}
	outputTokens := parsed.Usage.OutputTokens
	if outputTokens == 0 {
		outputTokens = EstimateTokens(content)
	}

	model, _ := catalogue.Default.Get(bedrockModel)
	cost := model.Cost.Price(inputTokens, outputTokens, 0)

	quality := QualityHeuristic(req.TaskKind, content, 0.75)
	if isSafetyFinish(parsed.StopReason) {
		quality = ApplySafetyPenalty(quality, true)
	}

	return domain.Response{
		Content:        content,
		Model:          bedrockModel,
		InputTokens:    inputTokens,
		OutputTokens:   outputTokens,
		Cost:           cost,
		QualityScore:   &quality,
		ProcessingTime: time.Since(start),
		Timestamp:      time.Now(),
	}, nil
}

func classifyBedrockError(providerName string, err error, ctx context.Context) error {
	if ctx.Err() != nil {
		return domain.NewTimeout(providerName, err)
	}

	var throttled *types.ThrottlingException
	if errors.As(err, &throttled) {
		return domain.NewRateLimited(providerName, 1.0)
	}
	var denied *types.AccessDeniedException
	if errors.As(err, &denied) {
		return domain.NewInvalidCredentials(providerName, denied.ErrorMessage())
	}
	var badReq *types.ValidationException
	if errors.As(err, &badReq) {
		return domain.NewBadRequest(providerName, badReq.ErrorMessage())
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return domain.NewProtocolError(providerName, respErr.Error())
	}
	return domain.NewNetworkError(providerName, err)
}

func (c *BedrockClient) EstimateCost(content string, task domain.TaskKind) float64 {
	model, _ := catalogue.Default.Get(bedrockModel)
	inputTokens := EstimateTokens(content)
	outputTokens := int(float64(inputTokens) * 1.2)
	return model.Cost.Price(inputTokens, outputTokens, 0)
}

func (c *BedrockClient) TestConnection(ctx context.Context) error {
	_, err := c.Generate(ctx, domain.Request{
		TaskKind:   domain.TaskSummarisation,
		Complexity: 1,
		Content:    "ping",
	}, 0.0, 8)
	return err
}
