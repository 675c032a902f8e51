package verify

import (
	"context"
	"time"

	adapterllm "github.com/reviewpipe/reviewpipe/internal/adapter/llm"
	llmhttp "github.com/reviewpipe/reviewpipe/internal/adapter/llm/http"
	"github.com/reviewpipe/reviewpipe/internal/llm"
)

// LLMClient is the narrow contract the verification agent needs from an
// LLM: a single prompt pair in, response text and cost telemetry out.
type LLMClient interface {
	Call(ctx context.Context, systemPrompt, userPrompt string) (response string, tokensIn, tokensOut int, cost float64, err error)
}

// DriverLLMClient adapts the C7 driver's llm.ProviderClient (which only
// returns raw text) onto LLMClient by estimating token counts with the
// tiktoken encoder and pricing them against DefaultPricing's published
// rate card, since the provider clients themselves don't surface usage.
type DriverLLMClient struct {
	client   llm.ProviderClient
	pricing  llmhttp.Pricing
	logger   llmhttp.Logger
	metrics  llmhttp.Metrics
	provider string
	model    string
}

// NewDriverLLMClient builds a DriverLLMClient for provider/model, logging
// and metering every call the same way the vendor HTTP clients do.
func NewDriverLLMClient(client llm.ProviderClient, provider, model string) *DriverLLMClient {
	return &DriverLLMClient{
		client:   client,
		pricing:  llmhttp.NewDefaultPricing(),
		logger:   llmhttp.NewDefaultLogger(llmhttp.LogLevelInfo, llmhttp.LogFormatHuman, true),
		metrics:  llmhttp.NewDefaultMetrics(),
		provider: provider,
		model:    model,
	}
}

func (c *DriverLLMClient) Call(ctx context.Context, systemPrompt, userPrompt string) (string, int, int, float64, error) {
	start := time.Now()
	c.metrics.RecordRequest(c.provider, c.model)
	c.logger.LogRequest(ctx, llmhttp.RequestLog{
		Provider:    c.provider,
		Model:       c.model,
		Timestamp:   start,
		PromptChars: len(systemPrompt) + len(userPrompt),
	})

	response, err := c.client.Complete(ctx, systemPrompt, userPrompt)
	duration := time.Since(start)
	if err != nil {
		c.metrics.RecordError(c.provider, c.model, llmhttp.ErrTypeUnknown)
		c.logger.LogError(ctx, llmhttp.ErrorLog{
			Provider:  c.provider,
			Model:     c.model,
			Timestamp: start,
			Duration:  duration,
			Error:     err,
		})
		return "", 0, 0, 0, err
	}

	tokensIn := adapterllm.EstimateTokens(systemPrompt + "\n" + userPrompt)
	tokensOut := adapterllm.EstimateTokens(response)
	cost := c.pricing.GetCost(c.provider, c.model, tokensIn, tokensOut)

	c.metrics.RecordDuration(c.provider, c.model, duration)
	c.metrics.RecordTokens(c.provider, c.model, tokensIn, tokensOut)
	c.metrics.RecordCost(c.provider, c.model, cost)
	c.logger.LogResponse(ctx, llmhttp.ResponseLog{
		Provider:  c.provider,
		Model:     c.model,
		Timestamp: start,
		Duration:  duration,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
		Cost:      cost,
	})

	return response, tokensIn, tokensOut, cost, nil
}

// Stats exposes the accumulated call statistics for this client, for
// callers that want to log spend at the end of a run.
func (c *DriverLLMClient) Stats() llmhttp.Stats {
	return c.metrics.GetStats()
}
