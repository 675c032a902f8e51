package verify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reviewpipe/reviewpipe/internal/verify"
)

type fakeProviderClient struct {
	response string
	err      error
}

func (f *fakeProviderClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestDriverLLMClient_CallReturnsTokensAndCost(t *testing.T) {
	client := verify.NewDriverLLMClient(&fakeProviderClient{response: "verdict text"}, "anthropic", "claude-3")

	response, tokensIn, tokensOut, cost, err := client.Call(context.Background(), "system", "user")
	require.NoError(t, err)
	require.Equal(t, "verdict text", response)
	require.Positive(t, tokensIn)
	require.Positive(t, tokensOut)
	require.GreaterOrEqual(t, cost, 0.0)

	stats := client.Stats()
	require.Equal(t, 1, stats.TotalRequests)
}

func TestDriverLLMClient_CallPropagatesProviderError(t *testing.T) {
	client := verify.NewDriverLLMClient(&fakeProviderClient{err: errors.New("rate limited")}, "anthropic", "claude-3")

	_, _, _, _, err := client.Call(context.Background(), "system", "user")
	require.Error(t, err)

	stats := client.Stats()
	require.Equal(t, 1, stats.ErrorCount)
}
