package verify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reviewpipe/reviewpipe/internal/domain"
	"github.com/reviewpipe/reviewpipe/internal/verify"
)

type fakeLLMClient struct {
	responses []string
	calls     int
	err       error
}

func (f *fakeLLMClient) Call(ctx context.Context, systemPrompt, userPrompt string) (string, int, int, float64, error) {
	if f.err != nil {
		return "", 0, 0, 0, f.err
	}
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	return f.responses[idx], 10, 10, 0.01, nil
}

func candidate(file string) domain.CandidateFinding {
	return domain.CandidateFinding{
		Finding: domain.Finding{
			ID:          "f1",
			File:        file,
			LineStart:   1,
			LineEnd:     1,
			Severity:    "major",
			Description: "nil dereference",
		},
		AgreementScore: 1,
		Sources:        []string{"llm"},
	}
}

func TestAgentVerifier_VerifyParsesImmediateVerdict(t *testing.T) {
	root := t.TempDir()
	llm := &fakeLLMClient{responses: []string{
		"```json\n{\"verified\": true, \"classification\": \"blocking_bug\", \"confidence\": 85, \"evidence\": \"confirmed in main.go\"}\n```",
	}}
	v := verify.NewAgentVerifier(llm, verify.NewLocalRepository(root), verify.NewCostTracker(10), verify.DefaultAgentConfig())

	result, err := v.Verify(context.Background(), candidate("main.go"))
	require.NoError(t, err)
	require.True(t, result.Verified)
	require.Equal(t, 85, result.Confidence)
	require.Equal(t, domain.ClassBlockingBug, result.Classification)
}

func TestAgentVerifier_VerifyReturnsUnverifiedWhenCeilingExceeded(t *testing.T) {
	root := t.TempDir()
	llm := &fakeLLMClient{responses: []string{"irrelevant"}}
	tracker := verify.NewCostTracker(0)
	v := verify.NewAgentVerifier(llm, verify.NewLocalRepository(root), tracker, verify.DefaultAgentConfig())

	result, err := v.Verify(context.Background(), candidate("main.go"))
	require.NoError(t, err)
	require.False(t, result.Verified)
	require.Equal(t, 0, llm.calls)
}

func TestAgentVerifier_VerifyPropagatesLLMError(t *testing.T) {
	root := t.TempDir()
	llm := &fakeLLMClient{err: errors.New("provider unavailable")}
	v := verify.NewAgentVerifier(llm, verify.NewLocalRepository(root), verify.NewCostTracker(10), verify.DefaultAgentConfig())

	_, err := v.Verify(context.Background(), candidate("main.go"))
	require.Error(t, err)
}

func TestAgentVerifier_VerifyBatchRunsAllCandidates(t *testing.T) {
	root := t.TempDir()
	llm := &fakeLLMClient{responses: []string{
		"```json\n{\"verified\": true, \"classification\": \"style\", \"confidence\": 70, \"evidence\": \"e\"}\n```",
	}}
	v := verify.NewAgentVerifier(llm, verify.NewLocalRepository(root), verify.NewCostTracker(10), verify.DefaultAgentConfig())

	results, err := v.VerifyBatch(context.Background(), []domain.CandidateFinding{
		candidate("a.go"), candidate("b.go"), candidate("c.go"),
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		require.True(t, r.Verified)
	}
}

func TestAgentVerifier_VerifyBatchEmpty(t *testing.T) {
	root := t.TempDir()
	llm := &fakeLLMClient{}
	v := verify.NewAgentVerifier(llm, verify.NewLocalRepository(root), verify.NewCostTracker(10), verify.DefaultAgentConfig())

	results, err := v.VerifyBatch(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, results)
}

var _ verify.LLMClient = (*fakeLLMClient)(nil)
