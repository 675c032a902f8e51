package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/reviewpipe/reviewpipe/internal/config"
	"github.com/reviewpipe/reviewpipe/internal/domain"
)

// Verifier re-examines a candidate finding against the real codebase
// before the worker publishes it, surfacing a confidence-scored verdict.
type Verifier interface {
	Verify(ctx context.Context, candidate domain.CandidateFinding) (domain.VerificationResult, error)
	VerifyBatch(ctx context.Context, candidates []domain.CandidateFinding) ([]domain.VerificationResult, error)
}

// AgentConfig configures the verification agent's behavior.
type AgentConfig struct {
	// MaxIterations limits the number of tool calls per verification.
	MaxIterations int

	// Concurrency limits parallel verifications within VerifyBatch.
	Concurrency int

	// Confidence thresholds per severity level.
	Confidence config.ConfidenceThresholds

	// Depth controls verification thoroughness: "quick", "medium", "deep".
	Depth string
}

// DefaultAgentConfig returns sensible defaults.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		MaxIterations: 10,
		Concurrency:   5,
		Confidence: config.ConfidenceThresholds{
			Critical: 50,
			High:     60,
			Medium:   70,
			Low:      80,
		},
		Depth: "medium",
	}
}

// AgentVerifier verifies candidate findings with an LLM that alternates
// between tool calls (read_file/grep/glob/bash against a Repository) and
// a final JSON verdict.
type AgentVerifier struct {
	llm         LLMClient
	repo        Repository
	tools       []Tool
	toolMap     map[string]Tool
	config      AgentConfig
	costTracker CostTracker
}

// NewAgentVerifier creates a new agent-based verifier.
func NewAgentVerifier(llmClient LLMClient, repo Repository, costTracker CostTracker, cfg AgentConfig) *AgentVerifier {
	tools := NewToolRegistry(repo)
	toolMap := make(map[string]Tool, len(tools))
	for _, t := range tools {
		toolMap[t.Name()] = t
	}
	return &AgentVerifier{
		llm:         llmClient,
		repo:        repo,
		tools:       tools,
		toolMap:     toolMap,
		config:      cfg,
		costTracker: costTracker,
	}
}

// Verify checks a single candidate finding and returns the verification result.
func (v *AgentVerifier) Verify(ctx context.Context, candidate domain.CandidateFinding) (domain.VerificationResult, error) {
	if v.costTracker != nil && v.costTracker.ExceedsCeiling() {
		return domain.VerificationResult{
			Verified:   false,
			Confidence: 0,
			Evidence:   "Cost ceiling exceeded, unable to verify",
		}, nil
	}

	systemPrompt := VerificationPrompt(v.tools)
	userPrompt := CandidatePrompt(candidate)

	var actions []domain.VerificationAction
	var lastResponse string

	for i := 0; i < v.config.MaxIterations; i++ {
		if ctx.Err() != nil {
			return domain.VerificationResult{}, ctx.Err()
		}
		if v.costTracker != nil && v.costTracker.ExceedsCeiling() {
			break
		}

		response, _, _, cost, err := v.llm.Call(ctx, systemPrompt, userPrompt)
		if err != nil {
			return domain.VerificationResult{}, fmt.Errorf("llm call: %w", err)
		}
		if v.costTracker != nil {
			v.costTracker.AddCost(cost)
		}
		lastResponse = response

		if result, ok := parseVerdict(response); ok {
			result.Actions = actions
			return result, nil
		}

		toolName, toolInput, ok := parseToolCall(response)
		if !ok {
			break
		}

		tool, exists := v.toolMap[toolName]
		if !exists {
			userPrompt = fmt.Sprintf("Unknown tool: %s. Available tools: %v", toolName, v.toolNames())
			continue
		}

		output, err := tool.Execute(ctx, toolInput)
		if err != nil {
			output = fmt.Sprintf("Error: %v", err)
		}
		actions = append(actions, domain.VerificationAction{
			Tool:   toolName,
			Input:  toolInput,
			Output: truncateOutput(output),
		})
		userPrompt = ToolResultPrompt(toolName, toolInput, output)
	}

	if result, ok := parseVerdict(lastResponse); ok {
		result.Actions = actions
		return result, nil
	}

	return domain.VerificationResult{
		Verified:   false,
		Confidence: 0,
		Evidence:   "Unable to determine verification status after investigation",
		Actions:    actions,
	}, nil
}

// VerifyBatch verifies candidates concurrently, bounded by
// config.Concurrency. The cost ceiling check is best-effort under
// concurrency: it's a soft limit against runaway spend, not a hard
// budget guarantee. Use Concurrency=1 for strict enforcement.
func (v *AgentVerifier) VerifyBatch(ctx context.Context, candidates []domain.CandidateFinding) ([]domain.VerificationResult, error) {
	if len(candidates) == 0 {
		return []domain.VerificationResult{}, nil
	}

	results := make([]domain.VerificationResult, len(candidates))
	errs := make([]error, len(candidates))

	sem := make(chan struct{}, v.config.Concurrency)
	var wg sync.WaitGroup

	for i, candidate := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		wg.Add(1)
		go func(idx int, cand domain.CandidateFinding) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				errs[idx] = ctx.Err()
				return
			}
			if v.costTracker != nil && v.costTracker.ExceedsCeiling() {
				results[idx] = domain.VerificationResult{
					Verified:   false,
					Confidence: 0,
					Evidence:   "Cost ceiling exceeded, unable to verify",
				}
				return
			}

			result, err := v.Verify(ctx, cand)
			if err != nil {
				errs[idx] = err
				return
			}
			results[idx] = result
		}(i, candidate)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("verifying candidate %d: %w", i, err)
		}
	}
	return results, nil
}

var _ Verifier = (*AgentVerifier)(nil)

type verdictResponse struct {
	Verified        bool   `json:"verified"`
	Classification  string `json:"classification"`
	Confidence      int    `json:"confidence"`
	Evidence        string `json:"evidence"`
	BlocksOperation bool   `json:"blocks_operation"`
}

func parseVerdict(response string) (domain.VerificationResult, bool) {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return domain.VerificationResult{}, false
	}
	var verdict verdictResponse
	if err := json.Unmarshal([]byte(jsonStr), &verdict); err != nil {
		return domain.VerificationResult{}, false
	}
	if verdict.Evidence == "" && verdict.Confidence == 0 {
		return domain.VerificationResult{}, false
	}
	result := domain.VerificationResult{
		Verified:       verdict.Verified,
		Classification: domain.Classification(verdict.Classification),
		Confidence:     verdict.Confidence,
		Evidence:       verdict.Evidence,
	}
	result.BlocksOperation = ShouldBlockOperation(result)
	return result, true
}

var toolCallPattern = regexp.MustCompile(`(?s)TOOL:\s*(\w+)\s*\nINPUT:\s*(.+?)(?:\n|$)`)

func parseToolCall(response string) (toolName, input string, ok bool) {
	matches := toolCallPattern.FindStringSubmatch(response)
	if len(matches) >= 3 {
		return strings.TrimSpace(matches[1]), strings.TrimSpace(matches[2]), true
	}
	return "", "", false
}

func (v *AgentVerifier) toolNames() []string {
	names := make([]string, len(v.tools))
	for i, t := range v.tools {
		names[i] = t.Name()
	}
	return names
}

var codeBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.+?)\\n?```")
var jsonObjectPattern = regexp.MustCompile(`(?s)\{.+\}`)

func extractJSON(text string) string {
	if matches := codeBlockPattern.FindStringSubmatch(text); len(matches) >= 2 {
		candidate := strings.TrimSpace(matches[1])
		if isValidJSON(candidate) {
			return candidate
		}
	}
	if matches := jsonObjectPattern.FindString(text); matches != "" {
		if isValidJSON(matches) {
			return matches
		}
	}
	return ""
}

func isValidJSON(s string) bool {
	var js json.RawMessage
	return json.Unmarshal([]byte(s), &js) == nil
}
