package llm

import (
	"context"
	"fmt"
	"time"
)

// DefaultTimeout is the default wall-clock budget for a single Invoke
// call.
const DefaultTimeout = 120 * time.Second

// ProviderClient is the narrow interface each vendor adapter under
// internal/adapter/llm/{anthropic,openai,gemini,ollama} implements: send
// the composed prompt pair, get back raw provider text. The recovery
// pipeline in recovery.go is vendor-agnostic and runs on that text
// regardless of which client produced it.
type ProviderClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config selects a provider, its model, and timeout. Model and client
// construction happen once at startup; a missing API key or model name
// is a ConfigError raised there, never per-request.
type Config struct {
	Provider Provider
	Model    string
	Timeout  time.Duration
}

// Driver implements the C7 contract: Invoke(systemPrompt, userPrompt)
// returns a recovered, normalized ReviewResultSchema.
type Driver struct {
	cfg    Config
	client ProviderClient
}

// NewDriver builds a Driver. client must be non-nil; use NewConfigError
// at construction sites that lack an API key or model rather than
// constructing a Driver that will fail per-request.
func NewDriver(cfg Config, client ProviderClient) *Driver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Driver{cfg: cfg, client: client}
}

// Invoke sends the prompt pair to the configured provider under the
// driver's timeout and recovers a ReviewResultSchema from the response.
func (d *Driver) Invoke(ctx context.Context, systemPrompt, userPrompt string) (ReviewResultSchema, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	raw, err := d.client.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return ReviewResultSchema{}, &ProviderError{
			Provider:  d.cfg.Provider,
			Message:   err.Error(),
			Retryable: true,
		}
	}

	result, err := Recover(raw)
	if err != nil {
		return ReviewResultSchema{}, err
	}
	return result, nil
}

// ParseProvider maps a configuration string onto a Provider, returning
// an error for anything outside the enumerated set.
func ParseProvider(s string) (Provider, error) {
	switch Provider(normalizeProviderName(s)) {
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderAnthropic:
		return ProviderAnthropic, nil
	case ProviderGemini:
		return ProviderGemini, nil
	case ProviderOllama:
		return ProviderOllama, nil
	}
	return "", fmt.Errorf("llm: unknown provider %q", s)
}

func normalizeProviderName(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
