package llm

import "fmt"

// JsonValidationError reports model output that survived every recovery
// step in recovery.go and still did not parse into ReviewResultSchema.
// This finalizes the request as FAILED without retry.
type JsonValidationError struct {
	Raw    string
	Reason string
}

func (e *JsonValidationError) Error() string {
	return fmt.Sprintf("llm: json validation: %s", e.Reason)
}

// ProviderError wraps a transient failure from the provider transport
// (timeout, 5xx, rate limit). Callers retry these with backoff.
type ProviderError struct {
	Provider  Provider
	Message   string
	Retryable bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm: %s: %s", e.Provider, e.Message)
}

// ConfigError reports a missing API key or model name. It is raised at
// startup construction time, never per-request, so it must fail the
// process fast rather than surface mid-pipeline.
type ConfigError struct {
	Provider Provider
	Field    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("llm: config: %s missing %s", e.Provider, e.Field)
}
