// Package bridge adapts each vendor HTTP client's single-prompt Call
// method onto the C7 driver's llm.ProviderClient port
// (Complete(ctx, systemPrompt, userPrompt) (string, error)). The driver
// only needs raw provider text back — it recovers the ReviewResultSchema
// itself — so no per-vendor response parsing belongs here.
package bridge

import (
	"context"

	"github.com/reviewpipe/reviewpipe/internal/adapter/llm/anthropic"
	"github.com/reviewpipe/reviewpipe/internal/adapter/llm/gemini"
	"github.com/reviewpipe/reviewpipe/internal/adapter/llm/ollama"
	"github.com/reviewpipe/reviewpipe/internal/adapter/llm/openai"
)

// OpenAI wraps an openai.HTTPClient as an llm.ProviderClient.
type OpenAI struct {
	Client *openai.HTTPClient
}

func (o OpenAI) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := o.Client.Call(ctx, userPrompt, openai.CallOptions{System: systemPrompt})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Anthropic wraps an anthropic.HTTPClient as an llm.ProviderClient.
type Anthropic struct {
	Client *anthropic.HTTPClient
}

func (a Anthropic) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := a.Client.Call(ctx, userPrompt, anthropic.CallOptions{System: systemPrompt})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Gemini wraps a gemini.HTTPClient as an llm.ProviderClient. The Gemini
// client has no separate system-prompt slot, so the system prompt is
// prefixed onto the user prompt.
type Gemini struct {
	Client *gemini.HTTPClient
}

func (g Gemini) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := g.Client.Call(ctx, prefixSystem(systemPrompt, userPrompt), gemini.CallOptions{})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Ollama wraps an ollama.HTTPClient as an llm.ProviderClient, prefixing
// the system prompt the same way Gemini does.
type Ollama struct {
	Client *ollama.HTTPClient
}

func (o Ollama) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := o.Client.Call(ctx, prefixSystem(systemPrompt, userPrompt), ollama.CallOptions{})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func prefixSystem(systemPrompt, userPrompt string) string {
	if systemPrompt == "" {
		return userPrompt
	}
	return systemPrompt + "\n\n" + userPrompt
}
