// Package llm is the generative-text capability and its HTTP backends.
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielpatrickdp/buildstreak-agent/internal/config"
)

// #region types

// Request is one completion call.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Generator turns a prompt into candidate text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

var (
	ErrNoProvider  = errors.New("no text provider configured (need OPENROUTER_API_KEY or ANTHROPIC_API_KEY)")
	ErrEmpty       = errors.New("empty completion")
	ErrUnavailable = errors.New("text provider unavailable")
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"

	defaultOpenRouterModel = "anthropic/claude-3.5-haiku"
	defaultAnthropicModel  = "claude-3-5-haiku-20241022"
)

// #endregion types

// #region select

// New selects one backend. An explicit PROMPT_PROVIDER wins when its key is
// present, otherwise OpenRouter then Anthropic by key presence. The returned
// generator is wrapped in a circuit breaker.
func New(cfg config.LLM, client *http.Client) (Generator, string, error) {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch {
	case name == ProviderOpenRouter && cfg.OpenRouterKey != "":
	case name == ProviderAnthropic && cfg.AnthropicKey != "":
	case cfg.OpenRouterKey != "":
		name = ProviderOpenRouter
	case cfg.AnthropicKey != "":
		name = ProviderAnthropic
	default:
		return nil, "", ErrNoProvider
	}

	var g Generator
	if name == ProviderOpenRouter {
		g = &OpenRouter{URL: cfg.OpenRouterURL, Key: cfg.OpenRouterKey, Model: modelOr(cfg.Model, defaultOpenRouterModel), Client: client}
	} else {
		g = &Anthropic{URL: cfg.AnthropicURL, Key: cfg.AnthropicKey, Model: modelOr(cfg.Model, defaultAnthropicModel), Client: client}
	}
	return WithBreaker(g, name), name, nil
}

func modelOr(model, fallback string) string {
	if model != "" {
		return model
	}
	return fallback
}

// #endregion select
