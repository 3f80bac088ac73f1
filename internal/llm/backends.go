package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/danielpatrickdp/buildstreak-agent/internal/telemetry"
)

// #region wire

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Messages    []chatMessage `json:"messages"`
}

type openRouterResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// #endregion wire

// #region openrouter

// OpenRouter calls an OpenAI-compatible chat completions endpoint.
type OpenRouter struct {
	URL    string
	Key    string
	Model  string
	Client *http.Client
}

func (o *OpenRouter) Generate(ctx context.Context, req Request) (string, error) {
	body := openRouterRequest{
		Model:       o.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + o.Key}

	var resp openRouterResponse
	if err := postJSON(ctx, o.Client, ProviderOpenRouter, o.URL, headers, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmpty
	}
	return nonEmpty(resp.Choices[0].Message.Content)
}

// #endregion openrouter

// #region anthropic

// Anthropic calls the Messages API.
type Anthropic struct {
	URL    string
	Key    string
	Model  string
	Client *http.Client
}

func (a *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	body := anthropicRequest{
		Model:       a.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		System:      req.System,
		Messages:    []chatMessage{{Role: "user", Content: req.User}},
	}
	headers := map[string]string{
		"x-api-key":         a.Key,
		"anthropic-version": "2023-06-01",
	}

	var resp anthropicResponse
	if err := postJSON(ctx, a.Client, ProviderAnthropic, a.URL, headers, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Content) == 0 {
		return "", ErrEmpty
	}
	return nonEmpty(resp.Content[0].Text)
}

// #endregion anthropic

// #region helpers

func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, in, out any) (err error) {
	ctx, span := telemetry.Start(ctx, "llm.generate", attribute.String("llm.provider", provider))
	defer func() { telemetry.End(span, err) }()

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", provider, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", provider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: status %d: %s", provider, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", provider, err)
	}
	return nil
}

func nonEmpty(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmpty
	}
	return s, nil
}

// #endregion helpers
