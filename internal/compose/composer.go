// Package compose drives the text provider to produce bounded, novel posts,
// replies and tip messages.
package compose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/danielpatrickdp/buildstreak-agent/internal/config"
	"github.com/danielpatrickdp/buildstreak-agent/internal/llm"
	"github.com/danielpatrickdp/buildstreak-agent/internal/novelty"
	"github.com/danielpatrickdp/buildstreak-agent/internal/retry"
)

// #region composer

// Composer wraps a Generator with validation and a bounded attempt budget.
// A nil Generator makes every Compose call fail softly.
type Composer struct {
	gen     llm.Generator
	persona config.Persona
	policy  retry.Policy
}

// New creates a Composer with the default three-attempt budget.
func New(gen llm.Generator, persona config.Persona) *Composer {
	return &Composer{gen: gen, persona: persona, policy: retry.Policy{MaxAttempts: retry.DefaultAttempts}}
}

// Persona returns the persona prompts are built from.
func (c *Composer) Persona() config.Persona { return c.persona }

// HasGenerator reports whether a text provider is configured.
func (c *Composer) HasGenerator() bool { return c.gen != nil }

// Compose returns the first acceptable candidate, or ok=false once the
// attempt budget is spent.
func (c *Composer) Compose(ctx context.Context, p Prompt) (string, bool) {
	if c.gen == nil {
		return "", false
	}
	req := llm.Request{System: p.System, User: p.User, Temperature: p.Temperature, MaxTokens: p.MaxTokens}

	res := retry.Do(ctx, c.policy, func(ctx context.Context, attempt int) (string, error) {
		raw, err := c.gen.Generate(ctx, req)
		if errors.Is(err, llm.ErrUnavailable) {
			return "", retry.Permanent(err)
		}
		if err != nil {
			log.Printf("[COMPOSE] %s attempt %d: %v", p.Kind, attempt, err)
			return "", err
		}
		text, reason := accept(p, raw)
		if reason != "" {
			log.Printf("[COMPOSE] %s attempt %d rejected: %s", p.Kind, attempt, reason)
			return "", retry.ErrRejected
		}
		return text, nil
	})
	if !res.OK {
		log.Printf("[COMPOSE] %s: no acceptable text after %d attempt(s)", p.Kind, res.Attempts)
		return "", false
	}
	return res.Value, true
}

// accept validates one candidate. A non-empty reason rejects it.
func accept(p Prompt, raw string) (string, string) {
	text := Clean(raw)
	if text == "" {
		return "", "empty"
	}
	limit := Cap(p.Kind)
	n := utf8.RuneCountInString(text)

	switch {
	case n <= limit:
	case trims(p.Kind) && n <= Tolerance:
		text = TrimAtWord(text, limit)
	default:
		return "", fmt.Sprintf("length %d over cap %d", n, limit)
	}

	if len(text) > Tolerance {
		return "", fmt.Sprintf("%d bytes over cast limit", len(text))
	}
	if p.Kind == KindPost && !novelty.IsNovel(text, p.Recent, novelty.DefaultThreshold) {
		return "", "too similar to a recent post"
	}
	return text, ""
}

// #endregion composer

// #region text

// Clean trims whitespace and any quotes wrapped around the whole text.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'“”‘’")
	return strings.TrimSpace(s)
}

// TrimAtWord cuts s to max characters, backing up to the last space when
// that space falls beyond 60% of max.
func TrimAtWord(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	cut := r[:max]
	last := -1
	for i := len(cut) - 1; i >= 0; i-- {
		if cut[i] == ' ' {
			last = i
			break
		}
	}
	if float64(last) > float64(max)*0.6 {
		cut = cut[:last]
	}
	return strings.TrimSpace(string(cut))
}

// #endregion text

// #region tip

// TipMessage writes the celebration reply for a tip. It never fails: without
// a provider, or after the attempt budget, it falls back to a fixed template.
func (c *Composer) TipMessage(ctx context.Context, username, amount, symbol string) string {
	if c.gen == nil {
		return fmt.Sprintf(c.persona.TipNoModel, amount, symbol)
	}
	if text, ok := c.Compose(ctx, TipPrompt(c.persona, username, amount, symbol)); ok {
		return text
	}
	return c.persona.TipFallback
}

// #endregion tip

// #region sparks

// Sparks asks for up to three short inspiration lines. It falls back to the
// first three titles when the provider is absent or returns anything other
// than a JSON array of strings.
func (c *Composer) Sparks(ctx context.Context, items []SparkItem) []string {
	fallback := func() []string {
		var out []string
		for i := 0; i < len(items) && i < 3; i++ {
			out = append(out, items[i].Title)
		}
		return out
	}
	if c.gen == nil || len(items) == 0 {
		return fallback()
	}

	p := SparksPrompt(items)
	raw, err := c.gen.Generate(ctx, llm.Request{System: p.System, User: p.User, Temperature: p.Temperature, MaxTokens: p.MaxTokens})
	if err != nil {
		log.Printf("[COMPOSE] sparks: %v", err)
		return fallback()
	}
	sparks, ok := parseSparks(raw)
	if !ok {
		log.Printf("[COMPOSE] sparks: not a JSON array, using titles")
		return fallback()
	}
	return sparks
}

func parseSparks(raw string) ([]string, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var sparks []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &sparks); err != nil {
		return nil, false
	}
	var out []string
	for _, s := range sparks {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if utf8.RuneCountInString(s) >= 140 {
			s = TrimAtWord(s, 139)
		}
		out = append(out, s)
		if len(out) == 3 {
			break
		}
	}
	return out, len(out) > 0
}

// #endregion sparks
