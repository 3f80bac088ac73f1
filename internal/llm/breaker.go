package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// consecutiveFailures opens the breaker.
const consecutiveFailures = 3

type breakerGenerator struct {
	next Generator
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker stops calling g after repeated transport or status failures.
// Empty completions and cancellations do not count against the provider.
func WithBreaker(g Generator, name string) Generator {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "llm-" + name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= consecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrEmpty) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[LLM] breaker %s: %s -> %s", name, from, to)
		},
	})
	return &breakerGenerator{next: g, cb: cb}
}

func (b *breakerGenerator) Generate(ctx context.Context, req Request) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Generate(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return "", err
	}
	return out.(string), nil
}
