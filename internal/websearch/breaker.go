package websearch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("websearch: provider unavailable")

type breakerSearcher struct {
	next Searcher
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker stops querying s after two consecutive failures.
func WithBreaker(s Searcher) Searcher {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "brave",
		Timeout: time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 2
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[SEARCH] breaker %s: %s -> %s", name, from, to)
		},
	})
	return &breakerSearcher{next: s, cb: cb}
}

func (b *breakerSearcher) Search(ctx context.Context, query string, count int) ([]Result, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Search(ctx, query, count)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return out.([]Result), nil
}
