package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_DefaultBudgetIsThreeAttempts(t *testing.T) {
	calls := 0
	res := Do(context.Background(), Policy{}, func(context.Context, int) (string, error) {
		calls++
		return "", ErrRejected
	})
	if res.OK {
		t.Error("expected not OK")
	}
	if calls != 3 || res.Attempts != 3 {
		t.Errorf("expected 3 attempts, got calls=%d attempts=%d", calls, res.Attempts)
	}
	if !errors.Is(res.Err, ErrRejected) {
		t.Errorf("expected last error, got %v", res.Err)
	}
}

func TestDo_StopsOnSuccess(t *testing.T) {
	res := Do(context.Background(), Policy{MaxAttempts: 5}, func(_ context.Context, attempt int) (int, error) {
		if attempt < 2 {
			return 0, errors.New("flaky")
		}
		return 42, nil
	})
	if !res.OK || res.Value != 42 || res.Attempts != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Err != nil {
		t.Errorf("expected nil error after success, got %v", res.Err)
	}
}

func TestDo_PermanentStopsEarly(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	res := Do(context.Background(), Policy{}, func(context.Context, int) (int, error) {
		calls++
		return 0, Permanent(boom)
	})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if res.Err != boom {
		t.Errorf("expected unwrapped permanent error, got %v", res.Err)
	}
}

func TestDo_SleepsBetweenAttempts(t *testing.T) {
	var slept []time.Duration
	p := Policy{
		MaxAttempts: 3,
		Interval:    time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}
	Do(context.Background(), p, func(context.Context, int) (int, error) { return 0, ErrRejected })
	if len(slept) != 2 {
		t.Fatalf("expected 2 sleeps between 3 attempts, got %d", len(slept))
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	res := Do(ctx, Policy{}, func(context.Context, int) (int, error) {
		calls++
		return 1, nil
	})
	if calls != 0 || res.OK {
		t.Errorf("expected no calls on cancelled context, got %d", calls)
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", res.Err)
	}
}

func TestPermanentNil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}
