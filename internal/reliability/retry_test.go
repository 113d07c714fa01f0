package reliability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{401, false},
		{408, true},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range cases {
		if got := IsRetryableHTTPStatus(tc.code); got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestExponentialBackoffCap(t *testing.T) {
	base := 100 * time.Millisecond
	limit := 700 * time.Millisecond
	if got := ExponentialBackoff(0, base, limit); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(2, base, limit); got != 400*time.Millisecond {
		t.Fatalf("attempt 2 = %v, want 400ms", got)
	}
	if got := ExponentialBackoff(10, base, limit); got != limit {
		t.Fatalf("attempt 10 = %v, want %v", got, limit)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 3, Base: time.Millisecond, Limit: time.Millisecond}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("busy")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("Do() = %v after %d calls, want nil after 3", err, calls)
	}
}

func TestDoStopsOnPermanent(t *testing.T) {
	denied := errors.New("denied")
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 5, Base: time.Millisecond, Limit: time.Millisecond}, func(context.Context) error {
		calls++
		return Permanent(denied)
	})
	if !errors.Is(err, denied) || calls != 1 {
		t.Fatalf("Do() = %v after %d calls, want denied after 1", err, calls)
	}
}

func TestDoReturnsLastError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 2, Base: time.Millisecond, Limit: time.Millisecond}, func(context.Context) error {
		calls++
		return errors.New("attempt failed")
	})
	if err == nil || err.Error() != "attempt failed" || calls != 2 {
		t.Fatalf("Do() = %v after %d calls", err, calls)
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{Attempts: 3, Base: time.Hour, Limit: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return errors.New("busy")
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("Do() = %v after %d calls, want canceled after 1", err, calls)
	}
}
