// ABOUTME: Tests for retry utilities including exponential backoff
// ABOUTME: Validates backoff bounds, retry counts, and cancellation
package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCalculateBackoff_NoWaitBeforeFirstAttempt(t *testing.T) {
	if got := CalculateBackoff(time.Second, 0); got != 0 {
		t.Errorf("expected 0 for attempt 0, got %v", got)
	}
	if got := CalculateBackoff(0, 3); got != 0 {
		t.Errorf("expected 0 for zero base delay, got %v", got)
	}
}

func TestCalculateBackoff_Bounds(t *testing.T) {
	base := 100 * time.Millisecond
	for attempt := 1; attempt <= 5; attempt++ {
		want := base * time.Duration(1<<uint(attempt))
		lo, hi := want*3/4, want*5/4
		for i := 0; i < 20; i++ {
			got := CalculateBackoff(base, attempt)
			if got < lo || got > hi {
				t.Fatalf("attempt %d: backoff %v outside [%v, %v]", attempt, got, lo, hi)
			}
		}
	}
}

func TestCalculateBackoff_Capped(t *testing.T) {
	got := CalculateBackoff(time.Second, 40)
	if got > maxBackoff*5/4 {
		t.Errorf("backoff %v exceeds cap", got)
	}
}

func TestRetryPolicy_SucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	p := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		if attempt == 0 {
			return errors.New("503")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestRetryPolicy_GivesUp(t *testing.T) {
	sentinel := errors.New("still down")
	calls := 0
	p := RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond}
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryPolicy_PermanentErrorStopsImmediately(t *testing.T) {
	permanent := errors.New("401 unauthorized")
	calls := 0
	p := RetryPolicy{
		MaxRetries: 5,
		BaseDelay:  time.Millisecond,
		Retryable:  func(err error) bool { return !errors.Is(err, permanent) },
	}
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Errorf("expected single call with permanent error, got %d calls, err %v", calls, err)
	}
}

func TestRetryPolicy_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := RetryPolicy{MaxRetries: 5, BaseDelay: time.Hour}
	err := p.Do(ctx, func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	if err == nil || calls != 1 {
		t.Errorf("expected one call and an error, got %d calls, err %v", calls, err)
	}
}

func TestSleep_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
