package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetryTransientThenSuccess(t *testing.T) {
	cfg := RetryConfig{Attempts: 3, Delay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

	calls := 0
	err := WithRetry(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return NewAppError(ErrKindTransientStore, "connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithRetry returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestWithRetryPermanentErrorNotRetried(t *testing.T) {
	cfg := RetryConfig{Attempts: 3, Delay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

	calls := 0
	permanent := NewAppError(ErrKindInvalidTransition, "wrong state")
	err := WithRetry(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("WithRetry error = %v, want the permanent error unchanged", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

func TestWithRetryExhaustionWrapsAsTransient(t *testing.T) {
	cfg := RetryConfig{Attempts: 2, Delay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

	calls := 0
	err := WithRetry(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return NewAppError(ErrKindTransientStore, "still down")
	})
	if err == nil {
		t.Fatal("WithRetry expected error after exhaustion")
	}
	if !IsKind(err, ErrKindTransientStore) {
		t.Errorf("error kind = %v, want %v", KindOf(err), ErrKindTransientStore)
	}
	if calls != 2 {
		t.Errorf("op called %d times, want 2", calls)
	}
}

func TestWithRetryContextCancelled(t *testing.T) {
	cfg := RetryConfig{Attempts: 5, Delay: 50 * time.Millisecond, MaxDelay: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := WithRetry(ctx, cfg, func(ctx context.Context) error {
		calls++
		return NewAppError(ErrKindTransientStore, "down")
	})
	if err == nil {
		t.Fatal("WithRetry expected error after cancellation")
	}
	if calls >= 5 {
		t.Errorf("op called %d times, cancellation should have stopped retries early", calls)
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(NewAppError(ErrKindInvalidInput, "bad")) {
		t.Error("invalid_input classified transient")
	}
	if !IsTransient(NewAppError(ErrKindTransientStore, "down")) {
		t.Error("transient_store not classified transient")
	}
	if IsTransient(nil) {
		t.Error("nil classified transient")
	}
}
