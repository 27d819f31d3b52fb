package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func testConfig() Config {
	return Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      20 * time.Millisecond,
		HalfOpenMaxCalls: 2,
	}
}

func fail(context.Context) error { return errBoom }
func ok(context.Context) error   { return nil }

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Execute(ctx, fail); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: got %v, want %v", i, err, errBoom)
		}
	}

	if got := b.State(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	called := false
	err := b.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("got %v, want ErrOpen", err)
	}
	if called {
		t.Fatal("wrapped call executed while breaker open")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := New(testConfig())
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, ok)
	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, fail)

	if got := b.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	b := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, fail)
	}
	if got := b.State(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	time.Sleep(30 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if err := b.Execute(ctx, ok); err != nil {
			t.Fatalf("half-open probe %d failed: %v", i, err)
		}
	}

	if got := b.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed after probes", got)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, fail)
	}
	time.Sleep(30 * time.Millisecond)

	if err := b.Execute(ctx, fail); !errors.Is(err, errBoom) {
		t.Fatalf("got %v, want %v", err, errBoom)
	}
	if got := b.State(); got != StateOpen {
		t.Fatalf("state = %v, want open after half-open failure", got)
	}
}

func TestBreakerReset(t *testing.T) {
	b := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, fail)
	}
	b.Reset()

	if got := b.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed after reset", got)
	}
	if err := b.Execute(ctx, ok); err != nil {
		t.Fatalf("execute after reset: %v", err)
	}
}
