package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/salmanbareesh039/check-if-email-exists/internal/config"
)

func TestAcquireUnlimited(t *testing.T) {
	l := New(config.ThrottleConfig{})

	if l.Enabled() {
		t.Fatal("limiter with no windows should report disabled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	for i := 0; i < 1000; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
}

func TestAcquirePacesPerSecond(t *testing.T) {
	// 10/s means one start every 100ms. Five acquisitions after the
	// free first token need at least ~400ms.
	l := New(config.ThrottleConfig{MaxRequestsPerSecond: 10})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 350*time.Millisecond {
		t.Fatalf("5 acquisitions at 10/s took only %v", elapsed)
	}
}

func TestAcquireRespectsContext(t *testing.T) {
	// One per day: the second acquire must block until cancelled.
	l := New(config.ThrottleConfig{MaxRequestsPerDay: 1})

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx); err == nil {
		t.Fatal("second acquire within the same day should not succeed")
	}
}

func TestAllWindowsMustClear(t *testing.T) {
	l := New(config.ThrottleConfig{
		MaxRequestsPerSecond: 1000,
		MaxRequestsPerMinute: 1,
	})

	if !l.Enabled() {
		t.Fatal("limiter with windows should report enabled")
	}

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	// Per-second window has plenty of room; the per-minute one is the
	// binding constraint.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx); err == nil {
		t.Fatal("per-minute window should have blocked the second acquire")
	}
}
