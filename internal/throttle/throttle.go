// Package throttle paces bulk verifications so the worker's egress IP
// stays under provider rate limits. One Limiter is shared by every
// queue of a worker process.
package throttle

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/salmanbareesh039/check-if-email-exists/internal/config"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/metrics"
)

// window pairs a configured cap with the span it applies to.
type window struct {
	span    time.Duration
	limiter *rate.Limiter
}

// Limiter enforces up to four stacked rate windows (second, minute,
// hour, day). A dispatch must clear every configured window before it
// may start. Waiters queue FIFO inside each rate.Limiter, which gives
// the fairness the worker relies on.
type Limiter struct {
	windows []window
}

// New builds a limiter from the worker throttle configuration. Zero
// caps mean the window is not enforced; all-zero yields a limiter that
// never waits.
func New(cfg config.ThrottleConfig) *Limiter {
	l := &Limiter{}
	l.add(time.Second, cfg.MaxRequestsPerSecond)
	l.add(time.Minute, cfg.MaxRequestsPerMinute)
	l.add(time.Hour, cfg.MaxRequestsPerHour)
	l.add(24*time.Hour, cfg.MaxRequestsPerDay)
	return l
}

func (l *Limiter) add(span time.Duration, cap int) {
	if cap <= 0 {
		return
	}
	// Burst 1 spaces starts evenly across the window, so no rolling
	// window of that span ever sees more than cap starts.
	l.windows = append(l.windows, window{
		span:    span,
		limiter: rate.NewLimiter(rate.Every(span / time.Duration(cap)), 1),
	})
}

// Acquire blocks until one token is available in every configured
// window, or ctx is done. Callers must not hold a concurrency permit
// while waiting here.
func (l *Limiter) Acquire(ctx context.Context) error {
	if len(l.windows) == 0 {
		return ctx.Err()
	}

	start := time.Now()
	for _, w := range l.windows {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	metrics.RecordThrottleWait(time.Since(start))
	return nil
}

// Enabled reports whether any window is configured. The synchronous
// single-check entry point never throttles, so callers can skip the
// limiter entirely when it carries no windows.
func (l *Limiter) Enabled() bool {
	return len(l.windows) > 0
}
