package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/salmanbareesh039/check-if-email-exists/pkg/metrics"
)

type ctxKey int

const (
	ctxKeyQueryStart ctxKey = iota
	ctxKeyQuerySQL
)

// SlowQueryTracer is a pgx query tracer that logs and counts queries
// slower than the threshold.
type SlowQueryTracer struct {
	logger        *zap.Logger
	slowThreshold time.Duration
}

// NewSlowQueryTracer builds a tracer. A zero threshold means 100ms.
func NewSlowQueryTracer(logger *zap.Logger, slowThreshold time.Duration) *SlowQueryTracer {
	if slowThreshold == 0 {
		slowThreshold = 100 * time.Millisecond
	}
	return &SlowQueryTracer{
		logger:        logger,
		slowThreshold: slowThreshold,
	}
}

func (t *SlowQueryTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	ctx = context.WithValue(ctx, ctxKeyQueryStart, time.Now())
	ctx = context.WithValue(ctx, ctxKeyQuerySQL, data.SQL)
	return ctx
}

func (t *SlowQueryTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(ctxKeyQueryStart).(time.Time)
	if !ok {
		return
	}

	duration := time.Since(start)
	if duration <= t.slowThreshold {
		return
	}

	// TraceQueryEndData carries no SQL; it was stashed at query start.
	sql, _ := ctx.Value(ctxKeyQuerySQL).(string)
	if sql == "" {
		sql = "unknown"
	}
	if len(sql) > 200 {
		sql = sql[:200] + "..."
	}

	t.logger.Warn("slow-query",
		zap.String("sql", sql),
		zap.Duration("took", duration),
		zap.String("command_tag", data.CommandTag.String()),
	)

	metrics.IncrementSlowQuery(sql)
}
