package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsRetryableError(t *testing.T) {
	var _ net.Error = timeoutErr{}

	jsonErr := json.Unmarshal([]byte("{"), &struct{}{})

	tests := []struct {
		name      string
		err       error
		retryable bool
		errType   string
	}{
		{"nil", nil, false, ""},
		{"json syntax", jsonErr, false, "json_decode_error"},
		{"no rows", pgx.ErrNoRows, false, "row_not_found"},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false, "duplicate_key"},
		{"pg connection", &pgconn.PgError{Code: "08006"}, true, "db_connection_error"},
		{"net timeout", timeoutErr{}, true, "network_timeout"},
		{"deadline", context.DeadlineExceeded, true, "timeout"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"wrapped deadline", fmt.Errorf("insert: %w", context.DeadlineExceeded), true, "timeout"},
		{"unknown", errors.New("something odd"), false, "unknown_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, errType := IsRetryableError(tt.err)
			if retryable != tt.retryable || errType != tt.errType {
				t.Fatalf("IsRetryableError(%v) = (%v, %q), want (%v, %q)",
					tt.err, retryable, errType, tt.retryable, tt.errType)
			}
		})
	}
}

func TestDeduperNilClientFailsOpen(t *testing.T) {
	var d *Deduper
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if d.IsDone(ctx, 1, "a@b.c") {
		t.Fatal("nil deduper must report not-done")
	}
	d.MarkDone(ctx, 1, "a@b.c") // must not panic
}
