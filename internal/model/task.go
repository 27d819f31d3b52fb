package model

import (
	"encoding/json"
	"time"
)

// Queue names the worker recognizes. Tasks are routed by the provider
// derived from the address domain.
const (
	QueueGmail          = "check.gmail"
	QueueHotmailB2B     = "check.hotmailb2b"
	QueueHotmailB2C     = "check.hotmailb2c"
	QueueYahoo          = "check.yahoo"
	QueueEverythingElse = "check.everything_else"
)

func AllQueues() []string {
	return []string{
		QueueGmail,
		QueueHotmailB2B,
		QueueHotmailB2C,
		QueueYahoo,
		QueueEverythingElse,
	}
}

func ValidQueue(name string) bool {
	for _, q := range AllQueues() {
		if q == name {
			return true
		}
	}
	return false
}

// QueueFor maps a provider tag to its routing queue. Providers without a
// dedicated queue share the everything_else lane.
func QueueFor(tag ProviderTag) string {
	switch tag {
	case ProviderGmail:
		return QueueGmail
	case ProviderHotmailB2B:
		return QueueHotmailB2B
	case ProviderHotmailB2C:
		return QueueHotmailB2C
	case ProviderYahoo:
		return QueueYahoo
	default:
		return QueueEverythingElse
	}
}

type TaskWebhook struct {
	URL string `json:"url"`
}

// Task is the bulk-queue message body. RoutingQueue is stamped by the
// publisher; a consumer seeing a mismatch between RoutingQueue and the
// queue it read from knows the task was already redirected once.
type Task struct {
	Input        string       `json:"input"`
	JobID        int64        `json:"job_id"`
	Attempt      int          `json:"attempt,omitempty"`
	RoutingQueue string       `json:"routing_queue,omitempty"`
	Webhook      *TaskWebhook `json:"webhook,omitempty"`
}

// Job is one bulk submission covering TotalRecords addresses.
type Job struct {
	ID           int64     `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	TotalRecords int       `json:"total_records"`
}

// TaskResult is the persisted verdict row. Write-once per (job_id, email).
type TaskResult struct {
	ID          int64           `json:"id"`
	JobID       int64           `json:"job_id"`
	Email       string          `json:"email"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       *string         `json:"error,omitempty"`
	BackendName string          `json:"backend_name"`
	CreatedAt   time.Time       `json:"created_at"`
}
