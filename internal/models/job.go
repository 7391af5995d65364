package models

import (
	"encoding/json"
	"time"
)

// QueueName is a priority tier for deferred work.
type QueueName string

const (
	QueueHigh   QueueName = "high"
	QueueNormal QueueName = "normal"
)

// JobStatus tracks a job through the executor's state machine.
type JobStatus string

const (
	JobPending      JobStatus = "pending"
	JobRunning      JobStatus = "running"
	JobRetrying     JobStatus = "retrying"
	JobCompleted    JobStatus = "completed"
	JobDeadLettered JobStatus = "dead_lettered"
)

// Job is a unit of deferred work derived from an accepted envelope.
// Attempt starts at 0 and is incremented by the executor on each run.
type Job struct {
	JobID       string          `json:"job_id"`
	WebhookID   string          `json:"webhook_id,omitempty"`
	EventType   EventType       `json:"event_type"`
	Queue       QueueName       `json:"queue"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	NotBefore   time.Time       `json:"not_before"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	SourceIP    string          `json:"source_ip,omitempty"`
}

// QueueFor selects the priority tier for an event type. Conversation
// lifecycle events jump the line ahead of message traffic.
func QueueFor(t EventType) QueueName {
	switch t {
	case EventConversationCreated, EventConversationStatusChanged:
		return QueueHigh
	default:
		return QueueNormal
	}
}

// DeadLetter is a terminally failed job persisted for manual review.
// Dead letters are never retried automatically; an operator may requeue one.
type DeadLetter struct {
	ID          string          `json:"id"`
	JobID       string          `json:"job_id"`
	WebhookID   string          `json:"webhook_id,omitempty"`
	EventType   EventType       `json:"event_type"`
	Queue       QueueName       `json:"queue"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	LastError   string          `json:"last_error"`
	Reason      string          `json:"reason"`
	CreatedAt   time.Time       `json:"created_at"`
	RequeuedAt  *time.Time      `json:"requeued_at,omitempty"`
}
