package logging

import (
	"log/slog"

	"github.com/converso-labs/chatbridge/internal/models"
)

// Common field names for consistent logging across the service.
const (
	FieldService   = "service"
	FieldIP        = "ip"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldError     = "error"
	FieldWebhookID = "webhook_id"
	FieldEventType = "event_type"
	FieldJobID     = "job_id"
	FieldQueue     = "queue"
	FieldAttempt   = "attempt"
	FieldJobState  = "job_state"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// IP returns a slog attribute for the source IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// WebhookID returns a slog attribute for the webhook idempotency key.
func WebhookID(id string) slog.Attr {
	return slog.String(FieldWebhookID, id)
}

// EventType returns a slog attribute for the webhook event type.
func EventType(t string) slog.Attr {
	return slog.String(FieldEventType, t)
}

// JobID returns a slog attribute for the queued job id.
func JobID(id string) slog.Attr {
	return slog.String(FieldJobID, id)
}

// Queue returns a slog attribute for the queue tier.
func Queue(name string) slog.Attr {
	return slog.String(FieldQueue, name)
}

// JobState returns a slog attribute for a job's lifecycle state.
func JobState(s models.JobStatus) slog.Attr {
	return slog.String(FieldJobState, string(s))
}

// Attempt returns a slog attribute for the executor attempt counter.
func Attempt(n int) slog.Attr {
	return slog.Int(FieldAttempt, n)
}

// Err returns a slog attribute for an error value.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// TruncateSignature reduces a signature to a safe preview for logging:
// first and last four characters only. Full signatures never hit the logs.
func TruncateSignature(sig string) string {
	if len(sig) <= 12 {
		return "***"
	}
	return sig[:8] + "..." + sig[len(sig)-4:]
}
