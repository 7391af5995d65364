package models

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of webhook delivery sent by the chat platform.
type EventType string

const (
	EventConversationCreated       EventType = "conversation_created"
	EventMessageCreated            EventType = "message_created"
	EventConversationStatusChanged EventType = "conversation_status_changed"
)

// Valid reports whether the event type is one the bridge knows how to process.
func (e EventType) Valid() bool {
	switch e {
	case EventConversationCreated, EventMessageCreated, EventConversationStatusChanged:
		return true
	}
	return false
}

// Envelope is one inbound webhook delivery attempt together with the
// authenticity metadata carried in its headers. RawPayload is kept exactly
// as received; the signature covers it byte for byte.
type Envelope struct {
	ID         string    `json:"id"`
	EventType  EventType `json:"event"`
	Timestamp  int64     `json:"timestamp"`
	RawPayload []byte    `json:"-"`
	Signature  string    `json:"-"`
	SourceIP   string    `json:"-"`
	UserAgent  string    `json:"-"`
}

// Deduplicable reports whether the envelope carries an idempotency key.
// Envelopes without one cannot be deduplicated and skip the idempotency
// store entirely.
func (e *Envelope) Deduplicable() bool {
	return e.ID != ""
}

// WebhookBody is the minimal JSON shape every webhook delivery must carry.
// Event-specific fields ride along in Data untouched.
type WebhookBody struct {
	ID    string          `json:"id"`
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// AcceptedResponse is returned for a newly accepted delivery.
type AcceptedResponse struct {
	Success          bool      `json:"success"`
	WebhookID        string    `json:"webhook_id,omitempty"`
	ProcessingStatus string    `json:"processing_status"`
	QueuedAt         time.Time `json:"queued_at"`
	Deduplicable     bool      `json:"deduplicable"`
	EstimatedSeconds int       `json:"estimated_processing_seconds"`
}

// DuplicateResponse is returned when the idempotency store has already seen
// the delivery's id.
type DuplicateResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse is the uniform rejection body for the intake path.
type ErrorResponse struct {
	Success    bool   `json:"success"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// StatusResponse answers the webhook status-check endpoint. It is backed
// solely by the idempotency store, so "completed" means the delivery was
// accepted and marked, not that the business transformation finished.
type StatusResponse struct {
	Processed bool   `json:"processed"`
	Status    string `json:"status"`
}
