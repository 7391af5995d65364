// Package bridge maps accepted chat-platform events onto CRM calls. This is
// the business transformation the executor runs for each job.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/converso-labs/chatbridge/internal/clients"
	"github.com/converso-labs/chatbridge/internal/clients/chatapi"
	"github.com/converso-labs/chatbridge/internal/clients/crm"
	"github.com/converso-labs/chatbridge/internal/logging"
	"github.com/converso-labs/chatbridge/internal/models"
)

// ErrMalformedJob marks payloads the transformation can never make sense
// of. The executor dead-letters these immediately instead of retrying.
var ErrMalformedJob = errors.New("malformed job payload")

// Transformer reconciles one webhook event into the CRM. Transformations
// are written to be safe under redelivery and out-of-order arrival: a
// status change whose conversation the CRM has never seen is a no-op, not
// an error loop.
type Transformer struct {
	crm    crm.API
	chat   chatapi.API
	logger *logging.Logger
}

func NewTransformer(crmAPI crm.API, chatAPI chatapi.API, logger *logging.Logger) *Transformer {
	return &Transformer{crm: crmAPI, chat: chatAPI, logger: logger}
}

type conversationCreatedData struct {
	ConversationID string `json:"conversation_id"`
	ContactName    string `json:"contact_name"`
	ContactEmail   string `json:"contact_email"`
	ContactPhone   string `json:"contact_phone"`
}

type messageCreatedData struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Sender         string `json:"sender"`
	Text           string `json:"text"`
}

type statusChangedData struct {
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
}

// Process runs the transformation for one job. Errors bubble up unclassified;
// the executor decides between retry and dead-letter.
func (t *Transformer) Process(ctx context.Context, job *models.Job) error {
	var body models.WebhookBody
	if err := json.Unmarshal(job.Payload, &body); err != nil {
		return fmt.Errorf("%w: not valid JSON: %v", ErrMalformedJob, err)
	}

	switch job.EventType {
	case models.EventConversationCreated:
		return t.conversationCreated(ctx, body.Data)
	case models.EventMessageCreated:
		return t.messageCreated(ctx, body.Data)
	case models.EventConversationStatusChanged:
		return t.statusChanged(ctx, body.Data)
	default:
		return fmt.Errorf("%w: no transformation for event type %q", ErrMalformedJob, job.EventType)
	}
}

func (t *Transformer) conversationCreated(ctx context.Context, raw json.RawMessage) error {
	var data conversationCreatedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("%w: conversation_created data: %v", ErrMalformedJob, err)
	}
	if data.ConversationID == "" {
		return fmt.Errorf("%w: conversation_created without conversation_id", ErrMalformedJob)
	}

	// Thin payloads only carry the conversation id; fill in contact details
	// from the chat platform.
	if data.ContactName == "" {
		conv, err := t.chat.GetConversation(ctx, data.ConversationID)
		if err != nil {
			return fmt.Errorf("fetch conversation %s: %w", data.ConversationID, err)
		}
		data.ContactName = conv.ContactName
		data.ContactEmail = conv.ContactEmail
		data.ContactPhone = conv.ContactPhone
	}

	contact, err := t.crm.UpsertContact(ctx, &crm.Contact{
		Name:      data.ContactName,
		Email:     data.ContactEmail,
		Phone:     data.ContactPhone,
		SourceRef: data.ConversationID,
	})
	if err != nil {
		return fmt.Errorf("upsert contact for conversation %s: %w", data.ConversationID, err)
	}

	err = t.crm.AppendActivity(ctx, contact.ID, &crm.Activity{
		Kind:       "conversation",
		Subject:    "Chat conversation " + data.ConversationID,
		Status:     "open",
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("open activity for conversation %s: %w", data.ConversationID, err)
	}
	return nil
}

func (t *Transformer) messageCreated(ctx context.Context, raw json.RawMessage) error {
	var data messageCreatedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("%w: message_created data: %v", ErrMalformedJob, err)
	}
	if data.ConversationID == "" || data.MessageID == "" {
		return fmt.Errorf("%w: message_created without conversation_id or message_id", ErrMalformedJob)
	}

	if data.Text == "" {
		msg, err := t.chat.GetMessage(ctx, data.ConversationID, data.MessageID)
		if err != nil {
			return fmt.Errorf("fetch message %s: %w", data.MessageID, err)
		}
		data.Text = msg.Text
		data.Sender = msg.Sender
	}

	contact, err := t.crm.UpsertContact(ctx, &crm.Contact{
		Name:      data.Sender,
		SourceRef: data.ConversationID,
	})
	if err != nil {
		return fmt.Errorf("resolve contact for conversation %s: %w", data.ConversationID, err)
	}

	err = t.crm.AppendActivity(ctx, contact.ID, &crm.Activity{
		Kind:       "message",
		Subject:    "Message " + data.MessageID,
		Note:       data.Text,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("append message activity %s: %w", data.MessageID, err)
	}
	return nil
}

func (t *Transformer) statusChanged(ctx context.Context, raw json.RawMessage) error {
	var data statusChangedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("%w: conversation_status_changed data: %v", ErrMalformedJob, err)
	}
	if data.ConversationID == "" {
		return fmt.Errorf("%w: conversation_status_changed without conversation_id", ErrMalformedJob)
	}

	err := t.crm.UpdateActivityStatus(ctx, data.ConversationID, data.Status)
	if err != nil {
		// Out-of-order delivery: the status change can land before the CRM
		// ever saw the conversation. Treat missing-parent as a no-op.
		var apiErr *clients.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			t.logger.InfoContext(ctx, "status change for unknown conversation, skipping",
				logging.EventType(string(models.EventConversationStatusChanged)))
			return nil
		}
		return fmt.Errorf("update status for conversation %s: %w", data.ConversationID, err)
	}
	return nil
}
