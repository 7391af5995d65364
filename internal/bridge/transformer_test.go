package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converso-labs/chatbridge/internal/clients"
	"github.com/converso-labs/chatbridge/internal/clients/chatapi"
	"github.com/converso-labs/chatbridge/internal/clients/crm"
	"github.com/converso-labs/chatbridge/internal/logging"
	"github.com/converso-labs/chatbridge/internal/models"
)

type fakeCRM struct {
	upserted      []*crm.Contact
	activities    map[string][]*crm.Activity
	statusUpdates map[string]string

	upsertErr error
	statusErr error
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{
		activities:    make(map[string][]*crm.Activity),
		statusUpdates: make(map[string]string),
	}
}

func (f *fakeCRM) UpsertContact(ctx context.Context, contact *crm.Contact) (*crm.Contact, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	out := *contact
	out.ID = "contact-" + contact.SourceRef
	f.upserted = append(f.upserted, &out)
	return &out, nil
}

func (f *fakeCRM) AppendActivity(ctx context.Context, contactID string, activity *crm.Activity) error {
	f.activities[contactID] = append(f.activities[contactID], activity)
	return nil
}

func (f *fakeCRM) UpdateActivityStatus(ctx context.Context, activityID, status string) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statusUpdates[activityID] = status
	return nil
}

type fakeChat struct {
	conversations map[string]*chatapi.Conversation
	messages      map[string]*chatapi.Message
	calls         int
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		conversations: make(map[string]*chatapi.Conversation),
		messages:      make(map[string]*chatapi.Message),
	}
}

func (f *fakeChat) GetConversation(ctx context.Context, id string) (*chatapi.Conversation, error) {
	f.calls++
	if conv, ok := f.conversations[id]; ok {
		return conv, nil
	}
	return nil, &clients.APIError{Service: "chat", StatusCode: http.StatusNotFound}
}

func (f *fakeChat) GetMessage(ctx context.Context, convID, msgID string) (*chatapi.Message, error) {
	f.calls++
	if msg, ok := f.messages[msgID]; ok {
		return msg, nil
	}
	return nil, &clients.APIError{Service: "chat", StatusCode: http.StatusNotFound}
}

func job(event models.EventType, data interface{}) *models.Job {
	raw, _ := json.Marshal(data)
	payload, _ := json.Marshal(map[string]interface{}{
		"id":    "evt_t",
		"event": event,
		"data":  json.RawMessage(raw),
	})
	return &models.Job{
		JobID:     "job-t",
		WebhookID: "evt_t",
		EventType: event,
		Queue:     models.QueueFor(event),
		Payload:   payload,
	}
}

func TestTransformer_ConversationCreated(t *testing.T) {
	t.Run("full payload skips chat lookup", func(t *testing.T) {
		crmFake, chatFake := newFakeCRM(), newFakeChat()
		tr := NewTransformer(crmFake, chatFake, logging.Default())

		err := tr.Process(context.Background(), job(models.EventConversationCreated, map[string]string{
			"conversation_id": "c-1",
			"contact_name":    "Ada Lovelace",
			"contact_email":   "ada@example.com",
		}))
		require.NoError(t, err)

		assert.Zero(t, chatFake.calls)
		require.Len(t, crmFake.upserted, 1)
		assert.Equal(t, "Ada Lovelace", crmFake.upserted[0].Name)
		assert.Equal(t, "c-1", crmFake.upserted[0].SourceRef)

		acts := crmFake.activities["contact-c-1"]
		require.Len(t, acts, 1)
		assert.Equal(t, "conversation", acts[0].Kind)
		assert.Equal(t, "open", acts[0].Status)
	})

	t.Run("thin payload fetches contact from chat", func(t *testing.T) {
		crmFake, chatFake := newFakeCRM(), newFakeChat()
		chatFake.conversations["c-2"] = &chatapi.Conversation{
			ID:           "c-2",
			ContactName:  "Grace Hopper",
			ContactEmail: "grace@example.com",
		}
		tr := NewTransformer(crmFake, chatFake, logging.Default())

		err := tr.Process(context.Background(), job(models.EventConversationCreated, map[string]string{
			"conversation_id": "c-2",
		}))
		require.NoError(t, err)

		assert.Equal(t, 1, chatFake.calls)
		require.Len(t, crmFake.upserted, 1)
		assert.Equal(t, "Grace Hopper", crmFake.upserted[0].Name)
	})

	t.Run("missing conversation_id is malformed", func(t *testing.T) {
		tr := NewTransformer(newFakeCRM(), newFakeChat(), logging.Default())
		err := tr.Process(context.Background(), job(models.EventConversationCreated, map[string]string{}))
		assert.ErrorIs(t, err, ErrMalformedJob)
	})
}

func TestTransformer_MessageCreated(t *testing.T) {
	t.Run("inline text", func(t *testing.T) {
		crmFake, chatFake := newFakeCRM(), newFakeChat()
		tr := NewTransformer(crmFake, chatFake, logging.Default())

		err := tr.Process(context.Background(), job(models.EventMessageCreated, map[string]string{
			"conversation_id": "c-3",
			"message_id":      "m-1",
			"sender":          "visitor",
			"text":            "hello there",
		}))
		require.NoError(t, err)

		assert.Zero(t, chatFake.calls)
		acts := crmFake.activities["contact-c-3"]
		require.Len(t, acts, 1)
		assert.Equal(t, "message", acts[0].Kind)
		assert.Equal(t, "hello there", acts[0].Note)
	})

	t.Run("text fetched when absent", func(t *testing.T) {
		crmFake, chatFake := newFakeCRM(), newFakeChat()
		chatFake.messages["m-2"] = &chatapi.Message{
			ID: "m-2", ConversationID: "c-4", Sender: "agent", Text: "from the api",
		}
		tr := NewTransformer(crmFake, chatFake, logging.Default())

		err := tr.Process(context.Background(), job(models.EventMessageCreated, map[string]string{
			"conversation_id": "c-4",
			"message_id":      "m-2",
		}))
		require.NoError(t, err)

		assert.Equal(t, 1, chatFake.calls)
		acts := crmFake.activities["contact-c-4"]
		require.Len(t, acts, 1)
		assert.Equal(t, "from the api", acts[0].Note)
	})

	t.Run("missing ids are malformed", func(t *testing.T) {
		tr := NewTransformer(newFakeCRM(), newFakeChat(), logging.Default())
		err := tr.Process(context.Background(), job(models.EventMessageCreated, map[string]string{
			"conversation_id": "c-5",
		}))
		assert.ErrorIs(t, err, ErrMalformedJob)
	})
}

func TestTransformer_StatusChanged(t *testing.T) {
	t.Run("status propagated", func(t *testing.T) {
		crmFake := newFakeCRM()
		tr := NewTransformer(crmFake, newFakeChat(), logging.Default())

		err := tr.Process(context.Background(), job(models.EventConversationStatusChanged, map[string]string{
			"conversation_id": "c-6",
			"status":          "resolved",
		}))
		require.NoError(t, err)
		assert.Equal(t, "resolved", crmFake.statusUpdates["c-6"])
	})

	t.Run("unknown conversation is a no-op", func(t *testing.T) {
		crmFake := newFakeCRM()
		crmFake.statusErr = &clients.APIError{Service: "crm", StatusCode: http.StatusNotFound}
		tr := NewTransformer(crmFake, newFakeChat(), logging.Default())

		err := tr.Process(context.Background(), job(models.EventConversationStatusChanged, map[string]string{
			"conversation_id": "c-7",
			"status":          "resolved",
		}))
		assert.NoError(t, err, "out-of-order status changes must not error-loop")
	})

	t.Run("other crm errors bubble", func(t *testing.T) {
		crmFake := newFakeCRM()
		crmFake.statusErr = &clients.APIError{Service: "crm", StatusCode: http.StatusBadGateway}
		tr := NewTransformer(crmFake, newFakeChat(), logging.Default())

		err := tr.Process(context.Background(), job(models.EventConversationStatusChanged, map[string]string{
			"conversation_id": "c-8",
			"status":          "resolved",
		}))
		assert.Error(t, err)
	})
}

func TestTransformer_MalformedPayloads(t *testing.T) {
	tr := NewTransformer(newFakeCRM(), newFakeChat(), logging.Default())

	t.Run("not json", func(t *testing.T) {
		err := tr.Process(context.Background(), &models.Job{
			EventType: models.EventMessageCreated,
			Payload:   []byte("{broken"),
		})
		assert.ErrorIs(t, err, ErrMalformedJob)
	})

	t.Run("unknown event type", func(t *testing.T) {
		err := tr.Process(context.Background(), &models.Job{
			EventType: models.EventType("contact_deleted"),
			Payload:   []byte(`{"id":"x","event":"contact_deleted","data":{}}`),
		})
		assert.ErrorIs(t, err, ErrMalformedJob)
	})
}
