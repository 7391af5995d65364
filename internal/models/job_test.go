package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueFor(t *testing.T) {
	assert.Equal(t, QueueHigh, QueueFor(EventConversationCreated))
	assert.Equal(t, QueueHigh, QueueFor(EventConversationStatusChanged))
	assert.Equal(t, QueueNormal, QueueFor(EventMessageCreated))
	assert.Equal(t, QueueNormal, QueueFor(EventType("something_else")))
}

func TestEventTypeValid(t *testing.T) {
	assert.True(t, EventConversationCreated.Valid())
	assert.True(t, EventMessageCreated.Valid())
	assert.True(t, EventConversationStatusChanged.Valid())
	assert.False(t, EventType("").Valid())
	assert.False(t, EventType("conversation_deleted").Valid())
}

func TestEnvelopeDeduplicable(t *testing.T) {
	assert.True(t, (&Envelope{ID: "evt_123"}).Deduplicable())
	assert.False(t, (&Envelope{}).Deduplicable())
}
