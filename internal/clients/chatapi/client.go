// Package chatapi reads conversation and message details back from the
// live-chat platform when a webhook payload does not carry enough data.
package chatapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/converso-labs/chatbridge/internal/clients"
)

// API is the surface the executor depends on.
type API interface {
	GetConversation(ctx context.Context, conversationID string) (*Conversation, error)
	GetMessage(ctx context.Context, conversationID, messageID string) (*Message, error)
}

type Conversation struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	ContactName  string    `json:"contact_name"`
	ContactEmail string    `json:"contact_email,omitempty"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Sender         string    `json:"sender"`
	Text           string    `json:"text"`
	SentAt         time.Time `json:"sent_at"`
}

// Client is the REST implementation of API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New constructs a new Client.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	var conv Conversation
	path := fmt.Sprintf("/api/v1/conversations/%s", conversationID)
	if err := c.get(ctx, path, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) GetMessage(ctx context.Context, conversationID, messageID string) (*Message, error) {
	var msg Message
	path := fmt.Sprintf("/api/v1/conversations/%s/messages/%s", conversationID, messageID)
	if err := c.get(ctx, path, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &clients.APIError{Service: "chat", StatusCode: resp.StatusCode, Body: string(preview)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
