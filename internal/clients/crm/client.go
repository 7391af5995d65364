// Package crm talks to the CRM's REST API: contact records and activity
// entries derived from chat conversations.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/converso-labs/chatbridge/internal/clients"
)

// API is the surface the executor depends on. The HTTP client below is the
// production implementation; tests substitute fakes.
type API interface {
	UpsertContact(ctx context.Context, contact *Contact) (*Contact, error)
	AppendActivity(ctx context.Context, contactID string, activity *Activity) error
	UpdateActivityStatus(ctx context.Context, activityID, status string) error
}

type Contact struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	SourceRef string `json:"source_ref"`
}

type Activity struct {
	ID         string    `json:"id,omitempty"`
	Kind       string    `json:"kind"`
	Subject    string    `json:"subject"`
	Note       string    `json:"note,omitempty"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
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

func (c *Client) UpsertContact(ctx context.Context, contact *Contact) (*Contact, error) {
	var result Contact
	if err := c.do(ctx, http.MethodPut, "/api/v1/contacts", contact, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) AppendActivity(ctx context.Context, contactID string, activity *Activity) error {
	path := fmt.Sprintf("/api/v1/contacts/%s/activities", contactID)
	return c.do(ctx, http.MethodPost, path, activity, nil)
}

func (c *Client) UpdateActivityStatus(ctx context.Context, activityID, status string) error {
	path := fmt.Sprintf("/api/v1/activities/%s", activityID)
	return c.do(ctx, http.MethodPatch, path, map[string]string{"status": status}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &clients.APIError{Service: "crm", StatusCode: resp.StatusCode, Body: string(preview)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
