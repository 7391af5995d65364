// Package client is the HTTP client bridgectl uses against the chatbridge
// admin API.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/converso-labs/chatbridge/internal/models"
)

type AdminClient struct {
	baseURL string
	token   string
	client  *http.Client
}

type DeadLettersResponse struct {
	DeadLetters []models.DeadLetter `json:"dead_letters"`
	Count       int                 `json:"count"`
}

type BlocksResponse struct {
	BlockedIPs []string `json:"blocked_ips"`
	Count      int      `json:"count"`
}

type WebhookStatusResponse struct {
	Processed bool   `json:"processed"`
	Status    string `json:"status"`
}

type HealthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

func NewAdminClient(baseURL, token string) *AdminClient {
	return &AdminClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *AdminClient) doRequest(method, path string, out interface{}) error {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *AdminClient) ListDeadLetters(limit int) (*DeadLettersResponse, error) {
	var resp DeadLettersResponse
	path := fmt.Sprintf("/admin/deadletters?limit=%d", limit)
	if err := c.doRequest(http.MethodGet, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *AdminClient) GetDeadLetter(id string) (*models.DeadLetter, error) {
	var dl models.DeadLetter
	path := "/admin/deadletters/" + url.PathEscape(id)
	if err := c.doRequest(http.MethodGet, path, &dl); err != nil {
		return nil, err
	}
	return &dl, nil
}

func (c *AdminClient) RequeueDeadLetter(id string) error {
	path := "/admin/deadletters/" + url.PathEscape(id) + "/requeue"
	return c.doRequest(http.MethodPost, path, nil)
}

func (c *AdminClient) PurgeDeadLetters() (int64, error) {
	var resp struct {
		Count int64 `json:"count"`
	}
	if err := c.doRequest(http.MethodDelete, "/admin/deadletters", &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *AdminClient) ListBlocks() (*BlocksResponse, error) {
	var resp BlocksResponse
	if err := c.doRequest(http.MethodGet, "/admin/blocks", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *AdminClient) RemoveBlock(ip string) error {
	return c.doRequest(http.MethodDelete, "/admin/blocks/"+url.PathEscape(ip), nil)
}

func (c *AdminClient) WebhookStatus(webhookID string) (*WebhookStatusResponse, error) {
	var resp WebhookStatusResponse
	path := "/webhooks/status?webhook_id=" + url.QueryEscape(webhookID)
	if err := c.doRequest(http.MethodGet, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *AdminClient) Ready() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doRequest(http.MethodGet, "/readyz", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
