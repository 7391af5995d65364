// Package server wires the HTTP routes and runs the intake server.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/converso-labs/chatbridge/internal/handlers"
	"github.com/converso-labs/chatbridge/internal/middleware"
)

type RouterConfig struct {
	Webhook *handlers.WebhookHandler
	Health  *handlers.HealthHandler
	Admin   *handlers.AdminHandler
	Auth    *middleware.AuthMiddleware
}

// NewRouter constructs the ServeMux with all API routes registered.
// Admin routes are wrapped with JWT auth; everything else is open, with
// the webhook endpoint protected by its own signature scheme.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	// Webhook intake per event type, all backed by the same pipeline
	mux.HandleFunc("POST /webhooks/conversation-created", cfg.Webhook.HandleWebhook)
	mux.HandleFunc("POST /webhooks/message-created", cfg.Webhook.HandleWebhook)
	mux.HandleFunc("POST /webhooks/conversation-status-changed", cfg.Webhook.HandleWebhook)
	mux.HandleFunc("POST /webhooks", cfg.Webhook.HandleWebhook)
	mux.HandleFunc("GET /webhooks/status", cfg.Webhook.HandleStatus)

	// Operator API
	mux.HandleFunc("GET /admin/deadletters", cfg.Auth.RequireAuth(cfg.Admin.ListDeadLetters))
	mux.HandleFunc("GET /admin/deadletters/{id}", cfg.Auth.RequireAuth(cfg.Admin.GetDeadLetter))
	mux.HandleFunc("POST /admin/deadletters/{id}/requeue", cfg.Auth.RequireAuth(cfg.Admin.RequeueDeadLetter))
	mux.HandleFunc("DELETE /admin/deadletters", cfg.Auth.RequireAuth(cfg.Admin.PurgeDeadLetters))
	mux.HandleFunc("GET /admin/blocks", cfg.Auth.RequireAuth(cfg.Admin.ListBlocks))
	mux.HandleFunc("DELETE /admin/blocks/{ip}", cfg.Auth.RequireAuth(cfg.Admin.RemoveBlock))

	// Health endpoints
	mux.HandleFunc("GET /healthz", cfg.Health.Health)
	mux.HandleFunc("GET /readyz", cfg.Health.Ready)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
