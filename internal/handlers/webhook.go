// Package handlers exposes the HTTP surface: webhook intake, delivery
// status checks, health probes, and the JWT-protected admin API.
package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/converso-labs/chatbridge/internal/dispatch"
	"github.com/converso-labs/chatbridge/internal/httputil"
	"github.com/converso-labs/chatbridge/internal/idempotency"
	"github.com/converso-labs/chatbridge/internal/logging"
	"github.com/converso-labs/chatbridge/internal/models"
)

const (
	headerSignature = "X-Signature"
	headerTimestamp = "X-Timestamp"
)

type WebhookHandler struct {
	dispatcher *dispatch.Dispatcher
	store      idempotency.Store
	maxBody    int64
	logger     *logging.Logger
}

func NewWebhookHandler(d *dispatch.Dispatcher, store idempotency.Store, maxBody int64, logger *logging.Logger) *WebhookHandler {
	return &WebhookHandler{
		dispatcher: d,
		store:      store,
		maxBody:    maxBody,
		logger:     logger,
	}
}

// HandleWebhook is the intake endpoint. All guard decisions live in the
// dispatcher; this method only adapts HTTP to the dispatch request and
// renders the result.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, models.ErrorResponse{
			ErrorCode: "METHOD_NOT_ALLOWED",
			Message:   "use POST",
		})
		return
	}

	// Read at most one byte past the limit so the dispatcher's actual-size
	// gate can tell "too large" from "exactly at the limit".
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody+1))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, models.ErrorResponse{
			ErrorCode: "VALIDATION_ERROR",
			Message:   "failed to read request body",
		})
		return
	}
	defer r.Body.Close()

	result := h.dispatcher.Dispatch(r.Context(), dispatch.Request{
		SignatureHeader: r.Header.Get(headerSignature),
		TimestampHeader: r.Header.Get(headerTimestamp),
		ContentLength:   r.ContentLength,
		Body:            body,
		SourceIP:        httputil.ClientIP(r),
		UserAgent:       r.Header.Get("User-Agent"),
	})

	switch result.Decision {
	case dispatch.DecisionAccepted:
		httputil.WriteJSON(w, http.StatusOK, models.AcceptedResponse{
			Success:          true,
			WebhookID:        result.Envelope.ID,
			ProcessingStatus: "queued",
			QueuedAt:         result.Job.EnqueuedAt,
			Deduplicable:     result.Envelope.Deduplicable(),
			EstimatedSeconds: int(time.Until(result.Job.NotBefore).Seconds()) + 1,
		})

	case dispatch.DecisionDuplicate:
		httputil.WriteJSON(w, http.StatusOK, models.DuplicateResponse{
			Success: true,
			Status:  "duplicate",
			Message: "webhook already processed",
		})

	default:
		if result.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
		}
		httputil.WriteJSON(w, result.HTTPStatus, models.ErrorResponse{
			ErrorCode:  result.ErrorCode,
			Message:    result.Message,
			RetryAfter: result.RetryAfter,
		})
	}
}

// HandleStatus answers GET /webhooks/status?webhook_id=<id> from the
// idempotency store alone.
func (h *WebhookHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "use GET")
		return
	}
	id := r.URL.Query().Get("webhook_id")
	if id == "" {
		httputil.WriteError(w, http.StatusBadRequest, "webhook_id is required")
		return
	}

	seen, err := h.store.Seen(r.Context(), id)
	if err != nil {
		h.logger.Error("status lookup failed", logging.WebhookID(id), logging.Err(err))
		httputil.WriteError(w, http.StatusInternalServerError, "status lookup failed")
		return
	}

	resp := models.StatusResponse{Processed: seen, Status: string(models.JobPending)}
	if seen {
		resp.Status = string(models.JobCompleted)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
