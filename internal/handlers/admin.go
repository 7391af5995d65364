package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/converso-labs/chatbridge/internal/anomaly"
	"github.com/converso-labs/chatbridge/internal/deadletter"
	"github.com/converso-labs/chatbridge/internal/executor"
	"github.com/converso-labs/chatbridge/internal/httputil"
	"github.com/converso-labs/chatbridge/internal/logging"
	"github.com/converso-labs/chatbridge/internal/middleware"
)

const defaultDeadLetterLimit = 100

// AdminHandler serves the operator API: dead-letter triage and IP block
// management. Every route behind it requires a valid admin JWT.
type AdminHandler struct {
	letters  deadletter.Repository
	executor *executor.Executor
	detector *anomaly.Detector
	logger   *logging.Logger
}

func NewAdminHandler(letters deadletter.Repository, ex *executor.Executor, detector *anomaly.Detector, logger *logging.Logger) *AdminHandler {
	return &AdminHandler{
		letters:  letters,
		executor: ex,
		detector: detector,
		logger:   logger,
	}
}

// ListDeadLetters handles GET /admin/deadletters?limit=N.
func (h *AdminHandler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := httputil.ParseIntParam(r.URL.Query().Get("limit"), defaultDeadLetterLimit)
	if limit < 1 || limit > 1000 {
		limit = defaultDeadLetterLimit
	}

	letters, err := h.letters.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("dead letter list failed", logging.Err(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"dead_letters": letters,
		"count":        len(letters),
	})
}

// GetDeadLetter handles GET /admin/deadletters/{id}.
func (h *AdminHandler) GetDeadLetter(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	dl, err := h.letters.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, deadletter.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "dead letter not found")
			return
		}
		h.logger.Error("dead letter fetch failed", logging.Err(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch dead letter")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dl)
}

// RequeueDeadLetter handles POST /admin/deadletters/{id}/requeue.
func (h *AdminHandler) RequeueDeadLetter(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.executor.RequeueDeadLetter(r.Context(), id); err != nil {
		if errors.Is(err, deadletter.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "dead letter not found")
			return
		}
		h.logger.Error("dead letter requeue failed",
			logging.Err(err),
			slog.String("actor", middleware.GetSubject(r.Context())))
		httputil.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	h.logger.Info("dead letter requeued by operator",
		slog.String("actor", middleware.GetSubject(r.Context())))
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "requeued",
		"id":     id,
	})
}

// PurgeDeadLetters handles DELETE /admin/deadletters.
func (h *AdminHandler) PurgeDeadLetters(w http.ResponseWriter, r *http.Request) {
	n, err := h.letters.Purge(r.Context())
	if err != nil {
		h.logger.Error("dead letter purge failed", logging.Err(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to purge dead letters")
		return
	}
	h.logger.Info("dead letters purged",
		slog.String("actor", middleware.GetSubject(r.Context())))
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "purged",
		"count":  n,
	})
}

// ListBlocks handles GET /admin/blocks.
func (h *AdminHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.detector.ActiveBlocks(r.Context())
	if err != nil {
		h.logger.Error("block list failed", logging.Err(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list blocks")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"blocked_ips": blocks,
		"count":       len(blocks),
	})
}

// RemoveBlock handles DELETE /admin/blocks/{ip}.
func (h *AdminHandler) RemoveBlock(w http.ResponseWriter, r *http.Request) {
	ip := r.PathValue("ip")
	if err := h.detector.Unblock(r.Context(), ip); err != nil {
		h.logger.Error("unblock failed", logging.IP(ip), logging.Err(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to remove block")
		return
	}
	h.logger.Info("ip unblocked by operator",
		logging.IP(ip),
		slog.String("actor", middleware.GetSubject(r.Context())))
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "unblocked",
		"ip":     ip,
	})
}
