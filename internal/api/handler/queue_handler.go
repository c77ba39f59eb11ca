package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/freightcrm/lead-assignment-engine/internal/domain"
	"github.com/freightcrm/lead-assignment-engine/internal/repository"
)

// QueueHandler serves the operator surface: queue inspection and manual
// retry of failed items. The engine never retries on its own.
type QueueHandler struct {
	queue  repository.QueueStore
	logger *zap.Logger
}

func NewQueueHandler(queue repository.QueueStore, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{queue: queue, logger: logger}
}

// List handles GET /api/v1/queue
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseQueueFilter(r)
	if err != nil {
		mapError(w, err)
		return
	}

	items, total, err := h.queue.ListItems(r.Context(), filter)
	if err != nil {
		h.logger.Error("queue listing failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list queue items")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  items,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

// GetByID handles GET /api/v1/queue/{id}
func (h *QueueHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := h.queue.GetItem(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// Retry handles POST /api/v1/queue/{id}/retry
//
// Re-enqueues a failed item: status back to pending with the error cleared.
// The retry counter keeps its value so operators can see how often an item
// has bounced.
func (h *QueueHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.queue.Retry(r.Context(), id); err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "item re-enqueued"})
}

// Snapshot handles GET /api/v1/metrics
//
// Serves a human-readable JSON status breakdown of the queue table. Raw
// Prometheus metrics are at /metrics via promhttp and are separate.
func (h *QueueHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	counts, err := h.queue.StatusCounts(r.Context())
	if err != nil {
		h.logger.Error("queue snapshot failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to read queue counts")
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"queue_status": map[string]int{
			"pending":    counts[domain.StatusPending],
			"processing": counts[domain.StatusProcessing],
			"assigned":   counts[domain.StatusAssigned],
			"failed":     counts[domain.StatusFailed],
			"total":      total,
		},
	})
}

func parseQueueFilter(r *http.Request) (domain.QueueFilter, error) {
	q := r.URL.Query()
	filter := domain.QueueFilter{Page: 1, Limit: 20}

	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		filter.Page = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if s := q.Get("status"); s != "" {
		st := domain.QueueStatus(s)
		if !st.IsValid() {
			return filter, domain.ErrInvalidStatus
		}
		filter.Status = &st
	}
	if t := q.Get("tenant_id"); t != "" {
		filter.TenantID = &t
	}
	return filter, nil
}
