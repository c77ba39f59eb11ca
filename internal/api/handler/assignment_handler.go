package handler

import (
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/freightcrm/lead-assignment-engine/internal/api/middleware"
	"github.com/freightcrm/lead-assignment-engine/internal/engine"
)

// AssignmentHandler exposes the engine's batch trigger over HTTP.
type AssignmentHandler struct {
	eng    *engine.Engine
	logger *zap.Logger
}

func NewAssignmentHandler(eng *engine.Engine, logger *zap.Logger) *AssignmentHandler {
	return &AssignmentHandler{eng: eng, logger: logger}
}

// Process handles POST /api/v1/assignments/process
//
// Runs one bounded batch and returns the aggregate counts. Per-item failures
// are reflected in the counts and on the failed queue rows, never as a
// non-200 response; only a failed dequeue read returns 500.
func (h *AssignmentHandler) Process(w http.ResponseWriter, r *http.Request) {
	res, err := h.eng.ProcessBatch(r.Context())
	if err != nil {
		h.logger.Error("batch processing failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	message := "Queue processing complete"
	if res.Processed == 0 {
		message = "No pending assignments"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":   message,
		"processed": res.Processed,
		"succeeded": res.Succeeded,
		"failed":    res.Failed,
	})
}
