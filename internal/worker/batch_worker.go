package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/freightcrm/lead-assignment-engine/internal/engine"
)

// BatchWorker periodically triggers one assignment batch. The engine itself
// is stateless; this worker just provides the timer the original deployment
// got from an external cron.
type BatchWorker struct {
	eng      *engine.Engine
	interval time.Duration
	logger   *zap.Logger
}

func NewBatchWorker(eng *engine.Engine, interval time.Duration, logger *zap.Logger) *BatchWorker {
	return &BatchWorker{eng: eng, interval: interval, logger: logger}
}

// Run ticks every interval and processes one batch per tick.
// Stops cleanly when ctx is cancelled.
func (bw *BatchWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(bw.interval)
	defer ticker.Stop()

	bw.logger.Info("batch worker started", zap.Duration("interval", bw.interval))

	for {
		select {
		case <-ctx.Done():
			bw.logger.Info("batch worker stopping")
			return
		case <-ticker.C:
			if _, err := bw.eng.ProcessBatch(ctx); err != nil {
				bw.logger.Error("scheduled batch failed", zap.Error(err))
			}
		}
	}
}
