package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/freightcrm/lead-assignment-engine/internal/repository"
)

// SweepWorker requeues items stuck in status=processing. A crash mid-item
// leaves its claim in place forever; the sweep makes such items eligible
// again once they exceed the configured age.
type SweepWorker struct {
	queue      repository.QueueStore
	interval   time.Duration
	staleAfter time.Duration
	logger     *zap.Logger

	// Optional metric callback for requeued counts.
	OnRequeued func(n int64)
}

func NewSweepWorker(
	queue repository.QueueStore,
	interval, staleAfter time.Duration,
	logger *zap.Logger,
) *SweepWorker {
	return &SweepWorker{
		queue:      queue,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     logger,
		OnRequeued: func(int64) {},
	}
}

// Run ticks every interval and requeues any stale claims.
// Stops cleanly when ctx is cancelled.
func (sw *SweepWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.logger.Info("sweep worker started",
		zap.Duration("interval", sw.interval),
		zap.Duration("stale_after", sw.staleAfter),
	)

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("sweep worker stopping")
			return
		case <-ticker.C:
			sw.poll(ctx)
		}
	}
}

func (sw *SweepWorker) poll(ctx context.Context) {
	n, err := sw.queue.RequeueStale(ctx, sw.staleAfter)
	if err != nil {
		sw.logger.Error("sweep error", zap.Error(err))
		return
	}
	if n > 0 {
		sw.OnRequeued(n)
		sw.logger.Warn("requeued stale processing items", zap.Int64("count", n))
	}
}
