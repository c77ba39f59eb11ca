// Package engine drives the assignment pipeline: dequeue, claim, rule
// evaluation, strategy resolution, and outcome bookkeeping.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/freightcrm/lead-assignment-engine/internal/domain"
	"github.com/freightcrm/lead-assignment-engine/internal/notify"
	"github.com/freightcrm/lead-assignment-engine/internal/repository"
	"github.com/freightcrm/lead-assignment-engine/internal/rules"
	"github.com/freightcrm/lead-assignment-engine/internal/strategy"
)

// Hooks carries the metric callback functions injected by main.
// Using a struct keeps the engine constructor signature clean.
type Hooks struct {
	OnAssigned   func(method domain.AssignmentType)
	OnFailed     func()
	OnBatch      func(duration time.Duration)
	OnQueueDepth func(pending int)
}

// Result summarizes one batch invocation for the HTTP caller.
type Result struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Engine processes one bounded batch per invocation, item by item, in the
// priority/age order fixed at dequeue time. It holds no state between
// invocations; all state lives in the store.
type Engine struct {
	store      repository.Store
	strategies strategy.Table
	recorder   *Recorder
	notifier   notify.Notifier
	batchSize  int
	logger     *zap.Logger
	hooks      Hooks
}

// New constructs the engine. notifier may be nil (notifications disabled).
// hooks fields may be nil individually (no-op).
func New(
	store repository.Store,
	strategies strategy.Table,
	notifier notify.Notifier,
	batchSize int,
	logger *zap.Logger,
	hooks Hooks,
) *Engine {
	if hooks.OnAssigned == nil {
		hooks.OnAssigned = func(domain.AssignmentType) {}
	}
	if hooks.OnFailed == nil {
		hooks.OnFailed = func() {}
	}
	if hooks.OnBatch == nil {
		hooks.OnBatch = func(time.Duration) {}
	}
	if hooks.OnQueueDepth == nil {
		hooks.OnQueueDepth = func(int) {}
	}
	return &Engine{
		store:      store,
		strategies: strategies,
		recorder:   NewRecorder(store),
		notifier:   notifier,
		batchSize:  batchSize,
		logger:     logger,
		hooks:      hooks,
	}
}

// ProcessBatch dequeues up to the configured batch size of pending items and
// processes them sequentially. Per-item errors are converted into queue-item
// state and never abort the batch; only the initial dequeue read can fail
// the whole invocation.
func (e *Engine) ProcessBatch(ctx context.Context) (Result, error) {
	start := time.Now()

	items, err := e.store.PendingItems(ctx, e.batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("dequeue pending items: %w", err)
	}

	res := Result{Processed: len(items)}
	for _, item := range items {
		log := e.logger.With(
			zap.String("queue_item_id", item.ID),
			zap.String("lead_id", item.LeadID),
			zap.String("tenant_id", item.TenantID),
		)

		claimed, err := e.store.Claim(ctx, item.ID)
		if err != nil {
			log.Error("claim failed", zap.Error(err))
			e.fail(ctx, item, err, log)
			res.Failed++
			continue
		}
		if !claimed {
			// Another consumer won the race; the item is theirs now.
			log.Debug("item already claimed, skipping")
			continue
		}

		if err := e.assign(ctx, item, log); err != nil {
			e.fail(ctx, item, err, log)
			res.Failed++
			continue
		}
		res.Succeeded++
	}

	e.hooks.OnBatch(time.Since(start))
	e.reportQueueDepth(ctx)

	e.logger.Info("batch complete",
		zap.Int("processed", res.Processed),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// assign runs the full pipeline for one claimed item. Any returned error is
// terminalized by the caller as status=failed on the item.
func (e *Engine) assign(ctx context.Context, item *domain.QueueItem, log *zap.Logger) error {
	lead, err := e.store.GetLead(ctx, item.LeadID)
	if err != nil {
		return err
	}

	activeRules, err := e.store.ActiveRules(ctx, item.TenantID)
	if err != nil {
		return fmt.Errorf("fetch rules: %w", err)
	}

	rule, err := rules.SelectRule(lead, activeRules)
	if err != nil {
		return err
	}

	var userID string
	var ruleID *string
	method := domain.AssignRoundRobin

	if rule != nil {
		userID, err = e.strategies.Resolve(ctx, item.TenantID, rule)
		if err != nil {
			return fmt.Errorf("strategy %s: %w", rule.AssignmentType, err)
		}
		method = rule.AssignmentType
		ruleID = &rule.ID
	}

	if userID == "" {
		// Fallback is always round-robin, never load-balance. The matched
		// rule's ID is kept on the history row even when its own strategy
		// yielded nobody.
		userID, err = e.store.LeastRecentlyAssigned(ctx, item.TenantID)
		if err != nil {
			return fmt.Errorf("round-robin fallback: %w", err)
		}
		method = domain.AssignRoundRobin
	}

	if userID == "" {
		return domain.ErrNoAvailableUser
	}

	if err := e.recorder.Commit(ctx, item, lead, userID, method, ruleID); err != nil {
		return err
	}
	e.hooks.OnAssigned(method)
	log.Info("lead assigned",
		zap.String("user_id", userID),
		zap.String("method", string(method)),
	)

	// Best-effort follow-ups. Neither can fail the item: the assignment
	// already committed.
	if n, err := e.store.LinkOpenTasks(ctx, userID, item.TenantID, item.FranchiseID, item.LeadID); err != nil {
		log.Warn("task auto-link skipped", zap.Error(err))
	} else if n > 0 {
		log.Debug("linked open tasks", zap.Int64("count", n))
	}

	if e.notifier != nil {
		if err := e.notifier.NotifyAssigned(ctx, item, lead, userID); err != nil {
			log.Warn("assignment notification skipped", zap.Error(err))
		}
	}

	return nil
}

// fail terminalizes an item: status=failed, error text recorded, retry
// counter bumped for operator visibility. Nothing auto-retries it.
func (e *Engine) fail(ctx context.Context, item *domain.QueueItem, cause error, log *zap.Logger) {
	log.Error("item failed", zap.Error(cause), zap.Int("retry_count", item.RetryCount))
	if err := e.store.MarkFailed(ctx, item.ID, cause.Error()); err != nil {
		log.Error("could not record item failure", zap.Error(err))
	}
	e.hooks.OnFailed()
}

func (e *Engine) reportQueueDepth(ctx context.Context) {
	counts, err := e.store.StatusCounts(ctx)
	if err != nil {
		e.logger.Warn("could not read queue depth", zap.Error(err))
		return
	}
	e.hooks.OnQueueDepth(counts[domain.StatusPending])
}
