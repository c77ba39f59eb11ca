package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/freightcrm/lead-assignment-engine/internal/domain"
	"github.com/freightcrm/lead-assignment-engine/internal/repository"
)

// Recorder commits a resolved assignment: lead ownership, the audit row,
// the capacity counter, and the terminal queue state.
//
// The four writes are independent statements. If a later one fails after the
// owner update landed, the item is recorded as failed with the underlying
// error; the partial side effect is a documented inconsistency window, not
// silently swallowed.
type Recorder struct {
	store repository.Store
}

func NewRecorder(store repository.Store) *Recorder {
	return &Recorder{store: store}
}

// Commit is executed only after a strategy returned a non-empty user.
func (r *Recorder) Commit(
	ctx context.Context,
	item *domain.QueueItem,
	lead *domain.Lead,
	userID string,
	method domain.AssignmentType,
	ruleID *string,
) error {
	if err := r.store.SetLeadOwner(ctx, item.LeadID, userID); err != nil {
		return fmt.Errorf("set lead owner: %w", err)
	}

	now := time.Now().UTC()
	history := &domain.AssignmentHistory{
		ID:               uuid.New().String(),
		LeadID:           item.LeadID,
		AssignedTo:       userID,
		AssignedFrom:     lead.OwnerID,
		AssignmentMethod: method,
		RuleID:           ruleID,
		TenantID:         item.TenantID,
		FranchiseID:      item.FranchiseID,
		AssignedBy:       nil, // automated
		AssignedAt:       now,
	}
	if err := r.store.InsertHistory(ctx, history); err != nil {
		return fmt.Errorf("record assignment history: %w", err)
	}

	if err := r.store.IncrementLeadCount(ctx, userID, item.TenantID); err != nil {
		return fmt.Errorf("increment user capacity: %w", err)
	}

	if err := r.store.MarkAssigned(ctx, item.ID, now); err != nil {
		return fmt.Errorf("mark item assigned: %w", err)
	}
	return nil
}
