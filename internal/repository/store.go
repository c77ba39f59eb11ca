package repository

import (
	"context"
	"time"

	"github.com/freightcrm/lead-assignment-engine/internal/domain"
)

// QueueStore defines persistence operations on the assignment work queue.
// Items are never deleted; terminal states are kept for audit.
type QueueStore interface {
	// PendingItems returns up to limit pending items ordered by priority
	// descending, then created_at ascending. This ordering is a correctness
	// contract: high-priority leads must not starve, and age breaks ties.
	PendingItems(ctx context.Context, limit int) ([]*domain.QueueItem, error)

	// Claim conditionally moves an item from pending to processing.
	// Returns false (no error) when the item was not in pending, i.e. a
	// concurrent consumer claimed it first.
	Claim(ctx context.Context, id string) (bool, error)

	MarkAssigned(ctx context.Context, id string, processedAt time.Time) error

	// MarkFailed records the error and increments retry_count in the same
	// statement so concurrent consumers cannot lose an increment.
	MarkFailed(ctx context.Context, id string, errMsg string) error

	// RequeueStale moves items stuck in processing for longer than olderThan
	// back to pending. Returns the number of items requeued.
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)

	GetItem(ctx context.Context, id string) (*domain.QueueItem, error)
	ListItems(ctx context.Context, filter domain.QueueFilter) ([]*domain.QueueItem, int, error)

	// Retry re-enqueues a failed item: status back to pending, error cleared.
	// Returns domain.ErrNotRetryable when the item is not in failed.
	Retry(ctx context.Context, id string) error

	StatusCounts(ctx context.Context) (map[domain.QueueStatus]int, error)
}

// LeadStore reads leads for criteria matching and sets ownership.
type LeadStore interface {
	GetLead(ctx context.Context, id string) (*domain.Lead, error)
	SetLeadOwner(ctx context.Context, leadID, userID string) error
}

// RuleStore reads the tenant's active rules, highest priority first.
// Ties in priority keep the store's natural return order, which is
// unspecified; callers must not depend on it.
type RuleStore interface {
	ActiveRules(ctx context.Context, tenantID string) ([]*domain.AssignmentRule, error)
}

// CapacityStore ranks and mutates per-user capacity rows. Candidate lookups
// return an empty user ID (not an error) when no eligible user exists.
type CapacityStore interface {
	// LeastRecentlyAssigned returns the available user with the oldest
	// last_assigned_at; never-assigned users (NULL) sort first.
	LeastRecentlyAssigned(ctx context.Context, tenantID string) (string, error)

	// LeastLoaded returns the available user with the fewest current_leads,
	// pre-filtered to current_leads < maxLeads when maxLeads is non-nil.
	LeastLoaded(ctx context.Context, tenantID string, maxLeads *int) (string, error)

	// IncrementLeadCount bumps current_leads and stamps last_assigned_at as
	// a single store-side update, safe under concurrent commits.
	IncrementLeadCount(ctx context.Context, userID, tenantID string) error
}

// TerritoryStore resolves a territory to its primary user.
type TerritoryStore interface {
	// PrimaryTerritoryUser returns "" when the territory has no primary.
	PrimaryTerritoryUser(ctx context.Context, territoryID string) (string, error)
}

// HistoryStore appends to the immutable assignment audit trail.
type HistoryStore interface {
	InsertHistory(ctx context.Context, h *domain.AssignmentHistory) error
}

// DirectoryStore serves the best-effort notification path.
type DirectoryStore interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	ActiveEmailAccount(ctx context.Context, tenantID string, franchiseID *string) (*domain.EmailAccount, error)
}

// ActivityStore links open tasks to freshly assigned leads.
type ActivityStore interface {
	// LinkOpenTasks attaches unlinked tasks already assigned to userID in the
	// same tenant (and franchise, when set) to leadID. Returns rows updated.
	LinkOpenTasks(ctx context.Context, userID, tenantID string, franchiseID *string, leadID string) (int64, error)
}

// Store is the full persistence surface. The pgx implementation is in
// pg_store.go; tests use the hand-written in-memory MockStore.
type Store interface {
	QueueStore
	LeadStore
	RuleStore
	CapacityStore
	TerritoryStore
	HistoryStore
	DirectoryStore
	ActivityStore
}
