package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/freightcrm/lead-assignment-engine/internal/domain"
	"github.com/freightcrm/lead-assignment-engine/internal/engine"
	"github.com/freightcrm/lead-assignment-engine/internal/repository"
	"github.com/freightcrm/lead-assignment-engine/internal/strategy"
)

const tenant = "t1"

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func newEngine(store *repository.MockStore) *engine.Engine {
	return engine.New(store, strategy.NewTable(store, store), nil, 50, zap.NewNop(), engine.Hooks{})
}

func addLead(store *repository.MockStore, id, source string) {
	store.AddLead(&domain.Lead{
		ID:       id,
		TenantID: tenant,
		Source:   source,
		Status:   "new",
	})
}

func addItem(store *repository.MockStore, id, leadID string, priority int, createdAt time.Time) {
	store.AddItem(&domain.QueueItem{
		ID:        id,
		LeadID:    leadID,
		TenantID:  tenant,
		Priority:  priority,
		Status:    domain.StatusPending,
		CreatedAt: createdAt,
	})
}

func addUser(store *repository.MockStore, userID string, currentLeads int, lastAssigned *time.Time) {
	store.AddCapacity(&domain.UserCapacity{
		UserID:         userID,
		TenantID:       tenant,
		IsAvailable:    true,
		CurrentLeads:   currentLeads,
		MaxLeads:       50,
		LastAssignedAt: lastAssigned,
	})
}

func timePtr(t time.Time) *time.Time { return &t }

func TestProcessBatch_SpecificUserIgnoresCapacity(t *testing.T) {
	store := repository.NewMockStore()
	addLead(store, "L1", "web")
	addItem(store, "Q1", "L1", 0, time.Now().UTC())
	store.AddRule(&domain.AssignmentRule{
		ID:             "R1",
		TenantID:       tenant,
		IsActive:       true,
		Priority:       10,
		AssignmentType: domain.AssignSpecificUser,
		AssignedTo:     strPtr("U1"),
		Criteria:       map[string]any{"source": "web"},
	})
	// No capacity row for U1 at all: specific_user must still succeed.

	res, err := newEngine(store).ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Succeeded != 1 {
		t.Fatalf("expected 1 success, got %+v", res)
	}

	lead := store.Lead("L1")
	if lead.OwnerID == nil || *lead.OwnerID != "U1" {
		t.Fatalf("expected owner U1, got %v", lead.OwnerID)
	}
	history := store.History()
	if len(history) != 1 {
		t.Fatalf("expected exactly one history row, got %d", len(history))
	}
	h := history[0]
	if h.AssignedTo != "U1" || h.AssignmentMethod != domain.AssignSpecificUser {
		t.Fatalf("unexpected history row: %+v", h)
	}
	if h.RuleID == nil || *h.RuleID != "R1" {
		t.Fatalf("expected rule_id=R1, got %v", h.RuleID)
	}
	if h.AssignedBy != nil {
		t.Fatal("automated assignment must record assigned_by as null")
	}
}

func TestProcessBatch_SuccessfulCommitEffects(t *testing.T) {
	store := repository.NewMockStore()
	addLead(store, "L1", "web")
	addItem(store, "Q1", "L1", 0, time.Now().UTC())
	addUser(store, "U1", 3, nil)

	res, err := newEngine(store).ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Processed != 1 || res.Succeeded != 1 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	item := store.Item("Q1")
	if item.Status != domain.StatusAssigned {
		t.Fatalf("expected status=assigned, got %s", item.Status)
	}
	if item.ProcessedAt == nil {
		t.Fatal("expected processed_at to be set")
	}

	cap := store.Capacity("U1")
	if cap.CurrentLeads != 4 {
		t.Fatalf("expected current_leads incremented to 4, got %d", cap.CurrentLeads)
	}
	if cap.LastAssignedAt == nil {
		t.Fatal("expected last_assigned_at to be stamped")
	}
	if got := len(store.History()); got != 1 {
		t.Fatalf("expected exactly one history row, got %d", got)
	}
}

// No rule matches: the fallback is round_robin, never load_balance. With
// loads [5,2,8] the least-loaded user must NOT win; the least-recently
// assigned one must.
func TestProcessBatch_FallbackIsRoundRobinNotLoadBalance(t *testing.T) {
	store := repository.NewMockStore()
	addLead(store, "L1", "web")
	addItem(store, "Q1", "L1", 0, time.Now().UTC())

	now := time.Now().UTC()
	addUser(store, "u-mid", 5, timePtr(now.Add(-3*time.Hour))) // oldest assignment
	addUser(store, "u-light", 2, timePtr(now.Add(-1*time.Hour)))
	addUser(store, "u-heavy", 8, timePtr(now.Add(-2*time.Hour)))

	res, err := newEngine(store).ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Succeeded != 1 {
		t.Fatalf("expected success, got %+v", res)
	}

	h := store.History()[0]
	if h.AssignedTo != "u-mid" {
		t.Fatalf("fallback must pick least-recently-assigned u-mid, got %s", h.AssignedTo)
	}
	if h.AssignmentMethod != domain.AssignRoundRobin {
		t.Fatalf("fallback method must be round_robin, got %s", h.AssignmentMethod)
	}
	if h.RuleID != nil {
		t.Fatalf("no rule matched, rule_id must be null, got %v", h.RuleID)
	}
}

// A matched territory rule with no primary user falls back to round_robin,
// keeping the matched rule's ID on the history row.
func TestProcessBatch_TerritoryWithoutPrimaryFallsBack(t *testing.T) {
	store := repository.NewMockStore()
	addLead(store, "L1", "web")
	addItem(store, "Q1", "L1", 0, time.Now().UTC())
	addUser(store, "U1", 0, nil)
	store.AddRule(&domain.AssignmentRule{
		ID:             "R-terr",
		TenantID:       tenant,
		IsActive:       true,
		Priority:       10,
		AssignmentType: domain.AssignTerritory,
		TerritoryID:    strPtr("T1"), // no primary assignment exists for T1
	})

	res, err := newEngine(store).ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Succeeded != 1 {
		t.Fatalf("expected success via fallback, got %+v", res)
	}

	h := store.History()[0]
	if h.AssignedTo != "U1" {
		t.Fatalf("expected fallback to U1, got %s", h.AssignedTo)
	}
	if h.AssignmentMethod != domain.AssignRoundRobin {
		t.Fatalf("expected method round_robin, got %s", h.AssignmentMethod)
	}
	if h.RuleID == nil || *h.RuleID != "R-terr" {
		t.Fatalf("matched rule's ID must be kept on fallback, got %v", h.RuleID)
	}
}

// Items sharing a priority are processed strictly oldest-first; A completes
// before B begins.
func TestProcessBatch_FIFOWithinPriorityTier(t *testing.T) {
	store := repository.NewMockStore()
	now := time.Now().UTC()
	addLead(store, "LA", "web")
	addLead(store, "LB", "web")
	addItem(store, "QB", "LB", 5, now.Add(time.Second))
	addItem(store, "QA", "LA", 5, now)
	addUser(store, "U1", 0, nil)

	res, err := newEngine(store).ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Succeeded != 2 {
		t.Fatalf("expected both assigned, got %+v", res)
	}

	history := store.History()
	if history[0].LeadID != "LA" || history[1].LeadID != "LB" {
		t.Fatalf("expected LA before LB, got %s then %s", history[0].LeadID, history[1].LeadID)
	}
}

func TestProcessBatch_HigherPriorityFirst(t *testing.T) {
	store := repository.NewMockStore()
	now := time.Now().UTC()
	addLead(store, "L-low", "web")
	addLead(store, "L-high", "web")
	addItem(store, "Q-low", "L-low", 1, now) // older but lower priority
	addItem(store, "Q-high", "L-high", 9, now.Add(time.Minute))
	addUser(store, "U1", 0, nil)

	if _, err := newEngine(store).ProcessBatch(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history := store.History()
	if history[0].LeadID != "L-high" {
		t.Fatalf("expected high-priority lead first, got %s", history[0].LeadID)
	}
}

// Later items in a batch see capacity counts updated by earlier items: once
// the cap fills the only candidate, the next item falls back to round_robin.
func TestProcessBatch_LoadBalanceSeesIntraBatchIncrements(t *testing.T) {
	store := repository.NewMockStore()
	now := time.Now().UTC()
	addLead(store, "L1", "web")
	addLead(store, "L2", "web")
	addItem(store, "Q1", "L1", 0, now)
	addItem(store, "Q2", "L2", 0, now.Add(time.Second))
	addUser(store, "u-a", 0, timePtr(now.Add(-1*time.Hour)))
	addUser(store, "u-b", 5, nil)
	store.AddRule(&domain.AssignmentRule{
		ID:              "R-lb",
		TenantID:        tenant,
		IsActive:        true,
		Priority:        10,
		AssignmentType:  domain.AssignLoadBalance,
		MaxLeadsPerUser: intPtr(1),
	})

	res, err := newEngine(store).ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Succeeded != 2 {
		t.Fatalf("expected both assigned, got %+v", res)
	}

	history := store.History()
	if history[0].AssignedTo != "u-a" || history[0].AssignmentMethod != domain.AssignLoadBalance {
		t.Fatalf("first item: expected u-a via load_balance, got %+v", history[0])
	}
	// u-a now sits at the cap and u-b was always over it, so the second item
	// must resolve through the round_robin fallback.
	if history[1].AssignmentMethod != domain.AssignRoundRobin {
		t.Fatalf("second item: expected round_robin fallback, got %s", history[1].AssignmentMethod)
	}
	if history[1].AssignedTo != "u-b" {
		t.Fatalf("second item: expected never-assigned u-b, got %s", history[1].AssignedTo)
	}
}

func TestProcessBatch_LeadNotFoundFailsItemOnly(t *testing.T) {
	store := repository.NewMockStore()
	now := time.Now().UTC()
	addItem(store, "Q-bad", "L-missing", 9, now)
	addLead(store, "L-ok", "web")
	addItem(store, "Q-ok", "L-ok", 0, now)
	addUser(store, "U1", 0, nil)

	res, err := newEngine(store).ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("batch must not abort on a per-item failure: %v", err)
	}
	if res.Processed != 2 || res.Succeeded != 1 || res.Failed != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	failed := store.Item("Q-bad")
	if failed.Status != domain.StatusFailed {
		t.Fatalf("expected status=failed, got %s", failed.Status)
	}
	if failed.ErrorMessage == nil || *failed.ErrorMessage == "" {
		t.Fatal("failed item must carry a non-empty error message")
	}
	if failed.RetryCount != 1 {
		t.Fatalf("expected retry_count incremented to 1, got %d", failed.RetryCount)
	}
}

func TestProcessBatch_NoAvailableUser(t *testing.T) {
	store := repository.NewMockStore()
	addLead(store, "L1", "web")
	addItem(store, "Q1", "L1", 0, time.Now().UTC())
	// No capacity rows at all.

	res, err := newEngine(store).ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("expected failure, got %+v", res)
	}

	item := store.Item("Q1")
	if item.ErrorMessage == nil || *item.ErrorMessage != domain.ErrNoAvailableUser.Error() {
		t.Fatalf("expected %q, got %v", domain.ErrNoAvailableUser, item.ErrorMessage)
	}
}

func TestProcessBatch_UnknownCriteriaKeyFailsItem(t *testing.T) {
	store := repository.NewMockStore()
	addLead(store, "L1", "web")
	addItem(store, "Q1", "L1", 0, time.Now().UTC())
	addUser(store, "U1", 0, nil)
	store.AddRule(&domain.AssignmentRule{
		ID:             "R-bad",
		TenantID:       tenant,
		IsActive:       true,
		Priority:       10,
		AssignmentType: domain.AssignRoundRobin,
		Criteria:       map[string]any{"lead_score": "90"},
	})

	res, err := newEngine(store).ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("misconfigured criteria must fail the item, got %+v", res)
	}
}

func TestProcessBatch_CommitFailureRecordedOnItem(t *testing.T) {
	store := repository.NewMockStore()
	addLead(store, "L1", "web")
	addItem(store, "Q1", "L1", 0, time.Now().UTC())
	addUser(store, "U1", 0, nil)
	store.InsertHistoryErr = errors.New("history table unreachable")

	res, err := newEngine(store).ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("expected commit failure to fail the item, got %+v", res)
	}

	item := store.Item("Q1")
	if item.Status != domain.StatusFailed {
		t.Fatalf("expected status=failed, got %s", item.Status)
	}
	// The owner update landed before the history insert failed: a known
	// inconsistency window, recorded rather than rolled back.
	lead := store.Lead("L1")
	if lead.OwnerID == nil {
		t.Fatal("expected owner to have been set before the commit failure")
	}
}

func TestProcessBatch_DequeueFailurePropagates(t *testing.T) {
	store := repository.NewMockStore()
	store.PendingItemsErr = errors.New("connection refused")

	_, err := newEngine(store).ProcessBatch(context.Background())
	if err == nil {
		t.Fatal("expected the dequeue error to propagate")
	}
}

func TestProcessBatch_LostClaimSkipsItem(t *testing.T) {
	store := repository.NewMockStore()
	addLead(store, "L1", "web")
	addItem(store, "Q1", "L1", 0, time.Now().UTC())
	addUser(store, "U1", 0, nil)
	store.ClaimDeniedFor = map[string]bool{"Q1": true}

	res, err := newEngine(store).ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Lost claims are neither successes nor failures.
	if res.Processed != 1 || res.Succeeded != 0 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if item := store.Item("Q1"); item.Status != domain.StatusPending {
		t.Fatalf("skipped item must stay untouched, got %s", item.Status)
	}
}

// After ProcessBatch returns, no item is ever left in processing.
func TestProcessBatch_NoItemLeftProcessing(t *testing.T) {
	store := repository.NewMockStore()
	now := time.Now().UTC()
	addLead(store, "L1", "web")
	addItem(store, "Q1", "L1", 0, now)
	addItem(store, "Q2", "L-missing", 0, now.Add(time.Second))
	addUser(store, "U1", 0, nil)

	if _, err := newEngine(store).ProcessBatch(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, id := range []string{"Q1", "Q2"} {
		if item := store.Item(id); item.Status == domain.StatusProcessing {
			t.Fatalf("item %s left in processing", id)
		}
	}
}

func TestProcessBatch_BatchSizeBoundsDequeue(t *testing.T) {
	store := repository.NewMockStore()
	now := time.Now().UTC()
	addUser(store, "U1", 0, nil)
	for i := 0; i < 5; i++ {
		leadID := string(rune('A' + i))
		addLead(store, leadID, "web")
		addItem(store, "Q"+leadID, leadID, 0, now.Add(time.Duration(i)*time.Second))
	}

	eng := engine.New(store, strategy.NewTable(store, store), nil, 3, zap.NewNop(), engine.Hooks{})
	res, err := eng.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Processed != 3 {
		t.Fatalf("expected batch bounded to 3, got %d", res.Processed)
	}
}

func TestProcessBatch_HooksObserveOutcomes(t *testing.T) {
	store := repository.NewMockStore()
	now := time.Now().UTC()
	addLead(store, "L1", "web")
	addItem(store, "Q1", "L1", 0, now)
	addItem(store, "Q2", "L-missing", 0, now.Add(time.Second))
	addUser(store, "U1", 0, nil)

	var assigned []domain.AssignmentType
	var failures int
	hooks := engine.Hooks{
		OnAssigned: func(m domain.AssignmentType) { assigned = append(assigned, m) },
		OnFailed:   func() { failures++ },
	}
	eng := engine.New(store, strategy.NewTable(store, store), nil, 50, zap.NewNop(), hooks)

	if _, err := eng.ProcessBatch(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(assigned) != 1 || assigned[0] != domain.AssignRoundRobin {
		t.Fatalf("unexpected assigned hook calls: %v", assigned)
	}
	if failures != 1 {
		t.Fatalf("expected 1 failure hook call, got %d", failures)
	}
}
