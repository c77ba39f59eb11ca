package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/freightcrm/lead-assignment-engine/internal/domain"
)

// MockStore is a hand-written, in-memory implementation of Store used in
// unit tests. No mock-generation library needed.
type MockStore struct {
	mu         sync.RWMutex
	items      map[string]*domain.QueueItem
	leads      map[string]*domain.Lead
	rules      []*domain.AssignmentRule
	capacities map[string]*domain.UserCapacity
	primaries  map[string]string // territory_id -> user_id
	history    []*domain.AssignmentHistory
	profiles   map[string]*domain.Profile
	accounts   map[string]*domain.EmailAccount // keyed by scope (tenant or franchise id)

	// Monotonic clock for last_assigned_at stamps so two increments in the
	// same wall-clock instant still order deterministically.
	tick int64

	// Optional error overrides — set in tests to simulate failure paths.
	PendingItemsErr   error
	GetLeadErr        error
	ActiveRulesErr    error
	SetLeadOwnerErr   error
	InsertHistoryErr  error
	IncrementErr      error
	LeastRecentlyErr  error
	LeastLoadedErr    error
	PrimaryUserErr    error
	LinkOpenTasksErr  error
	GetProfileErr     error
	EmailAccountErr   error
	ClaimErr          error
	ClaimDeniedFor    map[string]bool // item IDs whose claim reports already taken
	LinkedTaskCount   int64
}

func NewMockStore() *MockStore {
	return &MockStore{
		items:      make(map[string]*domain.QueueItem),
		leads:      make(map[string]*domain.Lead),
		capacities: make(map[string]*domain.UserCapacity),
		primaries:  make(map[string]string),
		profiles:   make(map[string]*domain.Profile),
		accounts:   make(map[string]*domain.EmailAccount),
	}
}

// ---- test fixture helpers ----

func (m *MockStore) AddItem(item *domain.QueueItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *item
	m.items[item.ID] = &clone
}

func (m *MockStore) AddLead(l *domain.Lead) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *l
	m.leads[l.ID] = &clone
}

func (m *MockStore) AddRule(r *domain.AssignmentRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *r
	m.rules = append(m.rules, &clone)
}

func (m *MockStore) AddCapacity(c *domain.UserCapacity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *c
	m.capacities[c.UserID] = &clone
}

func (m *MockStore) SetPrimary(territoryID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.primaries[territoryID] = userID
}

func (m *MockStore) AddProfile(p *domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *p
	m.profiles[p.ID] = &clone
}

func (m *MockStore) AddEmailAccount(scopeID string, a *domain.EmailAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *a
	m.accounts[scopeID] = &clone
}

// Item returns a copy of the stored queue item, for assertions.
func (m *MockStore) Item(id string) *domain.QueueItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if item, ok := m.items[id]; ok {
		clone := *item
		return &clone
	}
	return nil
}

// Lead returns a copy of the stored lead, for assertions.
func (m *MockStore) Lead(id string) *domain.Lead {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.leads[id]; ok {
		clone := *l
		return &clone
	}
	return nil
}

// Capacity returns a copy of the stored capacity row, for assertions.
func (m *MockStore) Capacity(userID string) *domain.UserCapacity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.capacities[userID]; ok {
		clone := *c
		return &clone
	}
	return nil
}

// History returns a copy of the recorded history rows, for assertions.
func (m *MockStore) History() []*domain.AssignmentHistory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.AssignmentHistory, len(m.history))
	for i, h := range m.history {
		clone := *h
		out[i] = &clone
	}
	return out
}

// ---- QueueStore ----

func (m *MockStore) PendingItems(_ context.Context, limit int) ([]*domain.QueueItem, error) {
	if m.PendingItemsErr != nil {
		return nil, m.PendingItemsErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pending []*domain.QueueItem
	for _, item := range m.items {
		if item.Status == domain.StatusPending {
			clone := *item
			pending = append(pending, &clone)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority > pending[j].Priority
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (m *MockStore) Claim(_ context.Context, id string) (bool, error) {
	if m.ClaimErr != nil {
		return false, m.ClaimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClaimDeniedFor[id] {
		return false, nil
	}
	item, ok := m.items[id]
	if !ok || item.Status != domain.StatusPending {
		return false, nil
	}
	now := time.Now().UTC()
	item.Status = domain.StatusProcessing
	item.ProcessingStartedAt = &now
	return true, nil
}

func (m *MockStore) MarkAssigned(_ context.Context, id string, processedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[id]; ok {
		item.Status = domain.StatusAssigned
		item.ProcessedAt = &processedAt
		item.ErrorMessage = nil
	}
	return nil
}

func (m *MockStore) MarkFailed(_ context.Context, id, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[id]; ok {
		item.Status = domain.StatusFailed
		item.ErrorMessage = &errMsg
		item.RetryCount++
	}
	return nil
}

func (m *MockStore) RequeueStale(_ context.Context, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	var n int64
	for _, item := range m.items {
		if item.Status != domain.StatusProcessing {
			continue
		}
		// Measured from claim time; backlog age alone never makes an item stale.
		if item.ProcessingStartedAt != nil && !item.ProcessingStartedAt.After(cutoff) {
			item.Status = domain.StatusPending
			item.ProcessingStartedAt = nil
			n++
		}
	}
	return n, nil
}

func (m *MockStore) GetItem(_ context.Context, id string) (*domain.QueueItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *item
	return &clone, nil
}

func (m *MockStore) ListItems(_ context.Context, f domain.QueueFilter) ([]*domain.QueueItem, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*domain.QueueItem
	for _, item := range m.items {
		if f.Status != nil && item.Status != *f.Status {
			continue
		}
		if f.TenantID != nil && item.TenantID != *f.TenantID {
			continue
		}
		clone := *item
		matched = append(matched, &clone)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (f.Page - 1) * f.Limit
	if start >= total {
		return nil, total, nil
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *MockStore) Retry(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	if item.Status != domain.StatusFailed {
		return domain.ErrNotRetryable
	}
	item.Status = domain.StatusPending
	item.ErrorMessage = nil
	item.ProcessingStartedAt = nil
	item.ProcessedAt = nil
	return nil
}

func (m *MockStore) StatusCounts(_ context.Context) (map[domain.QueueStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.QueueStatus]int)
	for _, item := range m.items {
		counts[item.Status]++
	}
	return counts, nil
}

// ---- LeadStore ----

func (m *MockStore) GetLead(_ context.Context, id string) (*domain.Lead, error) {
	if m.GetLeadErr != nil {
		return nil, m.GetLeadErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, domain.ErrLeadNotFound
	}
	clone := *l
	return &clone, nil
}

func (m *MockStore) SetLeadOwner(_ context.Context, leadID, userID string) error {
	if m.SetLeadOwnerErr != nil {
		return m.SetLeadOwnerErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leads[leadID]; ok {
		owner := userID
		l.OwnerID = &owner
	}
	return nil
}

// ---- RuleStore ----

func (m *MockStore) ActiveRules(_ context.Context, tenantID string) ([]*domain.AssignmentRule, error) {
	if m.ActiveRulesErr != nil {
		return nil, m.ActiveRulesErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []*domain.AssignmentRule
	for _, r := range m.rules {
		if r.TenantID == tenantID && r.IsActive {
			clone := *r
			active = append(active, &clone)
		}
	}
	// Priority descending; insertion order preserved within a tie, matching
	// the unspecified natural order a real store would return.
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority > active[j].Priority
	})
	return active, nil
}

// ---- CapacityStore ----

func (m *MockStore) LeastRecentlyAssigned(_ context.Context, tenantID string) (string, error) {
	if m.LeastRecentlyErr != nil {
		return "", m.LeastRecentlyErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *domain.UserCapacity
	for _, c := range m.capacities {
		if c.TenantID != tenantID || !c.IsAvailable {
			continue
		}
		if best == nil || olderAssignment(c, best) {
			best = c
		}
	}
	if best == nil {
		return "", nil
	}
	return best.UserID, nil
}

func (m *MockStore) LeastLoaded(_ context.Context, tenantID string, maxLeads *int) (string, error) {
	if m.LeastLoadedErr != nil {
		return "", m.LeastLoadedErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *domain.UserCapacity
	for _, c := range m.capacities {
		if c.TenantID != tenantID || !c.IsAvailable {
			continue
		}
		if maxLeads != nil && c.CurrentLeads >= *maxLeads {
			continue
		}
		if best == nil || c.CurrentLeads < best.CurrentLeads {
			best = c
		}
	}
	if best == nil {
		return "", nil
	}
	return best.UserID, nil
}

func (m *MockStore) IncrementLeadCount(_ context.Context, userID, tenantID string) error {
	if m.IncrementErr != nil {
		return m.IncrementErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.capacities[userID]
	if !ok || c.TenantID != tenantID {
		return nil
	}
	c.CurrentLeads++
	m.tick++
	stamp := time.Now().UTC().Add(time.Duration(m.tick) * time.Microsecond)
	c.LastAssignedAt = &stamp
	return nil
}

// ---- TerritoryStore ----

func (m *MockStore) PrimaryTerritoryUser(_ context.Context, territoryID string) (string, error) {
	if m.PrimaryUserErr != nil {
		return "", m.PrimaryUserErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.primaries[territoryID], nil
}

// ---- HistoryStore ----

func (m *MockStore) InsertHistory(_ context.Context, h *domain.AssignmentHistory) error {
	if m.InsertHistoryErr != nil {
		return m.InsertHistoryErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *h
	m.history = append(m.history, &clone)
	return nil
}

// ---- DirectoryStore ----

func (m *MockStore) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	if m.GetProfileErr != nil {
		return nil, m.GetProfileErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *MockStore) ActiveEmailAccount(_ context.Context, tenantID string, franchiseID *string) (*domain.EmailAccount, error) {
	if m.EmailAccountErr != nil {
		return nil, m.EmailAccountErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	scope := tenantID
	if franchiseID != nil {
		scope = *franchiseID
	}
	a, ok := m.accounts[scope]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *a
	return &clone, nil
}

// ---- ActivityStore ----

func (m *MockStore) LinkOpenTasks(_ context.Context, _, _ string, _ *string, _ string) (int64, error) {
	if m.LinkOpenTasksErr != nil {
		return 0, m.LinkOpenTasksErr
	}
	return m.LinkedTaskCount, nil
}

// olderAssignment reports whether a should be picked before b under
// least-recently-assigned ordering (never-assigned first).
func olderAssignment(a, b *domain.UserCapacity) bool {
	if a.LastAssignedAt == nil {
		return b.LastAssignedAt != nil
	}
	if b.LastAssignedAt == nil {
		return false
	}
	return a.LastAssignedAt.Before(*b.LastAssignedAt)
}

var _ Store = (*MockStore)(nil)
