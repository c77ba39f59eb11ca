package strategy

import (
	"context"

	"github.com/freightcrm/lead-assignment-engine/internal/domain"
	"github.com/freightcrm/lead-assignment-engine/internal/repository"
)

// RoundRobin picks the available user assigned least recently. Users who
// have never been assigned (NULL last_assigned_at) come first; remaining
// ties are broken arbitrarily by the store.
type RoundRobin struct {
	Capacities repository.CapacityStore
}

func (r RoundRobin) Resolve(ctx context.Context, tenantID string, _ *domain.AssignmentRule) (string, error) {
	return r.Capacities.LeastRecentlyAssigned(ctx, tenantID)
}

var _ Resolver = RoundRobin{}
