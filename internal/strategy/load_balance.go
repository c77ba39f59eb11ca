package strategy

import (
	"context"

	"github.com/freightcrm/lead-assignment-engine/internal/domain"
	"github.com/freightcrm/lead-assignment-engine/internal/repository"
)

// LoadBalance picks the available user with the fewest current leads. When
// the rule sets max_leads_per_user, users at or above that cap are filtered
// out first; if the cap filters out everyone, no user is returned and the
// engine falls back to round-robin.
type LoadBalance struct {
	Capacities repository.CapacityStore
}

func (l LoadBalance) Resolve(ctx context.Context, tenantID string, rule *domain.AssignmentRule) (string, error) {
	return l.Capacities.LeastLoaded(ctx, tenantID, rule.MaxLeadsPerUser)
}

var _ Resolver = LoadBalance{}
