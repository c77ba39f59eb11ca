package strategy

import (
	"context"

	"github.com/freightcrm/lead-assignment-engine/internal/domain"
	"github.com/freightcrm/lead-assignment-engine/internal/repository"
)

// Territory resolves to the user marked primary for the rule's territory.
// A rule without a territory, or a territory without a primary assignment,
// yields no user.
type Territory struct {
	Territories repository.TerritoryStore
}

func (t Territory) Resolve(ctx context.Context, _ string, rule *domain.AssignmentRule) (string, error) {
	if rule.TerritoryID == nil {
		return "", nil
	}
	return t.Territories.PrimaryTerritoryUser(ctx, *rule.TerritoryID)
}

var _ Resolver = Territory{}
