// Package strategy implements the four assignment algorithms and the
// dependency-injected table that maps assignment types to them.
package strategy

import (
	"context"

	"github.com/freightcrm/lead-assignment-engine/internal/domain"
	"github.com/freightcrm/lead-assignment-engine/internal/repository"
)

// Resolver picks a concrete user for a matched rule. An empty user ID with a
// nil error means "no eligible user"; the engine then falls back to
// round-robin over the tenant's available users.
type Resolver interface {
	Resolve(ctx context.Context, tenantID string, rule *domain.AssignmentRule) (string, error)
}

// Table maps each assignment type to its resolver. Built once at startup and
// injected into the engine; there is no global registry.
type Table map[domain.AssignmentType]Resolver

// NewTable wires all four strategies over the given stores.
func NewTable(capacities repository.CapacityStore, territories repository.TerritoryStore) Table {
	return Table{
		domain.AssignSpecificUser: SpecificUser{},
		domain.AssignRoundRobin:   RoundRobin{Capacities: capacities},
		domain.AssignLoadBalance:  LoadBalance{Capacities: capacities},
		domain.AssignTerritory:    Territory{Territories: territories},
	}
}

// Resolve dispatches to the rule's strategy. An unknown assignment type
// resolves to no user, matching how the queue treats unrecognized rules.
func (t Table) Resolve(ctx context.Context, tenantID string, rule *domain.AssignmentRule) (string, error) {
	resolver, ok := t[rule.AssignmentType]
	if !ok {
		return "", nil
	}
	return resolver.Resolve(ctx, tenantID, rule)
}
