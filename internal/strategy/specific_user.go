package strategy

import (
	"context"

	"github.com/freightcrm/lead-assignment-engine/internal/domain"
)

// SpecificUser returns the rule's assigned_to verbatim. No existence or
// availability check is made: an invalid user still "succeeds" with a
// possibly dangling ID, matching the behavior tenants rely on today.
type SpecificUser struct{}

func (SpecificUser) Resolve(_ context.Context, _ string, rule *domain.AssignmentRule) (string, error) {
	if rule.AssignedTo == nil {
		return "", nil
	}
	return *rule.AssignedTo, nil
}

var _ Resolver = SpecificUser{}
