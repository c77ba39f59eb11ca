// Package rules matches lead attributes against tenant assignment rules.
package rules

import (
	"fmt"

	"github.com/freightcrm/lead-assignment-engine/internal/domain"
)

// SelectRule returns the first rule in the given order whose criteria all
// match the lead, or nil when none match. Callers pass rules already ordered
// by priority descending; ties keep the store's natural order, which is
// unspecified.
//
// A criteria key outside the matchable-field whitelist is a tenant
// configuration error and aborts selection rather than silently not matching.
func SelectRule(lead *domain.Lead, activeRules []*domain.AssignmentRule) (*domain.AssignmentRule, error) {
	for _, rule := range activeRules {
		ok, err := Matches(lead, rule.Criteria)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		if ok {
			return rule, nil
		}
	}
	return nil, nil
}

// Matches reports whether every criteria entry equals the same-named lead
// field. An empty or nil criteria map matches unconditionally (a catch-all
// rule). Comparison is strict string equality; an unset lead field never
// matches a concrete expected value.
func Matches(lead *domain.Lead, criteria map[string]any) (bool, error) {
	// Validate every key up front. A rule holding an unknown key is a
	// configuration error regardless of whether some other entry would
	// already have failed the match; checking inside the comparison loop
	// would make the outcome depend on map iteration order.
	for key := range criteria {
		if _, known := domain.MatchableFields[key]; !known {
			return false, fmt.Errorf("%w: %q", domain.ErrUnknownCriteria, key)
		}
	}

	for key, expected := range criteria {
		value, _ := lead.Field(key)
		want, ok := expected.(string)
		if !ok {
			// Criteria is stored as JSON; non-string values cannot equal the
			// string-typed matchable fields.
			return false, nil
		}
		if value != want {
			return false, nil
		}
	}
	return true, nil
}
