package domain

import "time"

// Lead carries the attributes the engine reads for criteria matching plus
// the owner it mutates. The full CRM lead record is wider; everything else
// is opaque to this service.
type Lead struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Company   *string   `json:"company,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Status    string    `json:"status"`
	Source    string    `json:"source"`
	OwnerID   *string   `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MatchableFields is the whitelist of lead fields a rule's criteria map may
// reference. A criteria key outside this set is a tenant configuration error,
// not a silent non-match.
var MatchableFields = map[string]struct{}{
	"source":  {},
	"status":  {},
	"company": {},
	"email":   {},
	"phone":   {},
}

// Field returns the named matchable attribute value. The second return is
// false when the field is not in the whitelist. Nullable fields report an
// empty string when unset, which never equals a concrete criteria value.
func (l *Lead) Field(name string) (string, bool) {
	switch name {
	case "source":
		return l.Source, true
	case "status":
		return l.Status, true
	case "company":
		return deref(l.Company), true
	case "email":
		return deref(l.Email), true
	case "phone":
		return deref(l.Phone), true
	}
	return "", false
}

// FullName is used in notification subjects and bodies.
func (l *Lead) FullName() string {
	if l.FirstName == "" {
		return l.LastName
	}
	if l.LastName == "" {
		return l.FirstName
	}
	return l.FirstName + " " + l.LastName
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
