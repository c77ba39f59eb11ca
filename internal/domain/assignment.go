package domain

import "time"

// AssignmentType selects the algorithm used to resolve a matched rule to a user.
type AssignmentType string

const (
	AssignSpecificUser AssignmentType = "specific_user"
	AssignRoundRobin   AssignmentType = "round_robin"
	AssignLoadBalance  AssignmentType = "load_balance"
	AssignTerritory    AssignmentType = "territory"
)

func (t AssignmentType) IsValid() bool {
	switch t {
	case AssignSpecificUser, AssignRoundRobin, AssignLoadBalance, AssignTerritory:
		return true
	}
	return false
}

// QueueStatus tracks the lifecycle of a queue item.
// pending -> processing -> assigned | failed. Items are never deleted.
type QueueStatus string

const (
	StatusPending    QueueStatus = "pending"
	StatusProcessing QueueStatus = "processing"
	StatusAssigned   QueueStatus = "assigned"
	StatusFailed     QueueStatus = "failed"
)

func (s QueueStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusAssigned, StatusFailed:
		return true
	}
	return false
}

// QueueItem is one pending unit of work: "this lead needs an owner".
// Created by upstream lead-creation events; mutated only by the engine.
type QueueItem struct {
	ID           string      `json:"id"`
	LeadID       string      `json:"lead_id"`
	TenantID     string      `json:"tenant_id"`
	FranchiseID  *string     `json:"franchise_id,omitempty"`
	Priority     int         `json:"priority"`
	Status       QueueStatus `json:"status"`
	RetryCount   int         `json:"retry_count"`
	ErrorMessage *string     `json:"error_message,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`

	// ProcessingStartedAt is stamped when a consumer claims the item and is
	// the reference point for stale-claim detection.
	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty"`
	ProcessedAt         *time.Time `json:"processed_at,omitempty"`
}

// AssignmentRule is a tenant-configured policy mapping matching leads to a
// strategy. Read-only to this service.
type AssignmentRule struct {
	ID              string         `json:"id"`
	TenantID        string         `json:"tenant_id"`
	RuleName        string         `json:"rule_name"`
	IsActive        bool           `json:"is_active"`
	Priority        int            `json:"priority"`
	AssignmentType  AssignmentType `json:"assignment_type"`
	AssignedTo      *string        `json:"assigned_to,omitempty"`
	TerritoryID     *string        `json:"territory_id,omitempty"`
	MaxLeadsPerUser *int           `json:"max_leads_per_user,omitempty"`
	Criteria        map[string]any `json:"criteria"`
}

// UserCapacity is a user's current/maximum lead load and availability flag.
// current_leads <= max_leads is advisory; only load_balance filters on it.
type UserCapacity struct {
	UserID         string     `json:"user_id"`
	TenantID       string     `json:"tenant_id"`
	IsAvailable    bool       `json:"is_available"`
	CurrentLeads   int        `json:"current_leads"`
	MaxLeads       int        `json:"max_leads"`
	LastAssignedAt *time.Time `json:"last_assigned_at,omitempty"`
}

// AssignmentHistory is one append-only audit row. AssignedBy is nil for
// automated assignments made by this engine.
type AssignmentHistory struct {
	ID               string         `json:"id"`
	LeadID           string         `json:"lead_id"`
	AssignedTo       string         `json:"assigned_to"`
	AssignedFrom     *string        `json:"assigned_from,omitempty"`
	AssignmentMethod AssignmentType `json:"assignment_method"`
	RuleID           *string        `json:"rule_id,omitempty"`
	TenantID         string         `json:"tenant_id"`
	FranchiseID      *string        `json:"franchise_id,omitempty"`
	AssignedBy       *string        `json:"assigned_by,omitempty"`
	AssignedAt       time.Time      `json:"assigned_at"`
}

// Profile holds the subset of a user profile needed to notify an assignee.
type Profile struct {
	ID        string  `json:"id"`
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// EmailAccount is a tenant/franchise sending account for outbound mail.
type EmailAccount struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
	IsPrimary    bool   `json:"is_primary"`
}

// QueueFilter holds query parameters for paginated queue listing.
type QueueFilter struct {
	Status   *QueueStatus
	TenantID *string
	Page     int
	Limit    int
}
