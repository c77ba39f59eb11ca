// Package notify delivers best-effort "new lead assigned" emails to
// assignees via the platform's send-email function.
package notify

import (
	"context"

	"github.com/freightcrm/lead-assignment-engine/internal/domain"
)

// Notifier tells an assignee about their new lead. Errors are advisory: the
// engine logs them and moves on, since the assignment already committed.
type Notifier interface {
	NotifyAssigned(ctx context.Context, item *domain.QueueItem, lead *domain.Lead, userID string) error
}

// SendRequest is the JSON body posted to the send-email function.
type SendRequest struct {
	AccountID string   `json:"accountId"`
	To        []string `json:"to"`
	CC        []string `json:"cc"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
}
