package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/freightcrm/lead-assignment-engine/internal/domain"
	"github.com/freightcrm/lead-assignment-engine/internal/repository"
)

// EmailNotifier looks up the assignee's profile and a tenant/franchise
// sending account, then POSTs the email payload to the send-email function.
// Outbound sends share one token-bucket limiter so a large batch cannot
// flood the mail function.
type EmailNotifier struct {
	directory  repository.DirectoryStore
	sendURL    string
	appBaseURL string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewEmailNotifier(
	directory repository.DirectoryStore,
	sendURL, appBaseURL string,
	timeout time.Duration,
	ratePerSec int,
) *EmailNotifier {
	return &EmailNotifier{
		directory:  directory,
		sendURL:    sendURL,
		appBaseURL: appBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
	}
}

func (n *EmailNotifier) NotifyAssigned(ctx context.Context, item *domain.QueueItem, lead *domain.Lead, userID string) error {
	profile, err := n.directory.GetProfile(ctx, userID)
	if err != nil {
		return fmt.Errorf("assignee profile: %w", err)
	}
	if profile.Email == nil || *profile.Email == "" {
		return fmt.Errorf("assignee %s has no email", userID)
	}

	account, err := n.directory.ActiveEmailAccount(ctx, item.TenantID, item.FranchiseID)
	if err != nil {
		return fmt.Errorf("sending account: %w", err)
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(SendRequest{
		AccountID: account.ID,
		To:        []string{*profile.Email},
		CC:        []string{},
		Subject:   "New Lead Assigned: " + lead.FullName(),
		Body:      n.renderBody(profile, lead, item),
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.sendURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected send-email status: %d", resp.StatusCode)
	}
	return nil
}

func (n *EmailNotifier) renderBody(profile *domain.Profile, lead *domain.Lead, item *domain.QueueItem) string {
	name := ""
	if profile.FirstName != nil {
		name = *profile.FirstName
	}
	if profile.LastName != nil {
		if name != "" {
			name += " "
		}
		name += *profile.LastName
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<p>Hi %s,</p><p>You have been assigned a new lead:</p><ul>", html.EscapeString(name))
	fmt.Fprintf(&buf, "<li><strong>Name:</strong> %s</li>", html.EscapeString(lead.FullName()))
	if lead.Company != nil && *lead.Company != "" {
		fmt.Fprintf(&buf, "<li><strong>Company:</strong> %s</li>", html.EscapeString(*lead.Company))
	}
	if lead.Email != nil && *lead.Email != "" {
		fmt.Fprintf(&buf, "<li><strong>Email:</strong> %s</li>", html.EscapeString(*lead.Email))
	}
	if lead.Phone != nil && *lead.Phone != "" {
		fmt.Fprintf(&buf, "<li><strong>Phone:</strong> %s</li>", html.EscapeString(*lead.Phone))
	}
	fmt.Fprintf(&buf, "<li><strong>Status:</strong> %s</li></ul>", html.EscapeString(lead.Status))
	fmt.Fprintf(&buf, `<p><a href="%s/dashboard/leads/%s">View Lead</a></p>`, n.appBaseURL, item.LeadID)
	return buf.String()
}

var _ Notifier = (*EmailNotifier)(nil)
