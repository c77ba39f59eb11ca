package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freightcrm/lead-assignment-engine/internal/domain"
)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore returns a Store backed by PostgreSQL.
func NewPgStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

// ---- queue ----

const queueColumns = `id, lead_id, tenant_id, franchise_id, priority, status,
	retry_count, error_message, created_at, processing_started_at, processed_at`

func (s *pgStore) PendingItems(ctx context.Context, limit int) ([]*domain.QueueItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+queueColumns+`
		FROM lead_assignment_queue
		WHERE status = 'pending'
		ORDER BY priority DESC, created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending queue items: %w", err)
	}
	defer rows.Close()
	return scanQueueItems(rows)
}

func (s *pgStore) Claim(ctx context.Context, id string) (bool, error) {
	// Conditional transition: the claim only lands if the row is still
	// pending, so two consumers racing on the same item cannot both win.
	// The claim timestamp is what the stale sweep measures against.
	tag, err := s.pool.Exec(ctx, `
		UPDATE lead_assignment_queue
		SET status = 'processing', processing_started_at = NOW()
		WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("claim queue item: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *pgStore) MarkAssigned(ctx context.Context, id string, processedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE lead_assignment_queue
		SET status = 'assigned', processed_at = $1, error_message = NULL
		WHERE id = $2`, processedAt, id)
	return err
}

func (s *pgStore) MarkFailed(ctx context.Context, id, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE lead_assignment_queue
		SET status = 'failed', error_message = $1, retry_count = retry_count + 1
		WHERE id = $2`, errMsg, id)
	return err
}

func (s *pgStore) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	// Staleness is measured from the claim timestamp. An item that waited
	// in the pending backlog for hours is not stale the moment a consumer
	// picks it up.
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.pool.Exec(ctx, `
		UPDATE lead_assignment_queue
		SET status = 'pending', processing_started_at = NULL
		WHERE status = 'processing' AND processing_started_at <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("requeue stale items: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *pgStore) GetItem(ctx context.Context, id string) (*domain.QueueItem, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+queueColumns+`
		FROM lead_assignment_queue WHERE id = $1`, id)

	item, err := scanQueueItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return item, err
}

func (s *pgStore) ListItems(ctx context.Context, f domain.QueueFilter) ([]*domain.QueueItem, int, error) {
	where, args := buildQueueWhere(f)
	offset := (f.Page - 1) * f.Limit

	var total int
	countQuery := "SELECT COUNT(*) FROM lead_assignment_queue" + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count queue items: %w", err)
	}

	args = append(args, f.Limit, offset)
	query := fmt.Sprintf(`
		SELECT `+queueColumns+`
		FROM lead_assignment_queue%s
		ORDER BY priority DESC, created_at ASC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	items, err := scanQueueItems(rows)
	return items, total, err
}

func (s *pgStore) Retry(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE lead_assignment_queue
		SET status = 'pending', error_message = NULL,
		    processing_started_at = NULL, processed_at = NULL
		WHERE id = $1 AND status = 'failed'`, id)
	if err != nil {
		return fmt.Errorf("retry queue item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing item from one in a non-retryable state.
		if _, err := s.GetItem(ctx, id); err != nil {
			return err
		}
		return domain.ErrNotRetryable
	}
	return nil
}

func (s *pgStore) StatusCounts(ctx context.Context) (map[domain.QueueStatus]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM lead_assignment_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count queue statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.QueueStatus]int)
	for rows.Next() {
		var status domain.QueueStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ---- leads ----

func (s *pgStore) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, first_name, last_name, company, email, phone,
		       status, source, owner_id, created_at
		FROM leads WHERE id = $1`, id)

	var l domain.Lead
	err := row.Scan(&l.ID, &l.TenantID, &l.FirstName, &l.LastName, &l.Company,
		&l.Email, &l.Phone, &l.Status, &l.Source, &l.OwnerID, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return &l, nil
}

func (s *pgStore) SetLeadOwner(ctx context.Context, leadID, userID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE leads SET owner_id = $1 WHERE id = $2`, userID, leadID)
	return err
}

// ---- rules ----

func (s *pgStore) ActiveRules(ctx context.Context, tenantID string) ([]*domain.AssignmentRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, rule_name, is_active, priority, assignment_type,
		       assigned_to, territory_id, max_leads_per_user, criteria
		FROM lead_assignment_rules
		WHERE tenant_id = $1 AND is_active = true
		ORDER BY priority DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("fetch active rules: %w", err)
	}
	defer rows.Close()

	var rules []*domain.AssignmentRule
	for rows.Next() {
		var r domain.AssignmentRule
		err := rows.Scan(&r.ID, &r.TenantID, &r.RuleName, &r.IsActive, &r.Priority,
			&r.AssignmentType, &r.AssignedTo, &r.TerritoryID, &r.MaxLeadsPerUser, &r.Criteria)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, &r)
	}
	return rules, rows.Err()
}

// ---- capacity ----

func (s *pgStore) LeastRecentlyAssigned(ctx context.Context, tenantID string) (string, error) {
	var userID string
	err := s.pool.QueryRow(ctx, `
		SELECT user_id FROM user_capacity
		WHERE tenant_id = $1 AND is_available = true
		ORDER BY last_assigned_at ASC NULLS FIRST
		LIMIT 1`, tenantID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("round-robin candidate: %w", err)
	}
	return userID, nil
}

func (s *pgStore) LeastLoaded(ctx context.Context, tenantID string, maxLeads *int) (string, error) {
	query := `
		SELECT user_id FROM user_capacity
		WHERE tenant_id = $1 AND is_available = true`
	args := []any{tenantID}
	if maxLeads != nil {
		args = append(args, *maxLeads)
		query += fmt.Sprintf(" AND current_leads < $%d", len(args))
	}
	query += `
		ORDER BY current_leads ASC
		LIMIT 1`

	var userID string
	err := s.pool.QueryRow(ctx, query, args...).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load-balance candidate: %w", err)
	}
	return userID, nil
}

func (s *pgStore) IncrementLeadCount(ctx context.Context, userID, tenantID string) error {
	// Single server-side increment: no read-modify-write, so concurrent
	// engine instances cannot lose updates.
	_, err := s.pool.Exec(ctx, `
		UPDATE user_capacity
		SET current_leads = current_leads + 1, last_assigned_at = NOW()
		WHERE user_id = $1 AND tenant_id = $2`, userID, tenantID)
	if err != nil {
		return fmt.Errorf("increment lead count: %w", err)
	}
	return nil
}

// ---- territories ----

func (s *pgStore) PrimaryTerritoryUser(ctx context.Context, territoryID string) (string, error) {
	var userID string
	err := s.pool.QueryRow(ctx, `
		SELECT user_id FROM territory_assignments
		WHERE territory_id = $1 AND is_primary = true
		LIMIT 1`, territoryID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("territory candidate: %w", err)
	}
	return userID, nil
}

// ---- history ----

func (s *pgStore) InsertHistory(ctx context.Context, h *domain.AssignmentHistory) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO lead_assignment_history
			(id, lead_id, assigned_to, assigned_from, assignment_method,
			 rule_id, tenant_id, franchise_id, assigned_by, assigned_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		h.ID, h.LeadID, h.AssignedTo, h.AssignedFrom, h.AssignmentMethod,
		h.RuleID, h.TenantID, h.FranchiseID, h.AssignedBy, h.AssignedAt,
	)
	if err != nil {
		return fmt.Errorf("insert assignment history: %w", err)
	}
	return nil
}

// ---- directory ----

func (s *pgStore) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, first_name, last_name
		FROM profiles WHERE id = $1`, userID)

	var p domain.Profile
	err := row.Scan(&p.ID, &p.Email, &p.FirstName, &p.LastName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (s *pgStore) ActiveEmailAccount(ctx context.Context, tenantID string, franchiseID *string) (*domain.EmailAccount, error) {
	// Franchise-scoped account wins when the queue item carries a franchise.
	query := `
		SELECT id, email_address, is_primary
		FROM email_accounts
		WHERE is_active = true AND `
	var arg any
	if franchiseID != nil {
		query += "franchise_id = $1"
		arg = *franchiseID
	} else {
		query += "tenant_id = $1"
		arg = tenantID
	}
	query += `
		ORDER BY is_primary DESC
		LIMIT 1`

	var a domain.EmailAccount
	err := s.pool.QueryRow(ctx, query, arg).Scan(&a.ID, &a.EmailAddress, &a.IsPrimary)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get email account: %w", err)
	}
	return &a, nil
}

// ---- activities ----

func (s *pgStore) LinkOpenTasks(ctx context.Context, userID, tenantID string, franchiseID *string, leadID string) (int64, error) {
	query := `
		UPDATE activities
		SET lead_id = $1
		WHERE assigned_to = $2 AND tenant_id = $3
		  AND lead_id IS NULL AND activity_type = 'task'`
	args := []any{leadID, userID, tenantID}
	if franchiseID != nil {
		args = append(args, *franchiseID)
		query += fmt.Sprintf(" AND franchise_id = $%d", len(args))
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("link open tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ---- helpers ----

func scanQueueItem(row pgx.Row) (*domain.QueueItem, error) {
	var item domain.QueueItem
	err := row.Scan(
		&item.ID, &item.LeadID, &item.TenantID, &item.FranchiseID,
		&item.Priority, &item.Status, &item.RetryCount, &item.ErrorMessage,
		&item.CreatedAt, &item.ProcessingStartedAt, &item.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func scanQueueItems(rows pgx.Rows) ([]*domain.QueueItem, error) {
	var result []*domain.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// buildQueueWhere builds a parameterised WHERE clause from a QueueFilter.
func buildQueueWhere(f domain.QueueFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(condition string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.TenantID != nil {
		add("tenant_id = $%d", *f.TenantID)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
