package proposals

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of pgxpool.Pool the repository uses; pgxmock
// satisfies it in tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores proposals in the relational database.
type PostgresRepository struct {
	db Querier
}

// NewPostgresRepository initializes a repo backed by a pgx pool (or mock).
func NewPostgresRepository(db Querier) *PostgresRepository {
	if db == nil {
		panic("proposals: pgx querier required")
	}
	return &PostgresRepository{db: db}
}

const hydratedColumns = `
	p.id, p.sales_user_id, COALESCE(p.clinic_id, ''), p.lead_id, p.title,
	COALESCE(p.description, ''), p.status, p.treatments, p.subtotal,
	p.discount_percent, p.discount_amount, p.total_value, p.win_probability,
	p.valid_until, COALESCE(p.payment_terms, ''),
	COALESCE(p.terms_and_conditions, ''), COALESCE(p.rejection_reason, ''),
	p.metadata, p.view_count, p.created_at, p.updated_at, p.sent_at,
	p.first_viewed_at, p.viewed_at, p.accepted_at, p.rejected_at,
	l.id, COALESCE(l.clinic_id, ''), l.name, COALESCE(l.email, ''),
	COALESCE(l.phone, ''), COALESCE(l.status, ''),
	COALESCE(u.id, ''), COALESCE(u.full_name, ''), COALESCE(u.email, '')`

const hydratedFrom = `
	FROM sales_proposals p
	JOIN sales_leads l ON l.id = p.lead_id
	LEFT JOIN users u ON u.id = p.sales_user_id`

// scopeClause uses "empty means no filter" so the statement shape stays
// stable for prepared statements and mocks.
const scopeClause = ` WHERE p.id = $1 AND p.sales_user_id = $2 AND ($3 = '' OR p.clinic_id = $3)`

// Insert writes a new draft row. ID and timestamps must be set by the caller.
func (r *PostgresRepository) Insert(ctx context.Context, p *Proposal) error {
	treatments, err := json.Marshal(p.Treatments)
	if err != nil {
		return fmt.Errorf("proposals: marshal treatments: %w", err)
	}
	metadata, err := json.Marshal(orEmptyMap(p.Metadata))
	if err != nil {
		return fmt.Errorf("proposals: marshal metadata: %w", err)
	}

	query := `
		INSERT INTO sales_proposals (
			id, sales_user_id, clinic_id, lead_id, title, description, status,
			treatments, subtotal, discount_percent, discount_amount, total_value,
			win_probability, valid_until, payment_terms, terms_and_conditions,
			metadata, view_count
		) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, 0)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRow(ctx, query,
		p.ID,
		p.SalesUserID,
		p.ClinicID,
		p.LeadID,
		p.Title,
		p.Description,
		string(p.Status),
		treatments,
		p.Subtotal,
		p.DiscountPercent,
		p.DiscountAmount,
		p.TotalValue,
		p.WinProbability,
		p.ValidUntil,
		p.PaymentTerms,
		p.TermsAndConditions,
		metadata,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("proposals: insert failed: %w", err)
	}
	return nil
}

// GetHydrated fetches a proposal joined with its lead and owner projections,
// scoped to the actor and clinic.
func (r *PostgresRepository) GetHydrated(ctx context.Context, scope Scope, id string) (*Proposal, error) {
	query := `SELECT` + hydratedColumns + hydratedFrom + scopeClause
	row := r.db.QueryRow(ctx, query, id, scope.ActorID, scope.ClinicID)
	p, err := scanHydrated(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("proposals: select failed: %w", err)
	}
	return p, nil
}

// GetRef fetches the transition-relevant projection.
func (r *PostgresRepository) GetRef(ctx context.Context, scope Scope, id string) (*Ref, error) {
	query := `
		SELECT p.id, p.status, p.lead_id, COALESCE(p.clinic_id, ''), p.title
		FROM sales_proposals p` + scopeClause
	var ref Ref
	var status string
	err := r.db.QueryRow(ctx, query, id, scope.ActorID, scope.ClinicID).
		Scan(&ref.ID, &status, &ref.LeadID, &ref.ClinicID, &ref.Title)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("proposals: select ref failed: %w", err)
	}
	ref.Status = Status(status)
	return &ref, nil
}

// UpdateFields applies an allow-listed patch without a status precondition
// and returns the hydrated row.
func (r *PostgresRepository) UpdateFields(ctx context.Context, scope Scope, id string, patch *UpdateInput) (*Proposal, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id, scope.ActorID, scope.ClinicID}
	argIdx := 4

	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Treatments != nil {
		data, err := json.Marshal(patch.Treatments)
		if err != nil {
			return nil, fmt.Errorf("proposals: marshal treatments: %w", err)
		}
		add("treatments", data)
	}
	if patch.Subtotal != nil {
		add("subtotal", *patch.Subtotal)
	}
	if patch.DiscountPercent != nil {
		add("discount_percent", *patch.DiscountPercent)
	}
	if patch.DiscountAmount != nil {
		add("discount_amount", *patch.DiscountAmount)
	}
	if patch.TotalValue != nil {
		add("total_value", *patch.TotalValue)
	}
	if patch.WinProbability != nil {
		add("win_probability", *patch.WinProbability)
	}
	if patch.ValidUntil != nil {
		add("valid_until", *patch.ValidUntil)
	}
	if patch.PaymentTerms != nil {
		add("payment_terms", *patch.PaymentTerms)
	}
	if patch.TermsAndConditions != nil {
		add("terms_and_conditions", *patch.TermsAndConditions)
	}
	if patch.Metadata != nil {
		data, err := json.Marshal(patch.Metadata)
		if err != nil {
			return nil, fmt.Errorf("proposals: marshal metadata: %w", err)
		}
		add("metadata", data)
	}
	if patch.Status != nil {
		status, err := ParseStatus(*patch.Status)
		if err != nil {
			return nil, err
		}
		add("status", string(status))
	}

	query := fmt.Sprintf(`
		UPDATE sales_proposals p SET %s
		WHERE p.id = $1 AND p.sales_user_id = $2 AND ($3 = '' OR p.clinic_id = $3)
		RETURNING p.id`, strings.Join(sets, ", "))

	var updatedID string
	if err := r.db.QueryRow(ctx, query, args...).Scan(&updatedID); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("proposals: update failed: %w", err)
	}
	return r.GetHydrated(ctx, scope, id)
}

// TransitionStatus performs the read-then-conditionally-write guard in a
// single statement: the WHERE clause pins the expected current status, so a
// competing transition makes this affect zero rows.
func (r *PostgresRepository) TransitionStatus(ctx context.Context, scope Scope, id string, expected Status, patch TransitionPatch) (*Proposal, error) {
	sets := []string{"status = $4", "updated_at = now()"}
	args := []any{id, scope.ActorID, scope.ClinicID, string(patch.Status), string(expected)}
	argIdx := 6

	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if patch.SentAt != nil {
		add("sent_at", *patch.SentAt)
	}
	if patch.AcceptedAt != nil {
		add("accepted_at", *patch.AcceptedAt)
	}
	if patch.RejectedAt != nil {
		add("rejected_at", *patch.RejectedAt)
	}
	if patch.WinProbability != nil {
		add("win_probability", *patch.WinProbability)
	}
	if patch.RejectionReason != nil {
		add("rejection_reason", *patch.RejectionReason)
	}

	query := fmt.Sprintf(`
		UPDATE sales_proposals p SET %s
		WHERE p.id = $1 AND p.sales_user_id = $2 AND ($3 = '' OR p.clinic_id = $3) AND p.status = $5
		RETURNING p.id`, strings.Join(sets, ", "))

	var updatedID string
	if err := r.db.QueryRow(ctx, query, args...).Scan(&updatedID); err != nil {
		if err == pgx.ErrNoRows {
			// Distinguish a lost race from a missing row.
			if _, refErr := r.GetRef(ctx, scope, id); refErr != nil {
				return nil, refErr
			}
			return nil, ErrStateConflict
		}
		return nil, fmt.Errorf("proposals: transition failed: %w", err)
	}
	return r.GetHydrated(ctx, scope, id)
}

// IncrementView bumps view_count atomically. first_viewed_at is set only on
// the first observation; the single UPDATE statement makes concurrent views
// lose no counts.
func (r *PostgresRepository) IncrementView(ctx context.Context, scope Scope, id string) (*Proposal, bool, error) {
	query := `
		UPDATE sales_proposals p SET
			view_count = p.view_count + 1,
			viewed_at = now(),
			first_viewed_at = COALESCE(p.first_viewed_at, now()),
			updated_at = now()
		WHERE p.id = $1 AND p.sales_user_id = $2 AND ($3 = '' OR p.clinic_id = $3)
		RETURNING p.view_count
	`
	var viewCount int
	if err := r.db.QueryRow(ctx, query, id, scope.ActorID, scope.ClinicID).Scan(&viewCount); err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, ErrNotFound
		}
		return nil, false, fmt.Errorf("proposals: increment view failed: %w", err)
	}
	p, err := r.GetHydrated(ctx, scope, id)
	if err != nil {
		return nil, false, err
	}
	return p, viewCount == 1, nil
}

// Delete removes a draft row. The status guard rides in the WHERE clause.
func (r *PostgresRepository) Delete(ctx context.Context, scope Scope, id string) error {
	query := `
		DELETE FROM sales_proposals p
		WHERE p.id = $1 AND p.sales_user_id = $2 AND ($3 = '' OR p.clinic_id = $3) AND p.status = $4
		RETURNING p.id
	`
	var deletedID string
	if err := r.db.QueryRow(ctx, query, id, scope.ActorID, scope.ClinicID, string(StatusDraft)).Scan(&deletedID); err != nil {
		if err == pgx.ErrNoRows {
			if _, refErr := r.GetRef(ctx, scope, id); refErr != nil {
				return refErr
			}
			return ErrStateConflict
		}
		return fmt.Errorf("proposals: delete failed: %w", err)
	}
	return nil
}

// List returns a page of hydrated proposals, newest first.
func (r *PostgresRepository) List(ctx context.Context, scope Scope, filter ListFilter) (*ListResult, error) {
	filter.Normalize()

	where := ` WHERE p.sales_user_id = $1 AND ($2 = '' OR p.clinic_id = $2)`
	args := []any{scope.ActorID, scope.ClinicID}
	argIdx := 3

	if filter.Status != "" && filter.Status != "all" {
		where += fmt.Sprintf(" AND p.status = $%d", argIdx)
		args = append(args, string(NormalizeStatus(filter.Status)))
		argIdx++
	}
	if filter.Search != "" {
		where += fmt.Sprintf(" AND (p.title ILIKE $%d OR l.name ILIKE $%d OR l.email ILIKE $%d)", argIdx, argIdx, argIdx)
		args = append(args, "%"+filter.Search+"%")
		argIdx++
	}

	var total int
	countQuery := `SELECT COUNT(*)` + hydratedFrom + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("proposals: count failed: %w", err)
	}

	pageQuery := `SELECT` + hydratedColumns + hydratedFrom + where +
		fmt.Sprintf(" ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, pageQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("proposals: list failed: %w", err)
	}
	defer rows.Close()

	items := []*Proposal{}
	for rows.Next() {
		p, err := scanHydrated(rows)
		if err != nil {
			return nil, fmt.Errorf("proposals: scan failed: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("proposals: list rows: %w", err)
	}

	return &ListResult{
		Items:   items,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		HasMore: total > filter.Offset+filter.Limit,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHydrated(row rowScanner) (*Proposal, error) {
	var (
		p          Proposal
		status     string
		treatments []byte
		metadata   []byte
		validUntil *time.Time
		lead       LeadSummary
		owner      OwnerSummary
	)
	err := row.Scan(
		&p.ID, &p.SalesUserID, &p.ClinicID, &p.LeadID, &p.Title,
		&p.Description, &status, &treatments, &p.Subtotal,
		&p.DiscountPercent, &p.DiscountAmount, &p.TotalValue, &p.WinProbability,
		&validUntil, &p.PaymentTerms,
		&p.TermsAndConditions, &p.RejectionReason,
		&metadata, &p.ViewCount, &p.CreatedAt, &p.UpdatedAt, &p.SentAt,
		&p.FirstViewedAt, &p.ViewedAt, &p.AcceptedAt, &p.RejectedAt,
		&lead.ID, &lead.ClinicID, &lead.Name, &lead.Email,
		&lead.Phone, &lead.Status,
		&owner.ID, &owner.FullName, &owner.Email,
	)
	if err != nil {
		return nil, err
	}
	p.Status = Status(status)
	p.ValidUntil = validUntil
	if len(treatments) > 0 {
		if err := json.Unmarshal(treatments, &p.Treatments); err != nil {
			return nil, fmt.Errorf("unmarshal treatments: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	p.Lead = &lead
	if owner.ID != "" {
		p.SalesUser = &owner
	}
	return &p, nil
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
