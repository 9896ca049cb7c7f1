package leads

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the repository uses; pgxmock
// satisfies it in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	pool Querier
}

// NewPostgresRepository initializes a repo backed by a pgx pool (or mock).
func NewPostgresRepository(pool Querier) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx querier required")
	}
	return &PostgresRepository{pool: pool}
}

// GetOwned fetches a lead scoped to its owning sales user (+clinic).
func (r *PostgresRepository) GetOwned(ctx context.Context, salesUserID, clinicID, leadID string) (*Lead, error) {
	query := `
		SELECT id, COALESCE(clinic_id, ''), sales_user_id, name,
			   COALESCE(email, ''), COALESCE(phone, ''), COALESCE(status, ''), created_at
		FROM sales_leads
		WHERE id = $1 AND sales_user_id = $2 AND ($3 = '' OR clinic_id = $3)
	`
	row := r.pool.QueryRow(ctx, query, leadID, salesUserID, clinicID)
	var lead Lead
	if err := row.Scan(
		&lead.ID,
		&lead.ClinicID,
		&lead.SalesUserID,
		&lead.Name,
		&lead.Email,
		&lead.Phone,
		&lead.Status,
		&lead.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return &lead, nil
}

// MarkWon flips the lead to the won status.
func (r *PostgresRepository) MarkWon(ctx context.Context, salesUserID, clinicID, leadID string) error {
	query := `
		UPDATE sales_leads SET status = $4, updated_at = now()
		WHERE id = $1 AND sales_user_id = $2 AND ($3 = '' OR clinic_id = $3)
	`
	ct, err := r.pool.Exec(ctx, query, leadID, salesUserID, clinicID, StatusWon)
	if err != nil {
		return fmt.Errorf("leads: mark won failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}
