// Package activities is the append-only sales audit trail. Rows are written
// once per meaningful lead/proposal event and never updated or deleted.
package activities

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type classifies an activity row.
type Type string

const (
	TypeNote         Type = "note"
	TypeStatusChange Type = "status_change"
	TypeEmail        Type = "email"
)

// Activity is one immutable audit record.
type Activity struct {
	ID            string         `json:"id"`
	LeadID        string         `json:"lead_id"`
	SalesUserID   string         `json:"sales_user_id"`
	ProposalID    string         `json:"proposal_id,omitempty"`
	Type          Type           `json:"type"`
	Subject       string         `json:"subject"`
	Description   string         `json:"description,omitempty"`
	ContactMethod string         `json:"contact_method,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Recorder appends audit rows. Implementations must never mutate existing
// rows.
type Recorder interface {
	Append(ctx context.Context, activity Activity) error
}

// Store persists activities in the relational database.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over a database/sql handle.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		panic("activities: db required")
	}
	return &Store{db: db}
}

// Column order matches the Append placeholders and the ListForProposal scan.
const insertColumns = `id, lead_id, sales_user_id, proposal_id, activity_type, subject,
			description, contact_method, metadata, created_at`

// Append inserts one audit row.
func (s *Store) Append(ctx context.Context, activity Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}

	var metadata []byte
	if activity.Metadata != nil {
		var err error
		metadata, err = json.Marshal(activity.Metadata)
		if err != nil {
			return fmt.Errorf("activities: marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO sales_activities (` + insertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		activity.ID,
		activity.LeadID,
		activity.SalesUserID,
		nullString(activity.ProposalID),
		string(activity.Type),
		activity.Subject,
		nullString(activity.Description),
		nullString(activity.ContactMethod),
		metadata,
		activity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("activities: insert failed: %w", err)
	}
	return nil
}

// ListForProposal returns the audit trail of one proposal, oldest first.
func (s *Store) ListForProposal(ctx context.Context, salesUserID, proposalID string) ([]Activity, error) {
	query := `
		SELECT id, lead_id, sales_user_id, COALESCE(proposal_id, ''), activity_type,
			   subject, COALESCE(description, ''), COALESCE(contact_method, ''),
			   metadata, created_at
		FROM sales_activities
		WHERE sales_user_id = $1 AND proposal_id = $2
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, salesUserID, proposalID)
	if err != nil {
		return nil, fmt.Errorf("activities: query failed: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var (
			a        Activity
			kind     string
			metadata []byte
		)
		if err := rows.Scan(&a.ID, &a.LeadID, &a.SalesUserID, &a.ProposalID, &kind,
			&a.Subject, &a.Description, &a.ContactMethod, &metadata, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("activities: scan failed: %w", err)
		}
		a.Type = Type(kind)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
				return nil, fmt.Errorf("activities: unmarshal metadata: %w", err)
			}
		}
		out = append(out, a)
	}
	if out == nil {
		out = []Activity{}
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
