package proposals

import (
	"fmt"
	"strings"
	"time"
)

// Status is the proposal lifecycle state.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusViewed   Status = "viewed"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

var knownStatuses = map[Status]bool{
	StatusDraft:    true,
	StatusSent:     true,
	StatusViewed:   true,
	StatusAccepted: true,
	StatusRejected: true,
	StatusExpired:  true,
}

// ParseStatus validates a status string supplied by a caller. Unknown values
// are rejected rather than silently coerced.
func ParseStatus(input string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(input)))
	if !knownStatuses[s] {
		return "", NewValidationError(fmt.Sprintf("unknown proposal status %q", input))
	}
	return s, nil
}

// NormalizeStatus coerces arbitrary status input to a known value, falling
// back to draft. Kept for list filtering where stored dashboards pass through
// whatever the UI had saved.
func NormalizeStatus(input string) Status {
	s, err := ParseStatus(input)
	if err != nil {
		return StatusDraft
	}
	return s
}

// Terminal reports whether no further transition verbs apply.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusExpired
}

// Treatment is a priced line item on a proposal.
type Treatment struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Price    float64 `json:"price,omitempty"`
	Quantity int     `json:"quantity,omitempty"`
}

// LeadSummary is the lead projection joined onto hydrated proposal reads.
type LeadSummary struct {
	ID       string `json:"id"`
	ClinicID string `json:"clinic_id,omitempty"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Status   string `json:"status,omitempty"`
}

// OwnerSummary is the sales user projection joined onto hydrated reads.
type OwnerSummary struct {
	ID       string `json:"id"`
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Proposal is a priced treatment offer tracked through a fixed lifecycle.
type Proposal struct {
	ID                 string         `json:"id"`
	SalesUserID        string         `json:"sales_user_id"`
	ClinicID           string         `json:"clinic_id,omitempty"`
	LeadID             string         `json:"lead_id"`
	Title              string         `json:"title"`
	Description        string         `json:"description,omitempty"`
	Status             Status         `json:"status"`
	Treatments         []Treatment    `json:"treatments"`
	Subtotal           float64        `json:"subtotal"`
	DiscountPercent    float64        `json:"discount_percent"`
	DiscountAmount     float64        `json:"discount_amount"`
	TotalValue         float64        `json:"total_value"`
	WinProbability     int            `json:"win_probability"`
	ValidUntil         *time.Time     `json:"valid_until,omitempty"`
	PaymentTerms       string         `json:"payment_terms,omitempty"`
	TermsAndConditions string         `json:"terms_and_conditions,omitempty"`
	RejectionReason    string         `json:"rejection_reason,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	ViewCount          int            `json:"view_count"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	SentAt             *time.Time     `json:"sent_at,omitempty"`
	FirstViewedAt      *time.Time     `json:"first_viewed_at,omitempty"`
	ViewedAt           *time.Time     `json:"viewed_at,omitempty"`
	AcceptedAt         *time.Time     `json:"accepted_at,omitempty"`
	RejectedAt         *time.Time     `json:"rejected_at,omitempty"`

	Lead      *LeadSummary  `json:"lead,omitempty"`
	SalesUser *OwnerSummary `json:"sales_user,omitempty"`
}

// CreateInput is the request body for creating a proposal.
type CreateInput struct {
	LeadID             string         `json:"lead_id"`
	Title              string         `json:"title"`
	Description        string         `json:"description,omitempty"`
	Treatments         []Treatment    `json:"treatments"`
	Subtotal           float64        `json:"subtotal,omitempty"`
	DiscountPercent    float64        `json:"discount_percent,omitempty"`
	DiscountAmount     float64        `json:"discount_amount,omitempty"`
	TotalValue         float64        `json:"total_value,omitempty"`
	WinProbability     int            `json:"win_probability,omitempty"`
	ValidUntil         *time.Time     `json:"valid_until,omitempty"`
	PaymentTerms       string         `json:"payment_terms,omitempty"`
	TermsAndConditions string         `json:"terms_and_conditions,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// Validate checks required create fields.
func (in *CreateInput) Validate() error {
	if strings.TrimSpace(in.LeadID) == "" || strings.TrimSpace(in.Title) == "" {
		return NewValidationError("lead_id and title are required")
	}
	if len(in.Treatments) == 0 {
		return NewValidationError("at least one treatment is required")
	}
	if in.WinProbability < 0 || in.WinProbability > 100 {
		return NewValidationError("win_probability must be between 0 and 100")
	}
	return nil
}

// UpdateInput is a partial patch. Pointer fields distinguish "absent" from
// zero; Treatments and Metadata use nil for absent.
type UpdateInput struct {
	Title              *string        `json:"title,omitempty"`
	Description        *string        `json:"description,omitempty"`
	Treatments         []Treatment    `json:"treatments,omitempty"`
	Subtotal           *float64       `json:"subtotal,omitempty"`
	DiscountPercent    *float64       `json:"discount_percent,omitempty"`
	DiscountAmount     *float64       `json:"discount_amount,omitempty"`
	TotalValue         *float64       `json:"total_value,omitempty"`
	WinProbability     *int           `json:"win_probability,omitempty"`
	ValidUntil         *time.Time     `json:"valid_until,omitempty"`
	PaymentTerms       *string        `json:"payment_terms,omitempty"`
	TermsAndConditions *string        `json:"terms_and_conditions,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	Status             *string        `json:"status,omitempty"`
}

// Validate checks the patch. A supplied treatments list must be non-empty and
// a supplied status must be a known value.
func (in *UpdateInput) Validate() error {
	if in.Treatments != nil && len(in.Treatments) == 0 {
		return NewValidationError("treatments must be a non-empty array")
	}
	if in.Status != nil {
		if _, err := ParseStatus(*in.Status); err != nil {
			return err
		}
	}
	if in.WinProbability != nil && (*in.WinProbability < 0 || *in.WinProbability > 100) {
		return NewValidationError("win_probability must be between 0 and 100")
	}
	return nil
}

// Empty reports whether the patch changes nothing.
func (in *UpdateInput) Empty() bool {
	return in.Title == nil && in.Description == nil && in.Treatments == nil &&
		in.Subtotal == nil && in.DiscountPercent == nil && in.DiscountAmount == nil &&
		in.TotalValue == nil && in.WinProbability == nil && in.ValidUntil == nil &&
		in.PaymentTerms == nil && in.TermsAndConditions == nil && in.Metadata == nil &&
		in.Status == nil
}

// ListFilter selects and pages proposals owned by the actor.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Normalize clamps paging bounds.
func (f *ListFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// ListResult is a page of proposals plus paging metadata.
type ListResult struct {
	Items   []*Proposal `json:"items"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}
