// Package events defines the outbound domain events emitted after committed
// proposal state changes, plus the transports that carry them. Publishing is
// fire-and-forget: callers log failures and never roll back business writes.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kinds of proposal domain events.
const (
	KindProposalCreated  = "proposal.created"
	KindProposalUpdated  = "proposal.updated"
	KindProposalSent     = "proposal.sent"
	KindProposalViewed   = "proposal.viewed"
	KindProposalAccepted = "proposal.accepted"
	KindProposalRejected = "proposal.rejected"
	KindProposalBooked   = "proposal.booked"
)

// ProposalPayload carries the event body shared across proposal event kinds.
type ProposalPayload struct {
	ProposalID     string         `json:"proposal_id"`
	LeadID         string         `json:"lead_id"`
	SalesUserID    string         `json:"sales_user_id"`
	PreviousStatus string         `json:"previous_status,omitempty"`
	NewStatus      string         `json:"new_status"`
	TotalValue     float64        `json:"total_value"`
	WinProbability int            `json:"win_probability"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Context identifies who triggered the event and from where.
type Context struct {
	UserID   string `json:"user_id"`
	ClinicID string `json:"clinic_id,omitempty"`
	Source   string `json:"source"`
}

// Event is the envelope published to downstream consumers.
type Event struct {
	ID         string          `json:"event_id"`
	Kind       string          `json:"kind"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    ProposalPayload `json:"payload"`
	Context    Context         `json:"context"`
}

// New builds an event envelope with a fresh id and timestamp.
func New(kind string, payload ProposalPayload, evctx Context) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
		Context:    evctx,
	}
}

// Publisher delivers domain events to a downstream transport.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
