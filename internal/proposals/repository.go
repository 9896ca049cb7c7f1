package proposals

import (
	"context"
	"time"
)

// Scope restricts every read and write to the owning sales user, and to the
// clinic when the caller carries one. An empty ClinicID means no tenant
// filter.
type Scope struct {
	ActorID  string
	ClinicID string
}

// Ref is the minimal projection read before a guarded transition.
type Ref struct {
	ID       string
	Status   Status
	LeadID   string
	ClinicID string
	Title    string
}

// TransitionPatch is the field set applied by a status-guarded transition.
type TransitionPatch struct {
	Status          Status
	SentAt          *time.Time
	AcceptedAt      *time.Time
	RejectedAt      *time.Time
	WinProbability  *int
	RejectionReason *string
}

// Repository defines the persistence gateway for proposals. The conditional
// variants (TransitionStatus, Delete) enforce the expected-status precondition
// at the store so concurrent losers fail instead of silently overwriting.
type Repository interface {
	Insert(ctx context.Context, p *Proposal) error
	GetHydrated(ctx context.Context, scope Scope, id string) (*Proposal, error)
	GetRef(ctx context.Context, scope Scope, id string) (*Ref, error)
	UpdateFields(ctx context.Context, scope Scope, id string, patch *UpdateInput) (*Proposal, error)
	TransitionStatus(ctx context.Context, scope Scope, id string, expected Status, patch TransitionPatch) (*Proposal, error)
	IncrementView(ctx context.Context, scope Scope, id string) (p *Proposal, firstView bool, err error)
	Delete(ctx context.Context, scope Scope, id string) error
	List(ctx context.Context, scope Scope, filter ListFilter) (*ListResult, error)
}
