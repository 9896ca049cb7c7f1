package leads

import (
	"context"
	"errors"
	"sync"
)

// ErrLeadNotFound is returned when a lead is not visible to the actor.
var ErrLeadNotFound = errors.New("leads: lead not found")

// Repository defines the lead reads and the single status side effect the
// proposal workflow is allowed to perform.
type Repository interface {
	// GetOwned returns the lead scoped to the owning sales user and, when
	// non-empty, the clinic.
	GetOwned(ctx context.Context, salesUserID, clinicID, leadID string) (*Lead, error)
	// MarkWon sets the lead's terminal won status.
	MarkWon(ctx context.Context, salesUserID, clinicID, leadID string) error
}

// InMemoryRepository is an in-process Repository for tests and local runs.
type InMemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]*Lead
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{leads: make(map[string]*Lead)}
}

// Put seeds a lead.
func (r *InMemoryRepository) Put(lead *Lead) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads[lead.ID] = lead
}

func (r *InMemoryRepository) GetOwned(ctx context.Context, salesUserID, clinicID, leadID string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lead, ok := r.leads[leadID]
	if !ok || lead.SalesUserID != salesUserID {
		return nil, ErrLeadNotFound
	}
	if clinicID != "" && lead.ClinicID != clinicID {
		return nil, ErrLeadNotFound
	}
	out := *lead
	return &out, nil
}

func (r *InMemoryRepository) MarkWon(ctx context.Context, salesUserID, clinicID, leadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lead, ok := r.leads[leadID]
	if !ok || lead.SalesUserID != salesUserID {
		return ErrLeadNotFound
	}
	if clinicID != "" && lead.ClinicID != clinicID {
		return ErrLeadNotFound
	}
	lead.Status = StatusWon
	return nil
}
