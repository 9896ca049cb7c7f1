package proposals

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemoryRepository implements Repository with in-process storage. Used for
// local development and deterministic unit tests; the mutex gives it the same
// compare-and-set semantics the SQL guards provide.
type InMemoryRepository struct {
	mu        sync.Mutex
	proposals map[string]*Proposal
	leads     map[string]*LeadSummary
	owners    map[string]*OwnerSummary
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		proposals: make(map[string]*Proposal),
		leads:     make(map[string]*LeadSummary),
		owners:    make(map[string]*OwnerSummary),
	}
}

// PutLead seeds a lead projection used to hydrate reads.
func (r *InMemoryRepository) PutLead(lead *LeadSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads[lead.ID] = lead
}

// PutOwner seeds a sales user projection used to hydrate reads.
func (r *InMemoryRepository) PutOwner(owner *OwnerSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[owner.ID] = owner
}

func (r *InMemoryRepository) visible(p *Proposal, scope Scope) bool {
	if p.SalesUserID != scope.ActorID {
		return false
	}
	if scope.ClinicID != "" && p.ClinicID != scope.ClinicID {
		return false
	}
	return true
}

func (r *InMemoryRepository) hydrate(p *Proposal) *Proposal {
	clone := *p
	clone.Treatments = append([]Treatment(nil), p.Treatments...)
	if p.Metadata != nil {
		clone.Metadata = make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			clone.Metadata[k] = v
		}
	}
	if lead, ok := r.leads[p.LeadID]; ok {
		leadCopy := *lead
		clone.Lead = &leadCopy
	}
	if owner, ok := r.owners[p.SalesUserID]; ok {
		ownerCopy := *owner
		clone.SalesUser = &ownerCopy
	}
	return &clone
}

func (r *InMemoryRepository) Insert(ctx context.Context, p *Proposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	stored := *p
	r.proposals[p.ID] = &stored
	return nil
}

func (r *InMemoryRepository) GetHydrated(ctx context.Context, scope Scope, id string) (*Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[id]
	if !ok || !r.visible(p, scope) {
		return nil, ErrNotFound
	}
	return r.hydrate(p), nil
}

func (r *InMemoryRepository) GetRef(ctx context.Context, scope Scope, id string) (*Ref, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[id]
	if !ok || !r.visible(p, scope) {
		return nil, ErrNotFound
	}
	return &Ref{ID: p.ID, Status: p.Status, LeadID: p.LeadID, ClinicID: p.ClinicID, Title: p.Title}, nil
}

func (r *InMemoryRepository) UpdateFields(ctx context.Context, scope Scope, id string, patch *UpdateInput) (*Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[id]
	if !ok || !r.visible(p, scope) {
		return nil, ErrNotFound
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Treatments != nil {
		p.Treatments = append([]Treatment(nil), patch.Treatments...)
	}
	if patch.Subtotal != nil {
		p.Subtotal = *patch.Subtotal
	}
	if patch.DiscountPercent != nil {
		p.DiscountPercent = *patch.DiscountPercent
	}
	if patch.DiscountAmount != nil {
		p.DiscountAmount = *patch.DiscountAmount
	}
	if patch.TotalValue != nil {
		p.TotalValue = *patch.TotalValue
	}
	if patch.WinProbability != nil {
		p.WinProbability = *patch.WinProbability
	}
	if patch.ValidUntil != nil {
		v := *patch.ValidUntil
		p.ValidUntil = &v
	}
	if patch.PaymentTerms != nil {
		p.PaymentTerms = *patch.PaymentTerms
	}
	if patch.TermsAndConditions != nil {
		p.TermsAndConditions = *patch.TermsAndConditions
	}
	if patch.Metadata != nil {
		p.Metadata = patch.Metadata
	}
	if patch.Status != nil {
		status, err := ParseStatus(*patch.Status)
		if err != nil {
			return nil, err
		}
		p.Status = status
	}
	p.UpdatedAt = time.Now().UTC()
	return r.hydrate(p), nil
}

func (r *InMemoryRepository) TransitionStatus(ctx context.Context, scope Scope, id string, expected Status, patch TransitionPatch) (*Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[id]
	if !ok || !r.visible(p, scope) {
		return nil, ErrNotFound
	}
	if p.Status != expected {
		return nil, ErrStateConflict
	}
	p.Status = patch.Status
	if patch.SentAt != nil {
		v := *patch.SentAt
		p.SentAt = &v
	}
	if patch.AcceptedAt != nil {
		v := *patch.AcceptedAt
		p.AcceptedAt = &v
	}
	if patch.RejectedAt != nil {
		v := *patch.RejectedAt
		p.RejectedAt = &v
	}
	if patch.WinProbability != nil {
		p.WinProbability = *patch.WinProbability
	}
	if patch.RejectionReason != nil {
		p.RejectionReason = *patch.RejectionReason
	}
	p.UpdatedAt = time.Now().UTC()
	return r.hydrate(p), nil
}

func (r *InMemoryRepository) IncrementView(ctx context.Context, scope Scope, id string) (*Proposal, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[id]
	if !ok || !r.visible(p, scope) {
		return nil, false, ErrNotFound
	}
	now := time.Now().UTC()
	p.ViewCount++
	p.ViewedAt = &now
	first := p.FirstViewedAt == nil
	if first {
		p.FirstViewedAt = &now
	}
	p.UpdatedAt = now
	return r.hydrate(p), first, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, scope Scope, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[id]
	if !ok || !r.visible(p, scope) {
		return ErrNotFound
	}
	if p.Status != StatusDraft {
		return ErrStateConflict
	}
	delete(r.proposals, id)
	return nil
}

func (r *InMemoryRepository) List(ctx context.Context, scope Scope, filter ListFilter) (*ListResult, error) {
	filter.Normalize()
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*Proposal
	for _, p := range r.proposals {
		if !r.visible(p, scope) {
			continue
		}
		if filter.Status != "" && filter.Status != "all" && p.Status != NormalizeStatus(filter.Status) {
			continue
		}
		if filter.Search != "" && !r.matchesSearch(p, filter.Search) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	items := []*Proposal{}
	for i := filter.Offset; i < total && i < filter.Offset+filter.Limit; i++ {
		items = append(items, r.hydrate(matched[i]))
	}

	return &ListResult{
		Items:   items,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		HasMore: total > filter.Offset+filter.Limit,
	}, nil
}

func (r *InMemoryRepository) matchesSearch(p *Proposal, search string) bool {
	needle := strings.ToLower(search)
	if strings.Contains(strings.ToLower(p.Title), needle) {
		return true
	}
	if lead, ok := r.leads[p.LeadID]; ok {
		if strings.Contains(strings.ToLower(lead.Name), needle) ||
			strings.Contains(strings.ToLower(lead.Email), needle) {
			return true
		}
	}
	return false
}
