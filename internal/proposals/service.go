package proposals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nutonspeed/beauty-precision-platform/internal/activities"
	"github.com/nutonspeed/beauty-precision-platform/internal/events"
	"github.com/nutonspeed/beauty-precision-platform/internal/leads"
	"github.com/nutonspeed/beauty-precision-platform/internal/notify"
	"github.com/nutonspeed/beauty-precision-platform/internal/observability/metrics"
	"github.com/nutonspeed/beauty-precision-platform/pkg/logging"
)

var proposalsTracer = otel.Tracer("beautyprecision.internal.proposals")

const eventSource = "proposals-service"

// Service is the proposal workflow engine. It owns every status transition:
// the primary mutation commits first, then the audit activity and domain
// event follow as non-critical effects.
type Service struct {
	repo    Repository
	leads   leads.Repository
	audit   activities.Recorder
	bus     events.Publisher
	mailer  *notify.ProposalMailer
	metrics *metrics.WorkflowMetrics
	logger  *logging.Logger
}

// NewService constructs the workflow engine. repo, leads and audit are
// required; bus, mailer and metrics may be nil-ish collaborators.
func NewService(
	repo Repository,
	leadRepo leads.Repository,
	audit activities.Recorder,
	bus events.Publisher,
	mailer *notify.ProposalMailer,
	workflowMetrics *metrics.WorkflowMetrics,
	logger *logging.Logger,
) *Service {
	if repo == nil {
		panic("proposals: repository required")
	}
	if leadRepo == nil {
		panic("proposals: lead repository required")
	}
	if audit == nil {
		panic("proposals: activity recorder required")
	}
	if bus == nil {
		bus = events.NewLogPublisher(logger)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:    repo,
		leads:   leadRepo,
		audit:   audit,
		bus:     bus,
		mailer:  mailer,
		metrics: workflowMetrics,
		logger:  logger,
	}
}

// Create validates input, verifies lead ownership and writes a draft
// proposal.
func (s *Service) Create(ctx context.Context, scope Scope, input *CreateInput) (*Proposal, error) {
	ctx, span := proposalsTracer.Start(ctx, "proposals.create")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveOperationLatency("create", time.Since(start).Seconds()) }()

	if err := input.Validate(); err != nil {
		s.metrics.ObserveTransition("create", "validation")
		return nil, err
	}

	lead, err := s.leads.GetOwned(ctx, scope.ActorID, scope.ClinicID, input.LeadID)
	if err != nil {
		if errors.Is(err, leads.ErrLeadNotFound) {
			s.metrics.ObserveTransition("create", "not_found")
			return nil, NewNotFoundError("lead not found or unauthorized")
		}
		return nil, NewDependencyError("failed to load lead", err)
	}

	p := &Proposal{
		ID:                 uuid.NewString(),
		SalesUserID:        scope.ActorID,
		ClinicID:           lead.ClinicID,
		LeadID:             lead.ID,
		Title:              input.Title,
		Description:        input.Description,
		Status:             StatusDraft,
		Treatments:         input.Treatments,
		Subtotal:           input.Subtotal,
		DiscountPercent:    input.DiscountPercent,
		DiscountAmount:     input.DiscountAmount,
		TotalValue:         input.TotalValue,
		WinProbability:     input.WinProbability,
		ValidUntil:         input.ValidUntil,
		PaymentTerms:       input.PaymentTerms,
		TermsAndConditions: input.TermsAndConditions,
		Metadata:           input.Metadata,
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		s.metrics.ObserveTransition("create", "error")
		return nil, NewDependencyError("failed to create proposal", err)
	}
	span.SetAttributes(attribute.String("proposal.id", p.ID))

	hydrated, err := s.repo.GetHydrated(ctx, scope, p.ID)
	if err != nil {
		// The row is committed; fall back to the unhydrated copy.
		s.logger.Warn("hydration after create failed", "proposal_id", p.ID, "error", err)
		hydrated = p
	}

	s.publish(ctx, events.KindProposalCreated, hydrated, "", nil)
	s.appendActivity(ctx, activities.Activity{
		LeadID:      p.LeadID,
		SalesUserID: scope.ActorID,
		ProposalID:  p.ID,
		Type:        activities.TypeNote,
		Subject:     "Proposal Created",
		Description: fmt.Sprintf("Created proposal: %s", p.Title),
	})

	s.metrics.ObserveTransition("create", "ok")
	s.logger.Info("proposal created", "proposal_id", p.ID, "lead_id", p.LeadID, "sales_user_id", scope.ActorID)
	return hydrated, nil
}

// Get returns a hydrated proposal scoped to the actor.
func (s *Service) Get(ctx context.Context, scope Scope, id string) (*Proposal, error) {
	p, err := s.repo.GetHydrated(ctx, scope, id)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to load proposal")
	}
	return p, nil
}

// List returns a page of the actor's proposals.
func (s *Service) List(ctx context.Context, scope Scope, filter ListFilter) (*ListResult, error) {
	result, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return nil, NewDependencyError("failed to list proposals", err)
	}
	return result, nil
}

// Update applies an allow-listed patch. Status edits through update are
// unrestricted; only the dedicated verbs carry transition guards.
func (s *Service) Update(ctx context.Context, scope Scope, id string, patch *UpdateInput) (*Proposal, error) {
	ctx, span := proposalsTracer.Start(ctx, "proposals.update")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveOperationLatency("update", time.Since(start).Seconds()) }()

	if err := patch.Validate(); err != nil {
		s.metrics.ObserveTransition("update", "validation")
		return nil, err
	}

	before, err := s.repo.GetRef(ctx, scope, id)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to load proposal")
	}

	if patch.Empty() {
		p, err := s.repo.GetHydrated(ctx, scope, id)
		if err != nil {
			return nil, s.mapRepoError(err, "failed to load proposal")
		}
		return p, nil
	}

	updated, err := s.repo.UpdateFields(ctx, scope, id, patch)
	if err != nil {
		var typed *Error
		if errors.As(err, &typed) {
			return nil, typed
		}
		return nil, s.mapRepoError(err, "failed to update proposal")
	}

	if patch.Status != nil && updated.Status != before.Status {
		s.appendActivity(ctx, activities.Activity{
			LeadID:      before.LeadID,
			SalesUserID: scope.ActorID,
			ProposalID:  id,
			Type:        activities.TypeStatusChange,
			Subject:     "Proposal Status Updated",
			Description: fmt.Sprintf("Status changed from %s to %s", before.Status, updated.Status),
			Metadata:    map[string]any{"old_status": string(before.Status), "new_status": string(updated.Status)},
		})
	}

	s.publish(ctx, events.KindProposalUpdated, updated, before.Status, nil)
	s.metrics.ObserveTransition("update", "ok")
	return updated, nil
}

// Send transitions draft -> sent. The guard lives in the conditional write.
func (s *Service) Send(ctx context.Context, scope Scope, id string) (*Proposal, error) {
	ctx, span := proposalsTracer.Start(ctx, "proposals.send")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveOperationLatency("send", time.Since(start).Seconds()) }()

	before, err := s.repo.GetRef(ctx, scope, id)
	if err != nil {
		s.metrics.ObserveTransition("send", "not_found")
		return nil, s.mapRepoError(err, "failed to load proposal")
	}
	if before.Status != StatusDraft {
		s.metrics.ObserveTransition("send", "invalid_state")
		return nil, NewInvalidStateError("only draft proposals can be sent")
	}

	now := time.Now().UTC()
	updated, err := s.repo.TransitionStatus(ctx, scope, id, StatusDraft, TransitionPatch{
		Status: StatusSent,
		SentAt: &now,
	})
	if err != nil {
		return nil, s.mapTransitionError(err, "send", "only draft proposals can be sent")
	}
	span.SetAttributes(attribute.String("proposal.id", id))

	s.publish(ctx, events.KindProposalSent, updated, before.Status, nil)
	s.appendActivity(ctx, activities.Activity{
		LeadID:        before.LeadID,
		SalesUserID:   scope.ActorID,
		ProposalID:    id,
		Type:          activities.TypeEmail,
		Subject:       "Proposal Sent",
		Description:   fmt.Sprintf("Sent proposal: %s", before.Title),
		ContactMethod: "email",
	})
	s.notifyLead(ctx, updated)

	s.metrics.ObserveTransition("send", "ok")
	s.logger.Info("proposal sent", "proposal_id", id, "sales_user_id", scope.ActorID)
	return updated, nil
}

// Accept transitions sent -> accepted and best-effort flips the lead to won.
func (s *Service) Accept(ctx context.Context, scope Scope, id string) (*Proposal, error) {
	ctx, span := proposalsTracer.Start(ctx, "proposals.accept")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveOperationLatency("accept", time.Since(start).Seconds()) }()

	before, err := s.repo.GetRef(ctx, scope, id)
	if err != nil {
		s.metrics.ObserveTransition("accept", "not_found")
		return nil, s.mapRepoError(err, "failed to load proposal")
	}
	if before.Status != StatusSent {
		s.metrics.ObserveTransition("accept", "invalid_state")
		return nil, NewInvalidStateError("only sent proposals can be accepted")
	}

	now := time.Now().UTC()
	wonProbability := 100
	updated, err := s.repo.TransitionStatus(ctx, scope, id, StatusSent, TransitionPatch{
		Status:         StatusAccepted,
		AcceptedAt:     &now,
		WinProbability: &wonProbability,
	})
	if err != nil {
		return nil, s.mapTransitionError(err, "accept", "only sent proposals can be accepted")
	}
	span.SetAttributes(attribute.String("proposal.id", id))

	s.publish(ctx, events.KindProposalAccepted, updated, before.Status, nil)

	// The proposal acceptance is already durable; a lead update failure is
	// logged, not propagated.
	s.bestEffort(ctx, "lead_won_update", func(ctx context.Context) error {
		return s.leads.MarkWon(ctx, scope.ActorID, scope.ClinicID, before.LeadID)
	})

	s.appendActivity(ctx, activities.Activity{
		LeadID:      before.LeadID,
		SalesUserID: scope.ActorID,
		ProposalID:  id,
		Type:        activities.TypeStatusChange,
		Subject:     "Proposal Accepted",
		Description: fmt.Sprintf("Customer accepted proposal: %s", before.Title),
		Metadata:    map[string]any{"old_status": string(before.Status), "new_status": string(StatusAccepted)},
	})

	s.metrics.ObserveTransition("accept", "ok")
	s.logger.Info("proposal accepted", "proposal_id", id, "lead_id", before.LeadID)
	return updated, nil
}

// Reject transitions sent -> rejected, storing the reason.
func (s *Service) Reject(ctx context.Context, scope Scope, id string, reason string) (*Proposal, error) {
	ctx, span := proposalsTracer.Start(ctx, "proposals.reject")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveOperationLatency("reject", time.Since(start).Seconds()) }()

	before, err := s.repo.GetRef(ctx, scope, id)
	if err != nil {
		s.metrics.ObserveTransition("reject", "not_found")
		return nil, s.mapRepoError(err, "failed to load proposal")
	}
	if before.Status != StatusSent {
		s.metrics.ObserveTransition("reject", "invalid_state")
		return nil, NewInvalidStateError("only sent proposals can be rejected")
	}

	storedReason := reason
	if storedReason == "" {
		storedReason = "No reason provided"
	}
	now := time.Now().UTC()
	lostProbability := 0
	updated, err := s.repo.TransitionStatus(ctx, scope, id, StatusSent, TransitionPatch{
		Status:          StatusRejected,
		RejectedAt:      &now,
		WinProbability:  &lostProbability,
		RejectionReason: &storedReason,
	})
	if err != nil {
		return nil, s.mapTransitionError(err, "reject", "only sent proposals can be rejected")
	}
	span.SetAttributes(attribute.String("proposal.id", id))

	s.publish(ctx, events.KindProposalRejected, updated, before.Status, map[string]any{"rejection_reason": storedReason})

	displayReason := reason
	if displayReason == "" {
		displayReason = "Not specified"
	}
	s.appendActivity(ctx, activities.Activity{
		LeadID:      before.LeadID,
		SalesUserID: scope.ActorID,
		ProposalID:  id,
		Type:        activities.TypeStatusChange,
		Subject:     "Proposal Rejected",
		Description: fmt.Sprintf("Customer rejected proposal: %s. Reason: %s", before.Title, displayReason),
		Metadata:    map[string]any{"old_status": string(before.Status), "new_status": string(StatusRejected), "rejection_reason": reason},
	})

	s.metrics.ObserveTransition("reject", "ok")
	s.logger.Info("proposal rejected", "proposal_id", id, "reason", storedReason)
	return updated, nil
}

// RecordView bumps the view counter atomically. The status is unchanged;
// only view_count, viewed_at and (once) first_viewed_at move.
func (s *Service) RecordView(ctx context.Context, scope Scope, id string) (*Proposal, error) {
	ctx, span := proposalsTracer.Start(ctx, "proposals.record_view")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveOperationLatency("view", time.Since(start).Seconds()) }()

	updated, firstView, err := s.repo.IncrementView(ctx, scope, id)
	if err != nil {
		s.metrics.ObserveTransition("view", "not_found")
		return nil, s.mapRepoError(err, "failed to record proposal view")
	}

	if firstView {
		s.appendActivity(ctx, activities.Activity{
			LeadID:      updated.LeadID,
			SalesUserID: scope.ActorID,
			ProposalID:  id,
			Type:        activities.TypeNote,
			Subject:     "Proposal First Viewed",
			Description: fmt.Sprintf("Customer viewed proposal: %s for the first time", updated.Title),
		})
	}
	s.publish(ctx, events.KindProposalViewed, updated, "", nil)

	s.metrics.ObserveTransition("view", "ok")
	return updated, nil
}

// Delete removes a draft proposal. Every other status steers the caller to
// the update path.
func (s *Service) Delete(ctx context.Context, scope Scope, id string) error {
	ctx, span := proposalsTracer.Start(ctx, "proposals.delete")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveOperationLatency("delete", time.Since(start).Seconds()) }()

	before, err := s.repo.GetRef(ctx, scope, id)
	if err != nil {
		s.metrics.ObserveTransition("delete", "not_found")
		return s.mapRepoError(err, "failed to load proposal")
	}
	if before.Status != StatusDraft {
		s.metrics.ObserveTransition("delete", "invalid_state")
		return NewInvalidStateError("only draft proposals can be deleted; use a status update instead")
	}

	if err := s.repo.Delete(ctx, scope, id); err != nil {
		return s.mapTransitionError(err, "delete", "only draft proposals can be deleted; use a status update instead")
	}

	// The proposal row is gone; the note lands on the lead timeline.
	s.appendActivity(ctx, activities.Activity{
		LeadID:      before.LeadID,
		SalesUserID: scope.ActorID,
		Type:        activities.TypeNote,
		Subject:     "Proposal Deleted",
		Description: "Deleted draft proposal",
	})

	s.metrics.ObserveTransition("delete", "ok")
	s.logger.Info("draft proposal deleted", "proposal_id", id, "lead_id", before.LeadID)
	return nil
}

// publish emits a domain event after the primary mutation committed. Failures
// are swallowed so an event-bus outage cannot block the sales workflow.
func (s *Service) publish(ctx context.Context, kind string, p *Proposal, previous Status, extraMetadata map[string]any) {
	metadata := map[string]any{}
	for k, v := range p.Metadata {
		metadata[k] = v
	}
	for k, v := range extraMetadata {
		metadata[k] = v
	}

	event := events.New(kind, events.ProposalPayload{
		ProposalID:     p.ID,
		LeadID:         p.LeadID,
		SalesUserID:    p.SalesUserID,
		PreviousStatus: string(previous),
		NewStatus:      string(p.Status),
		TotalValue:     p.TotalValue,
		WinProbability: p.WinProbability,
		Metadata:       metadata,
	}, events.Context{
		UserID:   p.SalesUserID,
		ClinicID: p.ClinicID,
		Source:   eventSource,
	})

	s.bestEffort(ctx, "event_publish", func(ctx context.Context) error {
		return s.bus.Publish(ctx, event)
	})
}

func (s *Service) appendActivity(ctx context.Context, activity activities.Activity) {
	s.bestEffort(ctx, "activity_append", func(ctx context.Context) error {
		return s.audit.Append(ctx, activity)
	})
}

func (s *Service) notifyLead(ctx context.Context, p *Proposal) {
	if s.mailer == nil || p.Lead == nil {
		return
	}
	s.bestEffort(ctx, "proposal_mail", func(ctx context.Context) error {
		return s.mailer.SendProposal(ctx, notify.ProposalEmail{
			To:         p.Lead.Email,
			ToName:     p.Lead.Name,
			Title:      p.Title,
			TotalValue: p.TotalValue,
			ProposalID: p.ID,
			ValidUntil: p.ValidUntil,
		})
	})
}

// bestEffort runs a non-critical side effect. The error is logged and
// counted, never returned: the primary mutation has already committed.
func (s *Service) bestEffort(ctx context.Context, effect string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		s.metrics.ObserveSideEffectFailure(effect)
		s.logger.Error("best-effort side effect failed", "effect", effect, "error", err)
	}
}

func (s *Service) mapRepoError(err error, dependencyMsg string) error {
	if errors.Is(err, ErrNotFound) {
		return NewNotFoundError("proposal not found")
	}
	return NewDependencyError(dependencyMsg, err)
}

// mapTransitionError classifies a failed guarded write: a conflict means a
// competing transition won the race.
func (s *Service) mapTransitionError(err error, operation, invalidStateMsg string) error {
	if errors.Is(err, ErrStateConflict) {
		s.metrics.ObserveTransition(operation, "conflict")
		return NewInvalidStateError(invalidStateMsg)
	}
	if errors.Is(err, ErrNotFound) {
		s.metrics.ObserveTransition(operation, "not_found")
		return NewNotFoundError("proposal not found")
	}
	s.metrics.ObserveTransition(operation, "error")
	return NewDependencyError("proposal transition failed", err)
}
