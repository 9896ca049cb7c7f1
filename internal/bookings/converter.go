package bookings

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nutonspeed/beauty-precision-platform/internal/clinicdir"
	"github.com/nutonspeed/beauty-precision-platform/internal/customers"
	"github.com/nutonspeed/beauty-precision-platform/internal/events"
	"github.com/nutonspeed/beauty-precision-platform/internal/observability/metrics"
	"github.com/nutonspeed/beauty-precision-platform/internal/proposals"
	"github.com/nutonspeed/beauty-precision-platform/pkg/logging"
)

var bookingsTracer = otel.Tracer("beautyprecision.internal.bookings")

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)
)

const defaultDurationMinutes = 60

// Converter turns an accepted proposal into a pending booking plus a
// best-effort calendar appointment. It never mutates the proposal.
type Converter struct {
	proposals proposals.Repository
	customers customers.Repository
	directory clinicdir.Directory
	bookings  Repository
	bus       events.Publisher
	metrics   *metrics.WorkflowMetrics
	logger    *logging.Logger
}

func NewConverter(
	proposalRepo proposals.Repository,
	customerRepo customers.Repository,
	directory clinicdir.Directory,
	bookingRepo Repository,
	bus events.Publisher,
	workflowMetrics *metrics.WorkflowMetrics,
	logger *logging.Logger,
) *Converter {
	if proposalRepo == nil || customerRepo == nil || directory == nil || bookingRepo == nil {
		panic("bookings: converter requires proposal, customer, directory and booking stores")
	}
	if bus == nil {
		bus = events.NewLogPublisher(logger)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Converter{
		proposals: proposalRepo,
		customers: customerRepo,
		directory: directory,
		bookings:  bookingRepo,
		bus:       bus,
		metrics:   workflowMetrics,
		logger:    logger,
	}
}

// Book converts an accepted proposal into a booking. Preconditions fail in a
// fixed order: input shape, then proposal existence and status, then clinic
// resolution.
func (c *Converter) Book(ctx context.Context, scope proposals.Scope, proposalID string, input Input) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.convert")
	defer span.End()
	start := time.Now()
	defer func() { c.metrics.ObserveOperationLatency("book", time.Since(start).Seconds()) }()

	if input.ServiceID == "" {
		return nil, proposals.NewValidationError("service_id is required")
	}
	if !datePattern.MatchString(input.BookingDate) {
		return nil, proposals.NewValidationError("booking_date must be formatted YYYY-MM-DD")
	}
	if !timePattern.MatchString(input.BookingTime) {
		return nil, proposals.NewValidationError("booking_time must be formatted HH:MM:SS")
	}

	p, err := c.proposals.GetHydrated(ctx, scope, proposalID)
	if err != nil {
		if errors.Is(err, proposals.ErrNotFound) {
			return nil, proposals.NewNotFoundError("proposal not found")
		}
		return nil, proposals.NewDependencyError("failed to load proposal", err)
	}
	if p.Status != proposals.StatusAccepted {
		return nil, proposals.NewInvalidStateError("only accepted proposals can be booked")
	}

	clinicID := p.ClinicID
	if clinicID == "" && p.Lead != nil {
		clinicID = p.Lead.ClinicID
	}
	if clinicID == "" {
		return nil, proposals.NewValidationError("proposal has no clinic association")
	}
	span.SetAttributes(
		attribute.String("proposal.id", p.ID),
		attribute.String("clinic.id", clinicID),
	)

	var leadName, leadEmail, leadPhone string
	if p.Lead != nil {
		leadName, leadEmail, leadPhone = p.Lead.Name, p.Lead.Email, p.Lead.Phone
	}
	customer, err := c.customers.ResolveOrCreate(ctx, clinicID, leadName, leadEmail, leadPhone, scope.ActorID)
	if err != nil {
		return nil, proposals.NewDependencyError("failed to resolve customer", err)
	}

	if input.StaffID != "" {
		active, err := c.directory.IsActiveStaff(ctx, clinicID, input.StaffID)
		if err != nil {
			return nil, proposals.NewDependencyError("failed to verify staff", err)
		}
		if !active {
			return nil, proposals.NewValidationError("staff member is not active in this clinic")
		}
	}

	service, err := c.directory.GetService(ctx, clinicID, input.ServiceID)
	if err != nil {
		if errors.Is(err, clinicdir.ErrServiceNotFound) {
			return nil, proposals.NewNotFoundError("service not found")
		}
		return nil, proposals.NewDependencyError("failed to load service", err)
	}

	// A NULL or non-positive stored duration both mean "unset".
	duration := defaultDurationMinutes
	if service.DurationMinutes != nil && *service.DurationMinutes > 0 {
		duration = *service.DurationMinutes
	}
	price := p.TotalValue
	if service.Price != nil {
		price = *service.Price
	}

	booking := &Booking{
		ID:              uuid.NewString(),
		ClinicID:        clinicID,
		CustomerID:      customer.ID,
		LeadID:          p.LeadID,
		ProposalID:      p.ID,
		ServiceID:       service.ID,
		StaffID:         input.StaffID,
		BookingDate:     input.BookingDate,
		BookingTime:     input.BookingTime,
		DurationMinutes: duration,
		Price:           price,
		Status:          StatusPending,
		InternalNotes:   fmt.Sprintf("Created from accepted proposal %s by %s", p.ID, scope.ActorID),
	}
	if err := c.bookings.InsertBooking(ctx, booking); err != nil {
		return nil, proposals.NewDependencyError("failed to create booking", err)
	}

	c.publishBooked(ctx, p, booking)
	c.createAppointment(ctx, booking, service, customer.ID)

	c.metrics.ObserveBookingConverted()
	c.logger.Info("proposal converted to booking",
		"proposal_id", p.ID, "booking_id", booking.ID, "clinic_id", clinicID)
	return booking, nil
}

func (c *Converter) publishBooked(ctx context.Context, p *proposals.Proposal, booking *Booking) {
	event := events.New(events.KindProposalBooked, events.ProposalPayload{
		ProposalID:     p.ID,
		LeadID:         p.LeadID,
		SalesUserID:    p.SalesUserID,
		NewStatus:      string(p.Status),
		TotalValue:     p.TotalValue,
		WinProbability: p.WinProbability,
		Metadata:       map[string]any{"booking_id": booking.ID},
	}, events.Context{
		UserID:   p.SalesUserID,
		ClinicID: booking.ClinicID,
		Source:   "proposals-service",
	})
	if err := c.bus.Publish(ctx, event); err != nil {
		c.metrics.ObserveSideEffectFailure("event_publish")
		c.logger.Error("booked event publish failed", "booking_id", booking.ID, "error", err)
	}
}

// createAppointment writes the calendar row. Booking success does not depend
// on it; every failure is logged and swallowed.
func (c *Converter) createAppointment(ctx context.Context, booking *Booking, service *clinicdir.Service, customerID string) {
	start, err := time.Parse("15:04:05", booking.BookingTime)
	if err != nil {
		c.metrics.ObserveSideEffectFailure("appointment_create")
		c.logger.Error("appointment time parse failed", "booking_id", booking.ID, "error", err)
		return
	}
	end := start.Add(time.Duration(booking.DurationMinutes) * time.Minute)

	appointment := &Appointment{
		ID:                 uuid.NewString(),
		AppointmentNumber:  fmt.Sprintf("APT-%d", time.Now().UnixMilli()),
		ClinicID:           booking.ClinicID,
		CustomerID:         customerID,
		BookingID:          booking.ID,
		StaffID:            booking.StaffID,
		ServiceDescription: service.TreatmentType,
		Date:               booking.BookingDate,
		StartTime:          start.Format("15:04:05"),
		EndTime:            end.Format("15:04:05"),
		Status:             AppointmentScheduled,
	}
	if err := c.bookings.InsertAppointment(ctx, appointment); err != nil {
		c.metrics.ObserveSideEffectFailure("appointment_create")
		c.logger.Error("appointment create failed", "booking_id", booking.ID, "error", err)
	}
}
