package bookings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists bookings and their companion appointments.
type Repository interface {
	InsertBooking(ctx context.Context, b *Booking) error
	InsertAppointment(ctx context.Context, a *Appointment) error
}

// PostgresRepository stores bookings in the relational database.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) InsertBooking(ctx context.Context, b *Booking) error {
	query := `
		INSERT INTO bookings (
			id, clinic_id, customer_id, lead_id, proposal_id, service_id,
			staff_id, booking_date, booking_time, duration_minutes, price,
			status, internal_notes
		) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $13)
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query,
		b.ID, b.ClinicID, b.CustomerID, b.LeadID, b.ProposalID, b.ServiceID,
		b.StaffID, b.BookingDate, b.BookingTime, b.DurationMinutes, b.Price,
		b.Status, b.InternalNotes,
	).Scan(&b.CreatedAt)
	if err != nil {
		return fmt.Errorf("bookings: insert booking failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) InsertAppointment(ctx context.Context, a *Appointment) error {
	query := `
		INSERT INTO appointments (
			id, appointment_number, clinic_id, customer_id, booking_id,
			staff_id, service_description, date, start_time, end_time, status
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11)
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query,
		a.ID, a.AppointmentNumber, a.ClinicID, a.CustomerID, a.BookingID,
		a.StaffID, a.ServiceDescription, a.Date, a.StartTime, a.EndTime, a.Status,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("bookings: insert appointment failed: %w", err)
	}
	return nil
}

// InMemoryRepository is an in-process Repository for tests and local runs.
type InMemoryRepository struct {
	mu           sync.Mutex
	bookings     []*Booking
	appointments []*Appointment

	// BookingErr and AppointmentErr, when set, fail the next insert. Used to
	// exercise failure paths in tests.
	BookingErr     error
	AppointmentErr error
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

func (r *InMemoryRepository) InsertBooking(ctx context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.BookingErr != nil {
		return r.BookingErr
	}
	b.CreatedAt = time.Now().UTC()
	stored := *b
	r.bookings = append(r.bookings, &stored)
	return nil
}

func (r *InMemoryRepository) InsertAppointment(ctx context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.AppointmentErr != nil {
		return r.AppointmentErr
	}
	a.CreatedAt = time.Now().UTC()
	stored := *a
	r.appointments = append(r.appointments, &stored)
	return nil
}

// Bookings returns everything inserted so far.
func (r *InMemoryRepository) Bookings() []*Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Booking(nil), r.bookings...)
}

// Appointments returns everything inserted so far.
func (r *InMemoryRepository) Appointments() []*Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Appointment(nil), r.appointments...)
}
