package bookings

import "time"

// Booking statuses. A converted booking always starts pending; scheduling
// workflows elsewhere move it forward.
const (
	StatusPending = "pending"
)

// Appointment statuses.
const (
	AppointmentScheduled = "scheduled"
)

// Booking is the schedulable record created from an accepted proposal.
type Booking struct {
	ID              string    `json:"id"`
	ClinicID        string    `json:"clinic_id"`
	CustomerID      string    `json:"customer_id"`
	LeadID          string    `json:"lead_id,omitempty"`
	ProposalID      string    `json:"proposal_id"`
	ServiceID       string    `json:"service_id"`
	StaffID         string    `json:"staff_id,omitempty"`
	BookingDate     string    `json:"booking_date"`
	BookingTime     string    `json:"booking_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Price           float64   `json:"price"`
	Status          string    `json:"status"`
	InternalNotes   string    `json:"internal_notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Appointment is the calendar companion row for a booking. Creation is
// best-effort; a booking can exist without one.
type Appointment struct {
	ID                 string    `json:"id"`
	AppointmentNumber  string    `json:"appointment_number"`
	ClinicID           string    `json:"clinic_id"`
	CustomerID         string    `json:"customer_id"`
	BookingID          string    `json:"booking_id"`
	StaffID            string    `json:"staff_id,omitempty"`
	ServiceDescription string    `json:"service_description,omitempty"`
	Date               string    `json:"date"`
	StartTime          string    `json:"start_time"`
	EndTime            string    `json:"end_time"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
}

// Input carries the caller-supplied booking details.
type Input struct {
	ServiceID   string `json:"service_id"`
	StaffID     string `json:"staff_id,omitempty"`
	BookingDate string `json:"booking_date"`
	BookingTime string `json:"booking_time"`
}
