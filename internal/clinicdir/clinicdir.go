// Package clinicdir exposes read-only lookups against a clinic's service
// catalog and staff roster.
package clinicdir

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrServiceNotFound is returned when the service id does not exist in the
// clinic's catalog.
var ErrServiceNotFound = errors.New("clinicdir: service not found")

// Service is a bookable treatment in the clinic catalog. Price and duration
// are optional; the booking flow supplies fallbacks.
type Service struct {
	ID              string   `json:"id"`
	ClinicID        string   `json:"clinic_id"`
	TreatmentType   string   `json:"treatment_type"`
	Price           *float64 `json:"price,omitempty"`
	DurationMinutes *int     `json:"duration_minutes,omitempty"`
}

// Directory answers catalog and roster questions for one clinic.
type Directory interface {
	GetService(ctx context.Context, clinicID, serviceID string) (*Service, error)
	// IsActiveStaff reports whether the staff member belongs to the clinic
	// and is currently active.
	IsActiveStaff(ctx context.Context, clinicID, staffID string) (bool, error)
}

// PostgresDirectory reads the catalog and roster tables.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	if pool == nil {
		panic("clinicdir: pgx pool required")
	}
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) GetService(ctx context.Context, clinicID, serviceID string) (*Service, error) {
	query := `
		SELECT id, clinic_id, treatment_type, price, duration_minutes
		FROM services
		WHERE id = $1 AND clinic_id = $2
	`
	var s Service
	err := d.pool.QueryRow(ctx, query, serviceID, clinicID).
		Scan(&s.ID, &s.ClinicID, &s.TreatmentType, &s.Price, &s.DurationMinutes)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("clinicdir: select service failed: %w", err)
	}
	return &s, nil
}

func (d *PostgresDirectory) IsActiveStaff(ctx context.Context, clinicID, staffID string) (bool, error) {
	query := `
		SELECT 1
		FROM clinic_staff
		WHERE id = $1 AND clinic_id = $2 AND is_active
	`
	var one int
	err := d.pool.QueryRow(ctx, query, staffID, clinicID).Scan(&one)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("clinicdir: select staff failed: %w", err)
	}
	return true, nil
}

// InMemoryDirectory is an in-process Directory for tests and local runs.
type InMemoryDirectory struct {
	mu       sync.RWMutex
	services map[string]*Service
	staff    map[string]bool // key: clinicID + "/" + staffID, value: active
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{
		services: make(map[string]*Service),
		staff:    make(map[string]bool),
	}
}

// PutService seeds a catalog entry.
func (d *InMemoryDirectory) PutService(s *Service) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.services[s.ClinicID+"/"+s.ID] = s
}

// PutStaff seeds a roster entry.
func (d *InMemoryDirectory) PutStaff(clinicID, staffID string, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staff[clinicID+"/"+staffID] = active
}

func (d *InMemoryDirectory) GetService(ctx context.Context, clinicID, serviceID string) (*Service, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.services[clinicID+"/"+serviceID]
	if !ok {
		return nil, ErrServiceNotFound
	}
	out := *s
	return &out, nil
}

func (d *InMemoryDirectory) IsActiveStaff(ctx context.Context, clinicID, staffID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.staff[clinicID+"/"+staffID], nil
}
