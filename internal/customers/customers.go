// Package customers resolves clinic customer records for the booking flow.
package customers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Customer is a clinic-scoped customer record.
type Customer struct {
	ID        string    `json:"id"`
	ClinicID  string    `json:"clinic_id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository resolves or creates customers by contact details.
type Repository interface {
	// ResolveOrCreate finds a customer in the clinic by email or phone,
	// creating one from the supplied identity when no match exists. createdBy
	// records the sales actor who triggered the creation.
	ResolveOrCreate(ctx context.Context, clinicID, fullName, email, phone, createdBy string) (*Customer, error)
}

// PostgresRepository stores customers in the relational database.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("customers: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) ResolveOrCreate(ctx context.Context, clinicID, fullName, email, phone, createdBy string) (*Customer, error) {
	// Empty contact values never match: NULLIF keeps '' from joining rows
	// that also have no email or phone on file.
	query := `
		SELECT id, clinic_id, full_name, COALESCE(email, ''), COALESCE(phone, ''),
			   COALESCE(created_by, ''), created_at
		FROM customers
		WHERE clinic_id = $1
		  AND (email = NULLIF($2, '') OR phone = NULLIF($3, ''))
		LIMIT 1
	`
	var c Customer
	err := r.pool.QueryRow(ctx, query, clinicID, email, phone).
		Scan(&c.ID, &c.ClinicID, &c.FullName, &c.Email, &c.Phone, &c.CreatedBy, &c.CreatedAt)
	if err == nil {
		return &c, nil
	}
	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("customers: lookup failed: %w", err)
	}

	insert := `
		INSERT INTO customers (id, clinic_id, full_name, email, phone, created_by)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))
		RETURNING created_at
	`
	c = Customer{
		ID:        uuid.NewString(),
		ClinicID:  clinicID,
		FullName:  fullName,
		Email:     email,
		Phone:     phone,
		CreatedBy: createdBy,
	}
	if err := r.pool.QueryRow(ctx, insert, c.ID, c.ClinicID, c.FullName, c.Email, c.Phone, c.CreatedBy).Scan(&c.CreatedAt); err != nil {
		return nil, fmt.Errorf("customers: insert failed: %w", err)
	}
	return &c, nil
}

// InMemoryRepository is an in-process Repository for tests and local runs.
type InMemoryRepository struct {
	mu        sync.Mutex
	customers []*Customer
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Put seeds an existing customer.
func (r *InMemoryRepository) Put(c *Customer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customers = append(r.customers, c)
}

func (r *InMemoryRepository) ResolveOrCreate(ctx context.Context, clinicID, fullName, email, phone, createdBy string) (*Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.customers {
		if c.ClinicID != clinicID {
			continue
		}
		if (email != "" && strings.EqualFold(c.Email, email)) || (phone != "" && c.Phone == phone) {
			out := *c
			return &out, nil
		}
	}
	c := &Customer{
		ID:        uuid.NewString(),
		ClinicID:  clinicID,
		FullName:  fullName,
		Email:     email,
		Phone:     phone,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	r.customers = append(r.customers, c)
	out := *c
	return &out, nil
}

// Count reports how many customers exist, for test assertions.
func (r *InMemoryRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.customers)
}
