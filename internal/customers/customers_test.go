package customers

import (
	"context"
	"strings"
	"testing"

	"github.com/nutonspeed/beauty-precision-platform/migrations"
)

func TestResolveOrCreateRecordsIdentity(t *testing.T) {
	repo := NewInMemoryRepository()

	c, err := repo.ResolveOrCreate(context.Background(), "clinic-1", "Ploy S.", "ploy@example.com", "", "rep-1")
	if err != nil {
		t.Fatalf("ResolveOrCreate: %v", err)
	}
	if c.FullName != "Ploy S." || c.CreatedBy != "rep-1" {
		t.Fatalf("unexpected customer: %+v", c)
	}
	if repo.Count() != 1 {
		t.Fatalf("expected 1 customer, got %d", repo.Count())
	}
}

func TestResolveOrCreateMatchesWithinClinicOnly(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.Put(&Customer{ID: "cust-1", ClinicID: "clinic-1", FullName: "Ploy S.", Email: "ploy@example.com"})

	same, err := repo.ResolveOrCreate(context.Background(), "clinic-1", "Ploy S.", "PLOY@example.com", "", "rep-1")
	if err != nil {
		t.Fatalf("ResolveOrCreate: %v", err)
	}
	if same.ID != "cust-1" {
		t.Fatalf("expected email match to reuse cust-1, got %q", same.ID)
	}

	other, err := repo.ResolveOrCreate(context.Background(), "clinic-2", "Ploy S.", "ploy@example.com", "", "rep-1")
	if err != nil {
		t.Fatalf("ResolveOrCreate: %v", err)
	}
	if other.ID == "cust-1" {
		t.Fatal("customer from another clinic must not be reused")
	}
}

// Columns written and read by the Postgres repository must exist in the
// migrated customers table.
func TestCustomerColumnsMatchSchema(t *testing.T) {
	ddl, err := migrations.FS.ReadFile("000002_booking_conversion.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	start := strings.Index(string(ddl), "CREATE TABLE IF NOT EXISTS customers (")
	if start < 0 {
		t.Fatal("customers DDL not found in migration")
	}
	block := string(ddl)[start:]
	if end := strings.Index(block, ");"); end >= 0 {
		block = block[:end]
	}
	for _, col := range []string{"id", "clinic_id", "full_name", "email", "phone", "created_by", "created_at"} {
		if !strings.Contains(block, "\n    "+col+" ") {
			t.Errorf("customers table does not define column %q", col)
		}
	}
}
