package proposals

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var testScope = Scope{ActorID: "rep-1", ClinicID: "clinic-1"}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, NewPostgresRepository(mock)
}

var hydratedCols = []string{
	"id", "sales_user_id", "clinic_id", "lead_id", "title",
	"description", "status", "treatments", "subtotal",
	"discount_percent", "discount_amount", "total_value", "win_probability",
	"valid_until", "payment_terms", "terms_and_conditions", "rejection_reason",
	"metadata", "view_count", "created_at", "updated_at", "sent_at",
	"first_viewed_at", "viewed_at", "accepted_at", "rejected_at",
	"l_id", "l_clinic_id", "l_name", "l_email", "l_phone", "l_status",
	"u_id", "u_full_name", "u_email",
}

func hydratedRow(status string, viewCount int) *pgxmock.Rows {
	now := time.Now().UTC()
	return pgxmock.NewRows(hydratedCols).AddRow(
		"prop-1", "rep-1", "clinic-1", "lead-1", "Laser Package",
		"", status, []byte(`[{"id":"svc-1","price":4500}]`), 13500.0,
		0.0, 0.0, 12000.0, 60,
		(*time.Time)(nil), "", "", "",
		[]byte(`{}`), viewCount, now, now, (*time.Time)(nil),
		(*time.Time)(nil), (*time.Time)(nil), (*time.Time)(nil), (*time.Time)(nil),
		"lead-1", "clinic-1", "Ploy S.", "ploy@example.com", "", "qualified",
		"rep-1", "Anan K.", "anan@example.com",
	)
}

func refRow(status string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "status", "lead_id", "clinic_id", "title"}).
		AddRow("prop-1", status, "lead-1", "clinic-1", "Laser Package")
}

func TestGetHydratedNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("SELECT").
		WithArgs("missing", "rep-1", "clinic-1").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetHydrated(context.Background(), testScope, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransitionStatusGuardedWrite(t *testing.T) {
	mock, repo := newMockRepo(t)

	// The expected status rides in the WHERE clause as $5.
	mock.ExpectQuery("UPDATE sales_proposals").
		WithArgs("prop-1", "rep-1", "clinic-1", "sent", "draft", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("prop-1"))
	mock.ExpectQuery("SELECT").
		WithArgs("prop-1", "rep-1", "clinic-1").
		WillReturnRows(hydratedRow("sent", 0))

	now := time.Now().UTC()
	p, err := repo.TransitionStatus(context.Background(), testScope, "prop-1", StatusDraft, TransitionPatch{
		Status: StatusSent,
		SentAt: &now,
	})
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if p.Status != StatusSent {
		t.Fatalf("expected sent, got %s", p.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransitionStatusLostRace(t *testing.T) {
	mock, repo := newMockRepo(t)

	// Zero rows from the guarded write, but the row still exists: a competing
	// transition got there first.
	mock.ExpectQuery("UPDATE sales_proposals").
		WithArgs("prop-1", "rep-1", "clinic-1", "accepted", "sent", pgxmock.AnyArg(), 100).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT").
		WithArgs("prop-1", "rep-1", "clinic-1").
		WillReturnRows(refRow("rejected"))

	now := time.Now().UTC()
	win := 100
	_, err := repo.TransitionStatus(context.Background(), testScope, "prop-1", StatusSent, TransitionPatch{
		Status:         StatusAccepted,
		AcceptedAt:     &now,
		WinProbability: &win,
	})
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransitionStatusRowGone(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("UPDATE sales_proposals").
		WithArgs("prop-1", "rep-1", "clinic-1", "sent", "draft", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT").
		WithArgs("prop-1", "rep-1", "clinic-1").
		WillReturnError(pgx.ErrNoRows)

	now := time.Now().UTC()
	_, err := repo.TransitionStatus(context.Background(), testScope, "prop-1", StatusDraft, TransitionPatch{
		Status: StatusSent,
		SentAt: &now,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIncrementViewSingleStatement(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("UPDATE sales_proposals").
		WithArgs("prop-1", "rep-1", "clinic-1").
		WillReturnRows(pgxmock.NewRows([]string{"view_count"}).AddRow(1))
	mock.ExpectQuery("SELECT").
		WithArgs("prop-1", "rep-1", "clinic-1").
		WillReturnRows(hydratedRow("sent", 1))

	p, firstView, err := repo.IncrementView(context.Background(), testScope, "prop-1")
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if !firstView {
		t.Fatal("expected first view on count 1")
	}
	if p.ViewCount != 1 {
		t.Fatalf("expected view count 1, got %d", p.ViewCount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIncrementViewSubsequent(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("UPDATE sales_proposals").
		WithArgs("prop-1", "rep-1", "clinic-1").
		WillReturnRows(pgxmock.NewRows([]string{"view_count"}).AddRow(4))
	mock.ExpectQuery("SELECT").
		WithArgs("prop-1", "rep-1", "clinic-1").
		WillReturnRows(hydratedRow("sent", 4))

	_, firstView, err := repo.IncrementView(context.Background(), testScope, "prop-1")
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if firstView {
		t.Fatal("view 4 must not count as first view")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteGuardsDraftStatus(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("DELETE FROM sales_proposals").
		WithArgs("prop-1", "rep-1", "clinic-1", "draft").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT").
		WithArgs("prop-1", "rep-1", "clinic-1").
		WillReturnRows(refRow("sent"))

	err := repo.Delete(context.Background(), testScope, "prop-1")
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict for non-draft delete, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateFieldsBuildsAllowListedSet(t *testing.T) {
	mock, repo := newMockRepo(t)

	title := "Laser Package v2"
	total := 11000.0
	mock.ExpectQuery("UPDATE sales_proposals").
		WithArgs("prop-1", "rep-1", "clinic-1", title, total).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("prop-1"))
	mock.ExpectQuery("SELECT").
		WithArgs("prop-1", "rep-1", "clinic-1").
		WillReturnRows(hydratedRow("draft", 0))

	p, err := repo.UpdateFields(context.Background(), testScope, "prop-1", &UpdateInput{
		Title:      &title,
		TotalValue: &total,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if p.ID != "prop-1" {
		t.Fatalf("unexpected proposal %q", p.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListAppliesStatusFilter(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("rep-1", "clinic-1", "sent").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT").
		WithArgs("rep-1", "clinic-1", "sent", 20, 0).
		WillReturnRows(hydratedRow("sent", 2))

	result, err := repo.List(context.Background(), testScope, ListFilter{Status: "sent"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if result.Total != 1 || len(result.Items) != 1 {
		t.Fatalf("unexpected page: total=%d items=%d", result.Total, len(result.Items))
	}
	if result.HasMore {
		t.Fatal("single page should not report more")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
