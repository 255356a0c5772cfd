package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/replygo/whatsapp-ai-platform/pkg/logging"
)

type recordingNotifier struct {
	calls []*Appointment
}

func (n *recordingNotifier) AppointmentCreated(_ context.Context, _ uuid.UUID, appt *Appointment) {
	n.calls = append(n.calls, appt)
}

func TestCreateFromIntentSkipsIncompleteExtraction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	svc := NewService(NewRepository(mock), nil, logging.Default())

	// Missing time: no query must hit the database.
	appt, err := svc.CreateFromIntent(context.Background(), CreateParams{
		TenantID:      uuid.New(),
		CustomerPhone: "+33612345678",
		Date:          "2026-09-15",
	})
	if err != nil {
		t.Fatalf("CreateFromIntent returned error: %v", err)
	}
	if appt != nil {
		t.Fatalf("expected no appointment, got %+v", appt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected database activity: %v", err)
	}
}

func TestCreateFromIntentSuppressesDuplicatePending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	tenantID := uuid.New()
	mock.ExpectQuery("SELECT 1 FROM appointments").
		WithArgs(tenantID, "+33612345678", "2026-09-15", "14:30").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	notifier := &recordingNotifier{}
	svc := NewService(NewRepository(mock), notifier, logging.Default())

	appt, err := svc.CreateFromIntent(context.Background(), CreateParams{
		TenantID:      tenantID,
		CustomerPhone: "+33612345678",
		Date:          "2026-09-15",
		Time:          "14:30",
	})
	if err != nil {
		t.Fatalf("CreateFromIntent returned error: %v", err)
	}
	if appt != nil {
		t.Fatalf("expected duplicate to be suppressed, got %+v", appt)
	}
	if len(notifier.calls) != 0 {
		t.Fatalf("notifier must not fire for a suppressed duplicate")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateFromIntentCreatesPendingAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	tenantID := uuid.New()
	mock.ExpectQuery("SELECT 1 FROM appointments").
		WithArgs(tenantID, "+33612345678", "2026-09-15", "14:30").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), tenantID, "+33612345678", "+33612345678",
			"2026-09-15", "14:30", "coupe femme", StatusPending, "").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	notifier := &recordingNotifier{}
	svc := NewService(NewRepository(mock), notifier, logging.Default())

	appt, err := svc.CreateFromIntent(context.Background(), CreateParams{
		TenantID:      tenantID,
		CustomerPhone: "+33612345678",
		Date:          "2026-09-15",
		Time:          "14:30",
		Service:       "coupe femme",
	})
	if err != nil {
		t.Fatalf("CreateFromIntent returned error: %v", err)
	}
	if appt == nil {
		t.Fatal("expected an appointment")
	}
	if appt.Status != StatusPending {
		t.Fatalf("expected pending status, got %q", appt.Status)
	}
	if appt.CustomerName != "+33612345678" {
		t.Fatalf("expected phone fallback for customer name, got %q", appt.CustomerName)
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("expected one notifier call, got %d", len(notifier.calls))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateManualRejectsBadInput(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	svc := NewService(NewRepository(mock), nil, logging.Default())
	_, err = svc.CreateManual(context.Background(), CreateParams{
		TenantID:      uuid.New(),
		CustomerPhone: "+33612345678",
		Date:          "15/09/2026",
		Time:          "14:30",
	})
	if err == nil {
		t.Fatal("expected validation error for malformed date")
	}
}
