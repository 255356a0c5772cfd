package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/replygo/whatsapp-ai-platform/internal/appointments"
	"github.com/replygo/whatsapp-ai-platform/internal/tenants"
	"github.com/replygo/whatsapp-ai-platform/pkg/logging"
)

type captureSender struct {
	sent []EmailMessage
	err  error
}

func (c *captureSender) Send(_ context.Context, msg EmailMessage) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

type stubLookup struct {
	tenant *tenants.Tenant
}

func (s *stubLookup) GetByID(_ context.Context, id uuid.UUID) (*tenants.Tenant, error) {
	if s.tenant != nil && s.tenant.ID == id {
		return s.tenant, nil
	}
	return nil, tenants.ErrTenantNotFound
}

func pendingAppointment(tenantID uuid.UUID) *appointments.Appointment {
	return &appointments.Appointment{
		ID:            uuid.New(),
		TenantID:      tenantID,
		CustomerPhone: "33600000000",
		CustomerName:  "Claire",
		Date:          "2026-09-15",
		Time:          "10:00",
		Service:       "coupe femme",
		Status:        appointments.StatusPending,
	}
}

func TestAppointmentCreatedEmailsNotificationAddress(t *testing.T) {
	tenant := &tenants.Tenant{
		ID:                uuid.New(),
		Email:             "owner@salon.fr",
		CompanyName:       "Salon Lumière",
		NotificationEmail: "desk@salon.fr",
	}
	sender := &captureSender{}
	svc := NewService(sender, &stubLookup{tenant: tenant}, logging.Default())

	svc.AppointmentCreated(context.Background(), tenant.ID, pendingAppointment(tenant.ID))
	if len(sender.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "desk@salon.fr" {
		t.Fatalf("to = %q, want notification address", msg.To)
	}
	if !strings.Contains(msg.Body, "Claire") || !strings.Contains(msg.Body, "2026-09-15") {
		t.Fatalf("body missing appointment details: %s", msg.Body)
	}
}

func TestAppointmentCreatedFallsBackToAccountEmail(t *testing.T) {
	tenant := &tenants.Tenant{
		ID:          uuid.New(),
		Email:       "owner@salon.fr",
		CompanyName: "Salon Lumière",
	}
	sender := &captureSender{}
	svc := NewService(sender, &stubLookup{tenant: tenant}, logging.Default())

	svc.AppointmentCreated(context.Background(), tenant.ID, pendingAppointment(tenant.ID))
	if len(sender.sent) != 1 || sender.sent[0].To != "owner@salon.fr" {
		t.Fatalf("expected fallback to account email, got %+v", sender.sent)
	}
}

func TestAppointmentCreatedSwallowsFailures(t *testing.T) {
	tenant := &tenants.Tenant{ID: uuid.New(), Email: "owner@salon.fr"}
	svc := NewService(&captureSender{err: errors.New("sendgrid down")}, &stubLookup{tenant: tenant}, logging.Default())

	// Must not panic or propagate anything.
	svc.AppointmentCreated(context.Background(), tenant.ID, pendingAppointment(tenant.ID))
}

func TestAppointmentCreatedNilSenderIsNoop(t *testing.T) {
	svc := NewService(nil, &stubLookup{}, logging.Default())
	svc.AppointmentCreated(context.Background(), uuid.New(), pendingAppointment(uuid.New()))
}
