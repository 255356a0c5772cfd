package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/replygo/whatsapp-ai-platform/internal/appointments"
	"github.com/replygo/whatsapp-ai-platform/internal/tenants"
	"github.com/replygo/whatsapp-ai-platform/pkg/logging"
)

// TenantLookup resolves the tenant an appointment belongs to.
type TenantLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*tenants.Tenant, error)
}

// Service emails tenants when the assistant books an appointment for them.
// Everything here is best effort: a notification failure never surfaces to
// the message pipeline.
type Service struct {
	email   EmailSender
	tenants TenantLookup
	logger  *logging.Logger
}

// NewService creates a notification service. email may be nil, which turns
// the service into a no-op.
func NewService(email EmailSender, lookup TenantLookup, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, tenants: lookup, logger: logger}
}

// AppointmentCreated notifies the tenant about a new pending booking.
func (s *Service) AppointmentCreated(ctx context.Context, tenantID uuid.UUID, appt *appointments.Appointment) {
	if s.email == nil || s.tenants == nil || appt == nil {
		return
	}

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		s.logger.Error("notify: tenant lookup failed", "error", err, "tenant_id", tenantID)
		return
	}
	to := strings.TrimSpace(tenant.NotificationEmail)
	if to == "" {
		to = tenant.Email
	}

	var body strings.Builder
	fmt.Fprintf(&body, "New appointment request for %s\n\n", tenant.CompanyName)
	fmt.Fprintf(&body, "Customer: %s (%s)\n", appt.CustomerName, appt.CustomerPhone)
	fmt.Fprintf(&body, "Date: %s at %s\n", appt.Date, appt.Time)
	if appt.Service != "" {
		fmt.Fprintf(&body, "Service: %s\n", appt.Service)
	}
	body.WriteString("\nThe appointment is pending. Confirm or cancel it from your dashboard.\n")

	msg := EmailMessage{
		To:      to,
		ToName:  tenant.CompanyName,
		Subject: fmt.Sprintf("New appointment request: %s at %s", appt.Date, appt.Time),
		Body:    body.String(),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notify: appointment email failed",
			"error", err, "tenant_id", tenantID, "appointment_id", appt.ID)
	}
}
