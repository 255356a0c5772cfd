package appointments

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/replygo/whatsapp-ai-platform/pkg/logging"
)

var apptTracer = otel.Tracer("replygo.internal.appointments")

// Notifier is told about bot-created appointments. Implementations must be
// best effort; the pipeline never waits on delivery guarantees.
type Notifier interface {
	AppointmentCreated(ctx context.Context, tenantID uuid.UUID, appt *Appointment)
}

// Service materializes pending appointments from the assistant's output.
type Service struct {
	repo     *Repository
	notifier Notifier
	logger   *logging.Logger
}

// NewService constructs an appointments service. notifier may be nil.
func NewService(repo *Repository, notifier Notifier, logger *logging.Logger) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, notifier: notifier, logger: logger}
}

// CreateFromIntent persists a pending appointment from extracted fields.
// Invalid input is logged and skipped, never an error: a malformed extraction
// must not fail the message turn. Identical pending appointments for the same
// contact are suppressed. Returns nil when nothing was created.
func (s *Service) CreateFromIntent(ctx context.Context, p CreateParams) (*Appointment, error) {
	ctx, span := apptTracer.Start(ctx, "appointments.create_from_intent")
	defer span.End()
	span.SetAttributes(
		attribute.String("replygo.tenant_id", p.TenantID.String()),
		attribute.String("replygo.customer_phone", p.CustomerPhone),
	)

	if err := p.Validate(); err != nil {
		s.logger.Warn("skipping appointment with incomplete extraction",
			"error", err, "tenant_id", p.TenantID, "date", p.Date, "time", p.Time)
		return nil, nil
	}
	if p.CustomerName == "" {
		p.CustomerName = p.CustomerPhone
	}

	duplicate, err := s.repo.ExistsPending(ctx, p.TenantID, p.CustomerPhone, p.Date, p.Time)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if duplicate {
		s.logger.Info("suppressing duplicate pending appointment",
			"tenant_id", p.TenantID, "customer_phone", p.CustomerPhone, "date", p.Date, "time", p.Time)
		return nil, nil
	}

	appt, err := s.repo.Insert(ctx, p)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info("appointment created",
		"appointment_id", appt.ID, "tenant_id", appt.TenantID,
		"date", appt.Date, "time", appt.Time, "service", appt.Service)

	if s.notifier != nil {
		s.notifier.AppointmentCreated(ctx, appt.TenantID, appt)
	}
	return appt, nil
}

// CreateManual persists a dashboard-created appointment with strict
// validation: unlike the bot path, bad input is an error the UI surfaces.
func (s *Service) CreateManual(ctx context.Context, p CreateParams) (*Appointment, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.CustomerName == "" {
		p.CustomerName = p.CustomerPhone
	}
	return s.repo.Insert(ctx, p)
}
