// Package messaging owns the message flows: the gateway webhook that drives
// the inbound pipeline, the dashboard's manual send, and the bot endpoint.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/replygo/whatsapp-ai-platform/internal/appointments"
	"github.com/replygo/whatsapp-ai-platform/internal/assistant"
	"github.com/replygo/whatsapp-ai-platform/internal/conversations"
	"github.com/replygo/whatsapp-ai-platform/internal/gateway"
	"github.com/replygo/whatsapp-ai-platform/internal/observability/metrics"
	"github.com/replygo/whatsapp-ai-platform/internal/tenants"
	"github.com/replygo/whatsapp-ai-platform/pkg/logging"
)

var msgTracer = otel.Tracer("replygo.internal.messaging")

// TenantDirectory resolves tenants for inbound traffic.
type TenantDirectory interface {
	GetByEmail(ctx context.Context, email string) (*tenants.Tenant, error)
	GetBySession(ctx context.Context, session string) (*tenants.Tenant, error)
}

// ConversationStore is the slice of the conversations store the flows need.
type ConversationStore interface {
	FindOrCreate(ctx context.Context, tenantID uuid.UUID, phone, name string) (*conversations.Conversation, bool, error)
	Get(ctx context.Context, tenantID, conversationID uuid.UUID) (*conversations.Conversation, error)
	InsertMessage(ctx context.Context, rec conversations.MessageRecord) (uuid.UUID, error)
	HasExternalMessage(ctx context.Context, tenantID uuid.UUID, externalID string) (bool, error)
	History(ctx context.Context, conversationID uuid.UUID, limit int) ([]conversations.Message, error)
	MarkRead(ctx context.Context, conversationID uuid.UUID) error
	TouchLastMessage(ctx context.Context, conversationID uuid.UUID) error
}

// Responder produces the assistant's turn for an inbound message.
type Responder interface {
	Respond(ctx context.Context, tenant *tenants.Tenant, history []conversations.Message, inbound string) assistant.Result
}

// AppointmentCreator persists bookings the assistant judged ready.
type AppointmentCreator interface {
	CreateFromIntent(ctx context.Context, p appointments.CreateParams) (*appointments.Appointment, error)
}

// Sender delivers text to a customer through the gateway.
type Sender interface {
	SendText(ctx context.Context, session, phone, text string) error
}

// WebhookHandler processes inbound gateway events.
type WebhookHandler struct {
	tenants       TenantDirectory
	store         ConversationStore
	responder     Responder
	appointments  AppointmentCreator
	sender        Sender
	guard         *Guard
	metrics       *metrics.MessagingMetrics
	historyWindow int
	logger        *logging.Logger
}

// WebhookConfig wires a WebhookHandler. Metrics may be nil.
type WebhookConfig struct {
	Tenants       TenantDirectory
	Store         ConversationStore
	Responder     Responder
	Appointments  AppointmentCreator
	Sender        Sender
	Guard         *Guard
	Metrics       *metrics.MessagingMetrics
	HistoryWindow int
	Logger        *logging.Logger
}

// NewWebhookHandler creates the inbound webhook handler.
func NewWebhookHandler(cfg WebhookConfig) *WebhookHandler {
	if cfg.Tenants == nil {
		panic("messaging: tenant directory required")
	}
	if cfg.Store == nil {
		panic("messaging: conversation store required")
	}
	if cfg.Responder == nil {
		panic("messaging: responder required")
	}
	if cfg.Appointments == nil {
		panic("messaging: appointment creator required")
	}
	if cfg.Sender == nil {
		panic("messaging: sender required")
	}
	if cfg.Guard == nil {
		cfg.Guard = NewGuard(nil, 0, 0, cfg.Logger)
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 20
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &WebhookHandler{
		tenants:       cfg.Tenants,
		store:         cfg.Store,
		responder:     cfg.Responder,
		appointments:  cfg.Appointments,
		sender:        cfg.Sender,
		guard:         cfg.Guard,
		metrics:       cfg.Metrics,
		historyWindow: cfg.HistoryWindow,
		logger:        cfg.Logger,
	}
}

type webhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// HandleWebhook is the gateway's POST target. Business-level dead ends
// (unknown session, duplicates, own messages) answer 200 so the gateway
// never retries them; only a malformed body or an early store failure is an
// error to the caller.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := msgTracer.Start(r.Context(), "messaging.webhook")
	defer span.End()

	var evt gateway.Event
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		h.metrics.ObserveInbound("invalid", "bad_body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	span.SetAttributes(
		attribute.String("replygo.event", evt.Event),
		attribute.String("replygo.session", evt.Session),
	)
	defer func() {
		h.metrics.ObserveWebhookLatency(evt.Event, time.Since(start).Seconds())
	}()

	if evt.Event != gateway.EventMessage || evt.Payload.FromMe {
		h.metrics.ObserveInbound(evt.Event, "ignored")
		writeJSON(w, http.StatusOK, webhookResponse{Success: true, Message: "ignored"})
		return
	}
	phone := evt.Payload.SenderPhone()
	if phone == "" {
		h.metrics.ObserveInbound(evt.Event, "ignored")
		writeJSON(w, http.StatusOK, webhookResponse{Success: true, Message: "no sender"})
		return
	}

	tenant, err := h.tenants.GetBySession(ctx, evt.Session)
	if err != nil {
		if errors.Is(err, tenants.ErrTenantNotFound) {
			h.logger.Warn("webhook for unknown session", "session", evt.Session)
			h.metrics.ObserveInbound(evt.Event, "no_tenant")
			writeJSON(w, http.StatusOK, webhookResponse{Success: true, Message: "unknown session"})
			return
		}
		span.RecordError(err)
		h.logger.Error("tenant lookup failed", "error", err, "session", evt.Session)
		http.Error(w, "tenant lookup failed", http.StatusInternalServerError)
		return
	}

	if !h.guard.FirstDelivery(ctx, tenant.ID, evt.Payload.ID) {
		h.metrics.ObserveInbound(evt.Event, "duplicate")
		writeJSON(w, http.StatusOK, webhookResponse{Success: true, Message: "duplicate"})
		return
	}
	// Redis fails open, so confirm against the store before touching the
	// conversation. A duplicate caught only at insert time would already
	// have bumped the unread counter.
	if dup, err := h.store.HasExternalMessage(ctx, tenant.ID, evt.Payload.ID); err != nil {
		h.logger.Warn("external id lookup failed, relying on unique index",
			"error", err, "tenant_id", tenant.ID)
	} else if dup {
		h.metrics.ObserveInbound(evt.Event, "duplicate")
		writeJSON(w, http.StatusOK, webhookResponse{Success: true, Message: "duplicate"})
		return
	}

	conv, created, err := h.store.FindOrCreate(ctx, tenant.ID, phone, evt.Payload.FromName)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("conversation upsert failed", "error", err, "tenant_id", tenant.ID)
		http.Error(w, "failed to persist message", http.StatusInternalServerError)
		return
	}
	if created {
		h.logger.Info("conversation created",
			"conversation_id", conv.ID, "tenant_id", tenant.ID, "customer_phone", phone)
	}

	if _, err := h.store.InsertMessage(ctx, conversations.MessageRecord{
		ConversationID: conv.ID,
		TenantID:       tenant.ID,
		CustomerPhone:  phone,
		Body:           evt.Payload.Body,
		Direction:      conversations.DirectionReceived,
		ExternalID:     evt.Payload.ID,
	}); err != nil {
		if conversations.IsDuplicateMessage(err) {
			h.metrics.ObserveInbound(evt.Event, "duplicate")
			writeJSON(w, http.StatusOK, webhookResponse{Success: true, Message: "duplicate"})
			return
		}
		span.RecordError(err)
		h.logger.Error("inbound message insert failed", "error", err, "conversation_id", conv.ID)
		http.Error(w, "failed to persist message", http.StatusInternalServerError)
		return
	}

	if !tenant.AutoReplyEnabled {
		h.metrics.ObserveInbound(evt.Event, "stored")
		writeJSON(w, http.StatusOK, webhookResponse{Success: true})
		return
	}

	release, claimed := h.guard.ClaimConversation(ctx, tenant.ID, phone)
	if !claimed {
		h.logger.Info("conversation busy, skipping assistant turn",
			"tenant_id", tenant.ID, "customer_phone", phone)
		h.metrics.ObserveInbound(evt.Event, "stored")
		writeJSON(w, http.StatusOK, webhookResponse{Success: true})
		return
	}
	defer release()

	status := h.runAssistantTurn(ctx, tenant, conv, evt.Payload.Body, evt.Payload.ID)
	h.metrics.ObserveInbound(evt.Event, status)
	writeJSON(w, http.StatusOK, webhookResponse{Success: true})
}

// runAssistantTurn generates and delivers the reply for a stored inbound
// message. It returns a metric status label; every outcome answers 200
// upstream because the inbound message is already persisted.
func (h *WebhookHandler) runAssistantTurn(ctx context.Context, tenant *tenants.Tenant, conv *conversations.Conversation, inbound, externalID string) string {
	history, err := h.store.History(ctx, conv.ID, h.historyWindow)
	if err != nil {
		h.logger.Error("history load failed, responding without context",
			"error", err, "conversation_id", conv.ID)
		history = nil
	}
	// The inbound message is already persisted, so the loaded window ends
	// with it. The responder takes history and the new message separately;
	// keeping it in both would feed the model the same user turn twice.
	history = trimStoredInbound(history, externalID, inbound)

	result := h.responder.Respond(ctx, tenant, history, inbound)

	if result.Appointment != nil && result.Appointment.ReadyToCreate {
		intent := result.Appointment
		if _, err := h.appointments.CreateFromIntent(ctx, appointments.CreateParams{
			TenantID:      tenant.ID,
			CustomerPhone: conv.CustomerPhone,
			CustomerName:  firstNonEmpty(intent.CustomerName, conv.CustomerName),
			Date:          intent.Date,
			Time:          intent.Time,
			Service:       intent.Service,
		}); err != nil {
			h.logger.Error("appointment creation failed, reply continues",
				"error", err, "tenant_id", tenant.ID, "customer_phone", conv.CustomerPhone)
		}
	}

	if err := h.sender.SendText(ctx, tenant.GatewaySession, conv.CustomerPhone, result.ReplyText); err != nil {
		// A generated reply that never reached the customer is the silent
		// failure mode worth alerting on.
		h.logger.Error("reply send failed, customer got no response",
			"error", err, "tenant_id", tenant.ID,
			"conversation_id", conv.ID, "fallback", result.Fallback)
		h.metrics.ObserveOutbound("bot", "failed")
		return "reply_failed"
	}
	h.metrics.ObserveOutbound("bot", "sent")

	if _, err := h.store.InsertMessage(ctx, conversations.MessageRecord{
		ConversationID: conv.ID,
		TenantID:       tenant.ID,
		CustomerPhone:  conv.CustomerPhone,
		Body:           result.ReplyText,
		Direction:      conversations.DirectionSent,
	}); err != nil {
		h.logger.Error("outbound message insert failed after send",
			"error", err, "conversation_id", conv.ID)
	}
	if err := h.store.MarkRead(ctx, conv.ID); err != nil {
		h.logger.Error("mark read failed", "error", err, "conversation_id", conv.ID)
	}
	return "replied"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// trimStoredInbound drops the trailing history entry when it is the inbound
// message itself, matched by gateway id or, when the gateway sent none, by
// body.
func trimStoredInbound(history []conversations.Message, externalID, body string) []conversations.Message {
	if len(history) == 0 {
		return history
	}
	last := history[len(history)-1]
	if last.Direction != conversations.DirectionReceived {
		return history
	}
	if externalID != "" {
		if last.ExternalID == externalID {
			return history[:len(history)-1]
		}
		return history
	}
	if last.Body == body {
		return history[:len(history)-1]
	}
	return history
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
