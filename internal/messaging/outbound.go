package messaging

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/replygo/whatsapp-ai-platform/internal/conversations"
	"github.com/replygo/whatsapp-ai-platform/internal/observability/metrics"
	"github.com/replygo/whatsapp-ai-platform/internal/tenants"
	"github.com/replygo/whatsapp-ai-platform/pkg/logging"
)

// SendHandler lets the dashboard answer a conversation by hand.
type SendHandler struct {
	tenants TenantDirectory
	store   ConversationStore
	sender  Sender
	metrics *metrics.MessagingMetrics
	logger  *logging.Logger
}

// NewSendHandler creates the manual send handler. m may be nil.
func NewSendHandler(directory TenantDirectory, store ConversationStore, sender Sender, m *metrics.MessagingMetrics, logger *logging.Logger) *SendHandler {
	if directory == nil {
		panic("messaging: tenant directory required")
	}
	if store == nil {
		panic("messaging: conversation store required")
	}
	if sender == nil {
		panic("messaging: sender required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SendHandler{tenants: directory, store: store, sender: sender, metrics: m, logger: logger}
}

// Send handles POST /tenants/{email}/conversations/{conversationID}/messages.
// The message row is only written after the gateway accepted the send, the
// same policy the bot path follows, so the thread never shows text the
// customer did not receive.
func (h *SendHandler) Send(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	convID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	tenant, err := h.tenants.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, tenants.ErrTenantNotFound) {
			http.Error(w, "tenant not found", http.StatusNotFound)
			return
		}
		h.logger.Error("tenant lookup failed", "error", err, "email", email)
		http.Error(w, "failed to resolve tenant", http.StatusInternalServerError)
		return
	}
	conv, err := h.store.Get(r.Context(), tenant.ID, convID)
	if err != nil {
		if errors.Is(err, conversations.ErrConversationNotFound) {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		h.logger.Error("conversation lookup failed", "error", err, "conversation_id", convID)
		http.Error(w, "failed to load conversation", http.StatusInternalServerError)
		return
	}

	if err := h.sender.SendText(r.Context(), tenant.GatewaySession, conv.CustomerPhone, text); err != nil {
		h.logger.Error("manual send failed",
			"error", err, "tenant_id", tenant.ID, "conversation_id", conv.ID)
		h.metrics.ObserveOutbound("manual", "failed")
		http.Error(w, "gateway rejected the message", http.StatusBadGateway)
		return
	}
	h.metrics.ObserveOutbound("manual", "sent")

	msgID, err := h.store.InsertMessage(r.Context(), conversations.MessageRecord{
		ConversationID: conv.ID,
		TenantID:       tenant.ID,
		CustomerPhone:  conv.CustomerPhone,
		Body:           text,
		Direction:      conversations.DirectionSent,
	})
	if err != nil {
		h.logger.Error("outbound message insert failed after send",
			"error", err, "conversation_id", conv.ID)
		http.Error(w, "message sent but not recorded", http.StatusInternalServerError)
		return
	}
	if err := h.store.TouchLastMessage(r.Context(), conv.ID); err != nil {
		h.logger.Error("touch last message failed", "error", err, "conversation_id", conv.ID)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":    true,
		"message_id": msgID,
	})
}
