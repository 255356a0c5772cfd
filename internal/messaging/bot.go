package messaging

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/replygo/whatsapp-ai-platform/internal/appointments"
	"github.com/replygo/whatsapp-ai-platform/internal/conversations"
	"github.com/replygo/whatsapp-ai-platform/internal/tenants"
	"github.com/replygo/whatsapp-ai-platform/pkg/logging"
)

// BotHandler runs one assistant turn without gateway I/O. It serves callers
// that already have the customer message in hand and deliver the reply
// themselves, such as the dashboard's test console.
type BotHandler struct {
	tenants       TenantDirectory
	store         ConversationStore
	responder     Responder
	appointments  AppointmentCreator
	historyWindow int
	logger        *logging.Logger
}

// NewBotHandler creates the bot processing handler.
func NewBotHandler(directory TenantDirectory, store ConversationStore, responder Responder, creator AppointmentCreator, historyWindow int, logger *logging.Logger) *BotHandler {
	if directory == nil {
		panic("messaging: tenant directory required")
	}
	if store == nil {
		panic("messaging: conversation store required")
	}
	if responder == nil {
		panic("messaging: responder required")
	}
	if creator == nil {
		panic("messaging: appointment creator required")
	}
	if historyWindow <= 0 {
		historyWindow = 20
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BotHandler{
		tenants:       directory,
		store:         store,
		responder:     responder,
		appointments:  creator,
		historyWindow: historyWindow,
		logger:        logger,
	}
}

type botRequest struct {
	ClientEmail    string `json:"clientEmail"`
	CustomerPhone  string `json:"customerPhone"`
	MessageText    string `json:"messageText"`
	ConversationID string `json:"conversationId"`
}

type botResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Process handles POST /bot/process.
func (h *BotHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req botRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ClientEmail) == "" || strings.TrimSpace(req.MessageText) == "" {
		http.Error(w, "clientEmail and messageText are required", http.StatusBadRequest)
		return
	}

	tenant, err := h.tenants.GetByEmail(r.Context(), req.ClientEmail)
	if err != nil {
		if errors.Is(err, tenants.ErrTenantNotFound) {
			writeJSON(w, http.StatusOK, botResponse{Success: false, Message: "unknown client"})
			return
		}
		h.logger.Error("tenant lookup failed", "error", err, "email", req.ClientEmail)
		http.Error(w, "failed to resolve tenant", http.StatusInternalServerError)
		return
	}

	var history []conversations.Message
	if convID, err := uuid.Parse(req.ConversationID); err == nil {
		history, err = h.store.History(r.Context(), convID, h.historyWindow)
		if err != nil {
			h.logger.Warn("history load failed, responding without context",
				"error", err, "conversation_id", convID)
			history = nil
		}
	}

	result := h.responder.Respond(r.Context(), tenant, history, req.MessageText)

	if result.Appointment != nil && result.Appointment.ReadyToCreate {
		intent := result.Appointment
		if _, err := h.appointments.CreateFromIntent(r.Context(), appointments.CreateParams{
			TenantID:      tenant.ID,
			CustomerPhone: req.CustomerPhone,
			CustomerName:  intent.CustomerName,
			Date:          intent.Date,
			Time:          intent.Time,
			Service:       intent.Service,
		}); err != nil {
			h.logger.Error("appointment creation failed", "error", err, "tenant_id", tenant.ID)
		}
	}

	writeJSON(w, http.StatusOK, botResponse{Success: true, Response: result.ReplyText})
}
