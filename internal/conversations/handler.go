package conversations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/replygo/whatsapp-ai-platform/internal/tenants"
	"github.com/replygo/whatsapp-ai-platform/pkg/logging"
)

// TenantDirectory resolves tenants for dashboard requests.
type TenantDirectory interface {
	GetByEmail(ctx context.Context, email string) (*tenants.Tenant, error)
}

// Handler serves the dashboard's conversation views.
type Handler struct {
	store   *Store
	tenants TenantDirectory
	logger  *logging.Logger
}

// NewHandler creates a conversations handler.
func NewHandler(store *Store, directory TenantDirectory, logger *logging.Logger) *Handler {
	if store == nil {
		panic("conversations: store required")
	}
	if directory == nil {
		panic("conversations: tenant directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, tenants: directory, logger: logger}
}

// ListConversations handles GET /tenants/{email}/conversations.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}
	includeArchived := r.URL.Query().Get("archived") == "true"

	convs, err := h.store.ListForTenant(r.Context(), tenant.ID, includeArchived)
	if err != nil {
		h.logger.Error("failed to list conversations", "error", err, "tenant_id", tenant.ID)
		http.Error(w, "failed to list conversations", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"conversations": convs,
		"count":         len(convs),
	})
}

// GetHistory handles GET /tenants/{email}/conversations/{conversationID}/messages.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}
	convID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}

	conv, err := h.store.Get(r.Context(), tenant.ID, convID)
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load conversation", "error", err, "conversation_id", convID)
		http.Error(w, "failed to load conversation", http.StatusInternalServerError)
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	messages, err := h.store.History(r.Context(), convID, limit)
	if err != nil {
		h.logger.Error("failed to load history", "error", err, "conversation_id", convID)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"conversation": conv,
		"messages":     messages,
	})
}

// Archive handles POST /tenants/{email}/conversations/{conversationID}/archive.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

// Unarchive handles POST /tenants/{email}/conversations/{conversationID}/unarchive.
func (h *Handler) Unarchive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *Handler) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	tenant, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}
	convID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}
	if err := h.store.SetArchived(r.Context(), tenant.ID, convID, archived); err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to archive conversation", "error", err, "conversation_id", convID)
		http.Error(w, "failed to archive conversation", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rename handles PUT /tenants/{email}/conversations/{conversationID}/name.
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}
	convID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if err := h.store.SetCustomerName(r.Context(), tenant.ID, convID, req.Name); err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to rename conversation", "error", err, "conversation_id", convID)
		http.Error(w, "failed to rename conversation", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resolveTenant(w http.ResponseWriter, r *http.Request) (*tenants.Tenant, bool) {
	email := chi.URLParam(r, "email")
	if email == "" {
		http.Error(w, "missing tenant email", http.StatusBadRequest)
		return nil, false
	}
	tenant, err := h.tenants.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, tenants.ErrTenantNotFound) {
			http.Error(w, "tenant not found", http.StatusNotFound)
			return nil, false
		}
		h.logger.Error("failed to resolve tenant", "error", err, "email", email)
		http.Error(w, "failed to resolve tenant", http.StatusInternalServerError)
		return nil, false
	}
	return tenant, true
}
