package tenants

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/replygo/whatsapp-ai-platform/pkg/logging"
)

// SessionChecker reports the gateway connection state of a tenant's session.
type SessionChecker interface {
	SessionStatus(ctx context.Context, session string) (string, error)
}

// Handler handles dashboard HTTP requests for tenant settings.
type Handler struct {
	repo    *Repository
	gateway SessionChecker
	logger  *logging.Logger
}

// NewHandler creates a new tenants handler. gateway may be nil when no
// messaging gateway is configured.
func NewHandler(repo *Repository, gateway SessionChecker, logger *logging.Logger) *Handler {
	if repo == nil {
		panic("tenants: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, gateway: gateway, logger: logger}
}

// CreateTenant handles POST /tenants requests.
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode tenant request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tenant, err := h.repo.Create(r.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrMissingEmail) || errors.Is(err, ErrMissingSession) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to create tenant", "error", err, "email", req.Email)
		http.Error(w, "failed to create tenant", http.StatusInternalServerError)
		return
	}

	h.logger.Info("tenant created", "tenant_id", tenant.ID, "email", tenant.Email, "sector", tenant.SectorID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(tenant)
}

// GetSettings handles GET /tenants/{email} requests.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		http.Error(w, "missing tenant email", http.StatusBadRequest)
		return
	}

	tenant, err := h.repo.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			http.Error(w, "tenant not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load tenant", "error", err, "email", email)
		http.Error(w, "failed to load tenant", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(tenant)
}

// UpdateSettings handles PUT /tenants/{email} requests.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		http.Error(w, "missing tenant email", http.StatusBadRequest)
		return
	}

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode settings request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tenant, err := h.repo.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			http.Error(w, "tenant not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load tenant", "error", err, "email", email)
		http.Error(w, "failed to load tenant", http.StatusInternalServerError)
		return
	}

	req.Apply(tenant)
	tenant.SectorID = SectorByID(tenant.SectorID).ID

	if err := h.repo.UpdateSettings(r.Context(), tenant); err != nil {
		h.logger.Error("failed to update settings", "error", err, "tenant_id", tenant.ID)
		http.Error(w, "failed to update settings", http.StatusInternalServerError)
		return
	}

	h.logger.Info("tenant settings updated", "tenant_id", tenant.ID, "email", tenant.Email)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(tenant)
}

// UpdateStatus handles PUT /tenants/{email}/status, typically driven by the
// billing processor's subscription events.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		http.Error(w, "missing tenant email", http.StatusBadRequest)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !ValidStatus(req.Status) {
		http.Error(w, ErrInvalidStatus.Error(), http.StatusBadRequest)
		return
	}

	tenant, err := h.repo.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			http.Error(w, "tenant not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load tenant", "error", err, "email", email)
		http.Error(w, "failed to load tenant", http.StatusInternalServerError)
		return
	}

	if err := h.repo.UpdateStatus(r.Context(), tenant.ID, req.Status); err != nil {
		h.logger.Error("failed to update status", "error", err, "tenant_id", tenant.ID)
		http.Error(w, "failed to update status", http.StatusInternalServerError)
		return
	}

	h.logger.Info("tenant status updated", "tenant_id", tenant.ID, "status", req.Status)
	w.WriteHeader(http.StatusNoContent)
}

// GatewayStatus handles GET /tenants/{email}/gateway; the dashboard uses it
// to show whether the tenant's WhatsApp session is connected.
func (h *Handler) GatewayStatus(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		http.Error(w, "missing tenant email", http.StatusBadRequest)
		return
	}
	if h.gateway == nil {
		http.Error(w, "gateway not configured", http.StatusServiceUnavailable)
		return
	}

	tenant, err := h.repo.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			http.Error(w, "tenant not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load tenant", "error", err, "email", email)
		http.Error(w, "failed to load tenant", http.StatusInternalServerError)
		return
	}

	status, err := h.gateway.SessionStatus(r.Context(), tenant.GatewaySession)
	if err != nil {
		h.logger.Error("session status lookup failed", "error", err, "session", tenant.GatewaySession)
		http.Error(w, "gateway unreachable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"session": tenant.GatewaySession,
		"status":  status,
	})
}

// ListSectors handles GET /sectors requests for dashboard pickers.
func (h *Handler) ListSectors(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Sectors())
}

// DeleteTenant handles DELETE /tenants/{email}; owned records cascade.
func (h *Handler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		http.Error(w, "missing tenant email", http.StatusBadRequest)
		return
	}

	tenant, err := h.repo.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			http.Error(w, "tenant not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load tenant", "error", err, "email", email)
		http.Error(w, "failed to load tenant", http.StatusInternalServerError)
		return
	}

	if err := h.repo.Delete(r.Context(), tenant.ID); err != nil {
		h.logger.Error("failed to delete tenant", "error", err, "tenant_id", tenant.ID)
		http.Error(w, "failed to delete tenant", http.StatusInternalServerError)
		return
	}

	h.logger.Info("tenant deleted", "tenant_id", tenant.ID, "email", email)
	w.WriteHeader(http.StatusNoContent)
}
