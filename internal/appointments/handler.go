package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/replygo/whatsapp-ai-platform/internal/tenants"
	"github.com/replygo/whatsapp-ai-platform/pkg/logging"
)

// TenantDirectory resolves tenants for dashboard requests.
type TenantDirectory interface {
	GetByEmail(ctx context.Context, email string) (*tenants.Tenant, error)
}

// Handler serves the dashboard's appointment CRUD.
type Handler struct {
	repo    *Repository
	service *Service
	tenants TenantDirectory
	logger  *logging.Logger
}

// NewHandler creates an appointments handler.
func NewHandler(repo *Repository, service *Service, directory TenantDirectory, logger *logging.Logger) *Handler {
	if repo == nil {
		panic("appointments: repository required")
	}
	if service == nil {
		panic("appointments: service required")
	}
	if directory == nil {
		panic("appointments: tenant directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, service: service, tenants: directory, logger: logger}
}

// List handles GET /tenants/{email}/appointments requests.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}
	status := r.URL.Query().Get("status")
	if status != "" && !ValidStatus(status) {
		http.Error(w, "invalid status filter", http.StatusBadRequest)
		return
	}

	appts, err := h.repo.ListForTenant(r.Context(), tenant.ID, status)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err, "tenant_id", tenant.ID)
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"appointments": appts,
		"count":        len(appts),
	})
}

// Create handles POST /tenants/{email}/appointments requests (manual booking).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}
	var req struct {
		CustomerPhone string `json:"customer_phone"`
		CustomerName  string `json:"customer_name"`
		Date          string `json:"date"`
		Time          string `json:"time"`
		Service       string `json:"service"`
		Notes         string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	appt, err := h.service.CreateManual(r.Context(), CreateParams{
		TenantID:      tenant.ID,
		CustomerPhone: req.CustomerPhone,
		CustomerName:  req.CustomerName,
		Date:          req.Date,
		Time:          req.Time,
		Service:       req.Service,
		Notes:         req.Notes,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(appt)
}

// UpdateStatus handles PUT /tenants/{email}/appointments/{appointmentID}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}
	apptID, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.repo.UpdateStatus(r.Context(), tenant.ID, apptID, req.Status); err != nil {
		switch {
		case errors.Is(err, ErrInvalidStatus):
			http.Error(w, "invalid status", http.StatusBadRequest)
		case errors.Is(err, ErrAppointmentNotFound):
			http.Error(w, "appointment not found", http.StatusNotFound)
		default:
			h.logger.Error("failed to update appointment", "error", err, "appointment_id", apptID)
			http.Error(w, "failed to update appointment", http.StatusInternalServerError)
		}
		return
	}

	h.logger.Info("appointment status updated", "appointment_id", apptID, "status", req.Status)
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /tenants/{email}/appointments/{appointmentID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}
	apptID, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}
	if err := h.repo.Delete(r.Context(), tenant.ID, apptID); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to delete appointment", "error", err, "appointment_id", apptID)
		http.Error(w, "failed to delete appointment", http.StatusInternalServerError)
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
