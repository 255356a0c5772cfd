// Package tenants holds per-tenant configuration: business identity, opening
// hours, gateway session binding, and assistant preferences.
package tenants

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Subscription status values mirrored from the billing processor.
const (
	StatusTrial     = "trial"
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

// ValidStatus reports whether s is one of the known subscription states.
func ValidStatus(s string) bool {
	switch s {
	case StatusTrial, StatusActive, StatusCancelled:
		return true
	}
	return false
}

var (
	ErrTenantNotFound = errors.New("tenants: tenant not found")
	ErrInvalidStatus  = errors.New("tenants: invalid status")
	ErrMissingEmail   = errors.New("tenants: email is required")
	ErrMissingSession = errors.New("tenants: gateway session is required")
)

// DayHours represents the opening hours for a single weekday.
type DayHours struct {
	Open  bool   `json:"open"`
	Start string `json:"start,omitempty"` // "09:00" in 24-hour format
	End   string `json:"end,omitempty"`   // "18:00" in 24-hour format
}

// OpeningHours maps weekday names to their hours.
type OpeningHours struct {
	Monday    DayHours `json:"monday"`
	Tuesday   DayHours `json:"tuesday"`
	Wednesday DayHours `json:"wednesday"`
	Thursday  DayHours `json:"thursday"`
	Friday    DayHours `json:"friday"`
	Saturday  DayHours `json:"saturday"`
	Sunday    DayHours `json:"sunday"`
}

// Describe renders the weekly schedule as prompt-friendly text.
func (h OpeningHours) Describe() string {
	days := []struct {
		name  string
		hours DayHours
	}{
		{"Monday", h.Monday},
		{"Tuesday", h.Tuesday},
		{"Wednesday", h.Wednesday},
		{"Thursday", h.Thursday},
		{"Friday", h.Friday},
		{"Saturday", h.Saturday},
		{"Sunday", h.Sunday},
	}
	var b strings.Builder
	for i, d := range days {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(d.name)
		b.WriteString(": ")
		if d.hours.Open && d.hours.Start != "" && d.hours.End != "" {
			b.WriteString(d.hours.Start)
			b.WriteString("-")
			b.WriteString(d.hours.End)
		} else {
			b.WriteString("closed")
		}
	}
	return b.String()
}

// DefaultOpeningHours returns a weekday 09:00-18:00 schedule, weekend closed.
func DefaultOpeningHours() OpeningHours {
	weekday := DayHours{Open: true, Start: "09:00", End: "18:00"}
	return OpeningHours{
		Monday:    weekday,
		Tuesday:   weekday,
		Wednesday: weekday,
		Thursday:  weekday,
		Friday:    weekday,
	}
}

// Tenant is one subscribing business account.
type Tenant struct {
	ID                uuid.UUID    `json:"id"`
	Email             string       `json:"email"`
	CompanyName       string       `json:"company_name"`
	SectorID          string       `json:"sector"`
	Address           string       `json:"address,omitempty"`
	Phone             string       `json:"phone,omitempty"`
	GatewaySession    string       `json:"gateway_session"`
	Status            string       `json:"status"`
	AutoReplyEnabled  bool         `json:"auto_reply_enabled"`
	GreetingMessage   string       `json:"greeting_message,omitempty"`
	AwayMessage       string       `json:"away_message,omitempty"`
	CustomPrompt      string       `json:"custom_prompt,omitempty"`
	NotificationEmail string       `json:"notification_email,omitempty"`
	OpeningHours      OpeningHours `json:"opening_hours"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Sector returns the catalog entry for the tenant's sector, falling back to
// the generic entry for unset or unrecognized sectors.
func (t *Tenant) Sector() Sector {
	return SectorByID(t.SectorID)
}

// CreateTenantRequest is the dashboard payload for provisioning a tenant.
type CreateTenantRequest struct {
	Email          string `json:"email"`
	CompanyName    string `json:"company_name"`
	SectorID       string `json:"sector"`
	Address        string `json:"address"`
	Phone          string `json:"phone"`
	GatewaySession string `json:"gateway_session"`
}

// Validate checks required fields for tenant creation.
func (r *CreateTenantRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return ErrMissingEmail
	}
	if strings.TrimSpace(r.GatewaySession) == "" {
		return ErrMissingSession
	}
	return nil
}

// UpdateSettingsRequest carries mutable tenant settings. Pointer fields are
// applied only when present so partial updates don't blank other settings.
type UpdateSettingsRequest struct {
	CompanyName       *string       `json:"company_name,omitempty"`
	SectorID          *string       `json:"sector,omitempty"`
	Address           *string       `json:"address,omitempty"`
	Phone             *string       `json:"phone,omitempty"`
	GatewaySession    *string       `json:"gateway_session,omitempty"`
	AutoReplyEnabled  *bool         `json:"auto_reply_enabled,omitempty"`
	GreetingMessage   *string       `json:"greeting_message,omitempty"`
	AwayMessage       *string       `json:"away_message,omitempty"`
	CustomPrompt      *string       `json:"custom_prompt,omitempty"`
	NotificationEmail *string       `json:"notification_email,omitempty"`
	OpeningHours      *OpeningHours `json:"opening_hours,omitempty"`
}

// Apply copies the present fields onto the tenant.
func (r *UpdateSettingsRequest) Apply(t *Tenant) {
	if r.CompanyName != nil {
		t.CompanyName = *r.CompanyName
	}
	if r.SectorID != nil {
		t.SectorID = *r.SectorID
	}
	if r.Address != nil {
		t.Address = *r.Address
	}
	if r.Phone != nil {
		t.Phone = *r.Phone
	}
	if r.GatewaySession != nil {
		t.GatewaySession = *r.GatewaySession
	}
	if r.AutoReplyEnabled != nil {
		t.AutoReplyEnabled = *r.AutoReplyEnabled
	}
	if r.GreetingMessage != nil {
		t.GreetingMessage = *r.GreetingMessage
	}
	if r.AwayMessage != nil {
		t.AwayMessage = *r.AwayMessage
	}
	if r.CustomPrompt != nil {
		t.CustomPrompt = *r.CustomPrompt
	}
	if r.NotificationEmail != nil {
		t.NotificationEmail = *r.NotificationEmail
	}
	if r.OpeningHours != nil {
		t.OpeningHours = *r.OpeningHours
	}
}
