// Package appointments persists bookings detected by the assistant or created
// manually from the dashboard.
package appointments

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Appointment status values. Creation is always pending; transitions are
// tenant-driven.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

var (
	ErrAppointmentNotFound = errors.New("appointments: appointment not found")
	ErrInvalidStatus       = errors.New("appointments: invalid status")
)

// Appointment is one booking for one customer phone.
type Appointment struct {
	ID            uuid.UUID `json:"id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	CustomerPhone string    `json:"customer_phone"`
	CustomerName  string    `json:"customer_name"`
	Date          string    `json:"date"` // YYYY-MM-DD
	Time          string    `json:"time"` // HH:MM
	Service       string    `json:"service,omitempty"`
	Status        string    `json:"status"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateParams carries the fields for an appointment insert.
type CreateParams struct {
	TenantID      uuid.UUID
	CustomerPhone string
	CustomerName  string
	Date          string
	Time          string
	Service       string
	Notes         string
}

// Validate checks the fields the pipeline must never persist without.
func (p *CreateParams) Validate() error {
	if p.TenantID == uuid.Nil {
		return errors.New("appointments: tenant id is required")
	}
	if strings.TrimSpace(p.CustomerPhone) == "" {
		return errors.New("appointments: customer phone is required")
	}
	if _, err := time.Parse("2006-01-02", strings.TrimSpace(p.Date)); err != nil {
		return errors.New("appointments: date must be YYYY-MM-DD")
	}
	if _, err := time.Parse("15:04", strings.TrimSpace(p.Time)); err != nil {
		return errors.New("appointments: time must be HH:MM")
	}
	return nil
}

// ValidStatus reports whether s is a known appointment status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}
