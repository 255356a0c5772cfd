package appointments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the pool surface the repository needs; pgxpool.Pool and pgxmock
// both satisfy it.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores appointments in the relational database.
type Repository struct {
	pool PgxPool
}

// NewRepository initializes a repo backed by pgx.
func NewRepository(pool PgxPool) *Repository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{pool: pool}
}

// Insert creates a pending appointment row.
func (r *Repository) Insert(ctx context.Context, p CreateParams) (*Appointment, error) {
	appt := &Appointment{
		ID:            uuid.New(),
		TenantID:      p.TenantID,
		CustomerPhone: p.CustomerPhone,
		CustomerName:  p.CustomerName,
		Date:          p.Date,
		Time:          p.Time,
		Service:       p.Service,
		Status:        StatusPending,
		Notes:         p.Notes,
	}
	query := `
		INSERT INTO appointments (
			id, tenant_id, customer_phone, customer_name,
			appointment_date, appointment_time, service, status, notes
		)
		VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),$8,NULLIF($9,''))
		RETURNING created_at
	`
	if err := r.pool.QueryRow(ctx, query,
		appt.ID,
		appt.TenantID,
		appt.CustomerPhone,
		appt.CustomerName,
		appt.Date,
		appt.Time,
		appt.Service,
		appt.Status,
		appt.Notes,
	).Scan(&appt.CreatedAt); err != nil {
		return nil, fmt.Errorf("appointments: insert appointment: %w", err)
	}
	return appt, nil
}

// ExistsPending reports whether an identical pending appointment already
// exists for the contact.
func (r *Repository) ExistsPending(ctx context.Context, tenantID uuid.UUID, phone, date, timeOfDay string) (bool, error) {
	query := `
		SELECT 1 FROM appointments
		WHERE tenant_id = $1
			AND customer_phone = $2
			AND appointment_date = $3
			AND appointment_time = $4
			AND status = 'pending'
		LIMIT 1
	`
	var exists int
	if err := r.pool.QueryRow(ctx, query, tenantID, phone, date, timeOfDay).Scan(&exists); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("appointments: check pending appointment: %w", err)
	}
	return true, nil
}

// ListForTenant returns the tenant's appointments, soonest first.
func (r *Repository) ListForTenant(ctx context.Context, tenantID uuid.UUID, status string) ([]Appointment, error) {
	query := `
		SELECT id, tenant_id, customer_phone, customer_name, appointment_date,
			appointment_time, COALESCE(service, ''), status, COALESCE(notes, ''), created_at
		FROM appointments
		WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY appointment_date ASC, appointment_time ASC
	`
	rows, err := r.pool.Query(ctx, query, tenantID, status)
	if err != nil {
		return nil, fmt.Errorf("appointments: list appointments: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		var appt Appointment
		if err := rows.Scan(
			&appt.ID,
			&appt.TenantID,
			&appt.CustomerPhone,
			&appt.CustomerName,
			&appt.Date,
			&appt.Time,
			&appt.Service,
			&appt.Status,
			&appt.Notes,
			&appt.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("appointments: scan appointment: %w", err)
		}
		out = append(out, appt)
	}
	return out, rows.Err()
}

// UpdateStatus applies a tenant-driven status transition.
func (r *Repository) UpdateStatus(ctx context.Context, tenantID, apptID uuid.UUID, status string) error {
	if !ValidStatus(status) {
		return ErrInvalidStatus
	}
	query := `UPDATE appointments SET status = $3 WHERE id = $1 AND tenant_id = $2`
	tag, err := r.pool.Exec(ctx, query, apptID, tenantID, status)
	if err != nil {
		return fmt.Errorf("appointments: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// Delete removes an appointment.
func (r *Repository) Delete(ctx context.Context, tenantID, apptID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1 AND tenant_id = $2`, apptID, tenantID)
	if err != nil {
		return fmt.Errorf("appointments: delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}
