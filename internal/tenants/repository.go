package tenants

import (
	"context"
	"encoding/json"
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

// Repository stores tenants in the relational database.
type Repository struct {
	pool PgxPool
}

// NewRepository initializes a repo backed by pgx.
func NewRepository(pool PgxPool) *Repository {
	if pool == nil {
		panic("tenants: pgx pool required")
	}
	return &Repository{pool: pool}
}

const tenantColumns = `
	id, email, company_name, sector, address, phone, gateway_session,
	status, auto_reply_enabled, greeting_message, away_message,
	custom_prompt, notification_email, opening_hours, created_at, updated_at
`

// Create inserts a new tenant with trial status and default hours.
func (r *Repository) Create(ctx context.Context, req *CreateTenantRequest) (*Tenant, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tenant := &Tenant{
		ID:               uuid.New(),
		Email:            req.Email,
		CompanyName:      req.CompanyName,
		SectorID:         SectorByID(req.SectorID).ID,
		Address:          req.Address,
		Phone:            req.Phone,
		GatewaySession:   req.GatewaySession,
		Status:           StatusTrial,
		AutoReplyEnabled: true,
		OpeningHours:     DefaultOpeningHours(),
	}
	hours, err := json.Marshal(tenant.OpeningHours)
	if err != nil {
		return nil, fmt.Errorf("tenants: marshal opening hours: %w", err)
	}

	query := `
		INSERT INTO tenants (
			id, email, company_name, sector, address, phone, gateway_session,
			status, auto_reply_enabled, opening_hours
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at
	`
	if err := r.pool.QueryRow(ctx, query,
		tenant.ID,
		tenant.Email,
		tenant.CompanyName,
		tenant.SectorID,
		tenant.Address,
		tenant.Phone,
		tenant.GatewaySession,
		tenant.Status,
		tenant.AutoReplyEnabled,
		hours,
	).Scan(&tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
		return nil, fmt.Errorf("tenants: insert tenant: %w", err)
	}
	return tenant, nil
}

// GetByEmail loads a tenant by its email key.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE email = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, email))
}

// GetBySession resolves the tenant owning a gateway session name.
func (r *Repository) GetBySession(ctx context.Context, session string) (*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE gateway_session = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, session))
}

// GetByID loads a tenant by primary key.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// UpdateSettings persists the tenant's mutable settings.
func (r *Repository) UpdateSettings(ctx context.Context, tenant *Tenant) error {
	hours, err := json.Marshal(tenant.OpeningHours)
	if err != nil {
		return fmt.Errorf("tenants: marshal opening hours: %w", err)
	}
	query := `
		UPDATE tenants
		SET company_name = $2,
			sector = $3,
			address = $4,
			phone = $5,
			gateway_session = $6,
			auto_reply_enabled = $7,
			greeting_message = $8,
			away_message = $9,
			custom_prompt = $10,
			notification_email = $11,
			opening_hours = $12,
			updated_at = now()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		tenant.ID,
		tenant.CompanyName,
		tenant.SectorID,
		tenant.Address,
		tenant.Phone,
		tenant.GatewaySession,
		tenant.AutoReplyEnabled,
		tenant.GreetingMessage,
		tenant.AwayMessage,
		tenant.CustomPrompt,
		tenant.NotificationEmail,
		hours,
	)
	if err != nil {
		return fmt.Errorf("tenants: update settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

// UpdateStatus mirrors the billing processor's subscription state.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE tenants SET status = $2, updated_at = now() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("tenants: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

// Delete removes the tenant; conversations, messages and appointments cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("tenants: delete tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (r *Repository) scanOne(row pgx.Row) (*Tenant, error) {
	var t Tenant
	var hours []byte
	if err := row.Scan(
		&t.ID,
		&t.Email,
		&t.CompanyName,
		&t.SectorID,
		&t.Address,
		&t.Phone,
		&t.GatewaySession,
		&t.Status,
		&t.AutoReplyEnabled,
		&t.GreetingMessage,
		&t.AwayMessage,
		&t.CustomPrompt,
		&t.NotificationEmail,
		&hours,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("tenants: select tenant: %w", err)
	}
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &t.OpeningHours); err != nil {
			return nil, fmt.Errorf("tenants: decode opening hours: %w", err)
		}
	}
	return &t, nil
}
