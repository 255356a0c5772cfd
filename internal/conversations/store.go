package conversations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the pool surface the store needs; pgxpool.Pool and pgxmock both
// satisfy it.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists conversations and messages in Postgres.
type Store struct {
	pool PgxPool
}

// NewStore creates a store backed by pgx.
func NewStore(pool PgxPool) *Store {
	if pool == nil {
		panic("conversations: pgx pool required")
	}
	return &Store{pool: pool}
}

// IsDuplicateMessage reports whether err is the unique violation raised by
// the partial index on inbound external message ids. It is the database
// backstop behind the Redis dedupe gate.
func IsDuplicateMessage(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// FindOrCreate returns the non-archived conversation for (tenant, phone),
// creating it with unread_count=1 when missing, or atomically incrementing
// unread_count and bumping last_message_at when present. The increment is a
// single SQL expression so concurrent inbound messages never lose counts.
func (s *Store) FindOrCreate(ctx context.Context, tenantID uuid.UUID, phone, name string) (*Conversation, bool, error) {
	if strings.TrimSpace(name) == "" {
		name = phone
	}
	// xmax = 0 only for freshly inserted rows, which distinguishes create
	// from update without a second round trip.
	query := `
		INSERT INTO conversations (id, tenant_id, customer_phone, customer_name, unread_count, last_message_at)
		VALUES ($1, $2, $3, $4, 1, now())
		ON CONFLICT (tenant_id, customer_phone) WHERE NOT archived
		DO UPDATE SET unread_count = conversations.unread_count + 1,
			last_message_at = now()
		RETURNING id, tenant_id, customer_phone, customer_name, last_message_at,
			unread_count, archived, created_at, (xmax = 0) AS created
	`
	var conv Conversation
	var created bool
	if err := s.pool.QueryRow(ctx, query, uuid.New(), tenantID, phone, name).Scan(
		&conv.ID,
		&conv.TenantID,
		&conv.CustomerPhone,
		&conv.CustomerName,
		&conv.LastMessageAt,
		&conv.UnreadCount,
		&conv.Archived,
		&conv.CreatedAt,
		&created,
	); err != nil {
		return nil, false, fmt.Errorf("conversations: find or create: %w", err)
	}
	return &conv, created, nil
}

// Get loads a conversation scoped to its tenant.
func (s *Store) Get(ctx context.Context, tenantID, conversationID uuid.UUID) (*Conversation, error) {
	query := `
		SELECT id, tenant_id, customer_phone, customer_name, last_message_at,
			unread_count, archived, created_at
		FROM conversations
		WHERE id = $1 AND tenant_id = $2
	`
	var conv Conversation
	if err := s.pool.QueryRow(ctx, query, conversationID, tenantID).Scan(
		&conv.ID,
		&conv.TenantID,
		&conv.CustomerPhone,
		&conv.CustomerName,
		&conv.LastMessageAt,
		&conv.UnreadCount,
		&conv.Archived,
		&conv.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("conversations: select conversation: %w", err)
	}
	return &conv, nil
}

// ListForTenant returns the tenant's conversations, most recent first.
func (s *Store) ListForTenant(ctx context.Context, tenantID uuid.UUID, includeArchived bool) ([]Conversation, error) {
	query := `
		SELECT id, tenant_id, customer_phone, customer_name, last_message_at,
			unread_count, archived, created_at
		FROM conversations
		WHERE tenant_id = $1 AND (archived = false OR $2)
		ORDER BY last_message_at DESC
	`
	rows, err := s.pool.Query(ctx, query, tenantID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("conversations: list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(
			&conv.ID,
			&conv.TenantID,
			&conv.CustomerPhone,
			&conv.CustomerName,
			&conv.LastMessageAt,
			&conv.UnreadCount,
			&conv.Archived,
			&conv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("conversations: scan conversation: %w", err)
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

// InsertMessage appends a message row and returns its id.
func (s *Store) InsertMessage(ctx context.Context, rec MessageRecord) (uuid.UUID, error) {
	if err := rec.validate(); err != nil {
		return uuid.Nil, err
	}
	query := `
		INSERT INTO messages (id, conversation_id, tenant_id, customer_phone, body, direction, external_id)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		RETURNING id
	`
	var id uuid.UUID
	if err := s.pool.QueryRow(ctx, query,
		uuid.New(),
		rec.ConversationID,
		rec.TenantID,
		rec.CustomerPhone,
		rec.Body,
		rec.Direction,
		rec.ExternalID,
	).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("conversations: insert message: %w", err)
	}
	return id, nil
}

// History returns the most recent limit messages of a conversation, oldest
// first, ready to feed the responder's context window.
func (s *Store) History(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, conversation_id, tenant_id, customer_phone, body, direction,
			COALESCE(external_id, ''), created_at
		FROM (
			SELECT * FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`
	rows, err := s.pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("conversations: load history: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.TenantID,
			&msg.CustomerPhone,
			&msg.Body,
			&msg.Direction,
			&msg.ExternalID,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("conversations: scan message: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// HasExternalMessage reports whether an inbound message with the gateway's
// message id was already stored. Backstop behind the Redis dedupe key.
func (s *Store) HasExternalMessage(ctx context.Context, tenantID uuid.UUID, externalID string) (bool, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return false, nil
	}
	query := `
		SELECT 1 FROM messages
		WHERE tenant_id = $1 AND external_id = $2 AND direction = 'received'
		LIMIT 1
	`
	var exists int
	if err := s.pool.QueryRow(ctx, query, tenantID, externalID).Scan(&exists); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("conversations: check external message: %w", err)
	}
	return true, nil
}

// MarkRead resets the unread counter and bumps last_message_at, used after
// the bot's reply lands.
func (s *Store) MarkRead(ctx context.Context, conversationID uuid.UUID) error {
	query := `
		UPDATE conversations
		SET unread_count = 0, last_message_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, query, conversationID); err != nil {
		return fmt.Errorf("conversations: mark read: %w", err)
	}
	return nil
}

// TouchLastMessage bumps last_message_at without touching the unread counter,
// used after a manual outbound send.
func (s *Store) TouchLastMessage(ctx context.Context, conversationID uuid.UUID) error {
	query := `UPDATE conversations SET last_message_at = now() WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, conversationID); err != nil {
		return fmt.Errorf("conversations: touch last message: %w", err)
	}
	return nil
}

// SetArchived flips the archived flag.
func (s *Store) SetArchived(ctx context.Context, tenantID, conversationID uuid.UUID, archived bool) error {
	query := `UPDATE conversations SET archived = $3 WHERE id = $1 AND tenant_id = $2`
	tag, err := s.pool.Exec(ctx, query, conversationID, tenantID, archived)
	if err != nil {
		return fmt.Errorf("conversations: set archived: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// SetCustomerName renames the contact shown in the dashboard.
func (s *Store) SetCustomerName(ctx context.Context, tenantID, conversationID uuid.UUID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("conversations: customer name is required")
	}
	query := `UPDATE conversations SET customer_name = $3 WHERE id = $1 AND tenant_id = $2`
	tag, err := s.pool.Exec(ctx, query, conversationID, tenantID, name)
	if err != nil {
		return fmt.Errorf("conversations: set customer name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}
