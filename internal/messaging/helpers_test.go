package messaging

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/replygo/whatsapp-ai-platform/internal/appointments"
	"github.com/replygo/whatsapp-ai-platform/internal/assistant"
	"github.com/replygo/whatsapp-ai-platform/internal/conversations"
	"github.com/replygo/whatsapp-ai-platform/internal/tenants"
)

type stubDirectory struct {
	byEmail   map[string]*tenants.Tenant
	bySession map[string]*tenants.Tenant
}

func (s *stubDirectory) GetByEmail(_ context.Context, email string) (*tenants.Tenant, error) {
	if t, ok := s.byEmail[email]; ok {
		return t, nil
	}
	return nil, tenants.ErrTenantNotFound
}

func (s *stubDirectory) GetBySession(_ context.Context, session string) (*tenants.Tenant, error) {
	if t, ok := s.bySession[session]; ok {
		return t, nil
	}
	return nil, tenants.ErrTenantNotFound
}

// memoryStore is an in-memory ConversationStore good enough for pipeline tests.
type memoryStore struct {
	conversations map[string]*conversations.Conversation // key tenant|phone
	messages      []conversations.MessageRecord
	insertErr     error
	markedRead    []uuid.UUID
	touched       []uuid.UUID
}

func newMemoryStore() *memoryStore {
	return &memoryStore{conversations: map[string]*conversations.Conversation{}}
}

func (m *memoryStore) FindOrCreate(_ context.Context, tenantID uuid.UUID, phone, name string) (*conversations.Conversation, bool, error) {
	key := tenantID.String() + "|" + phone
	if conv, ok := m.conversations[key]; ok {
		conv.UnreadCount++
		return conv, false, nil
	}
	if name == "" {
		name = phone
	}
	conv := &conversations.Conversation{
		ID:            uuid.New(),
		TenantID:      tenantID,
		CustomerPhone: phone,
		CustomerName:  name,
		UnreadCount:   1,
	}
	m.conversations[key] = conv
	return conv, true, nil
}

func (m *memoryStore) Get(_ context.Context, tenantID, conversationID uuid.UUID) (*conversations.Conversation, error) {
	for _, conv := range m.conversations {
		if conv.ID == conversationID && conv.TenantID == tenantID {
			return conv, nil
		}
	}
	return nil, conversations.ErrConversationNotFound
}

func (m *memoryStore) InsertMessage(_ context.Context, rec conversations.MessageRecord) (uuid.UUID, error) {
	if m.insertErr != nil {
		return uuid.Nil, m.insertErr
	}
	m.messages = append(m.messages, rec)
	return uuid.New(), nil
}

func (m *memoryStore) HasExternalMessage(_ context.Context, tenantID uuid.UUID, externalID string) (bool, error) {
	if externalID == "" {
		return false, nil
	}
	for _, rec := range m.messages {
		if rec.TenantID == tenantID && rec.ExternalID == externalID && rec.Direction == conversations.DirectionReceived {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) History(_ context.Context, conversationID uuid.UUID, _ int) ([]conversations.Message, error) {
	var out []conversations.Message
	for _, rec := range m.messages {
		if rec.ConversationID == conversationID {
			out = append(out, conversations.Message{
				ConversationID: rec.ConversationID,
				Body:           rec.Body,
				Direction:      rec.Direction,
				ExternalID:     rec.ExternalID,
			})
		}
	}
	return out, nil
}

func (m *memoryStore) MarkRead(_ context.Context, conversationID uuid.UUID) error {
	m.markedRead = append(m.markedRead, conversationID)
	for _, conv := range m.conversations {
		if conv.ID == conversationID {
			conv.UnreadCount = 0
		}
	}
	return nil
}

func (m *memoryStore) TouchLastMessage(_ context.Context, conversationID uuid.UUID) error {
	m.touched = append(m.touched, conversationID)
	return nil
}

func (m *memoryStore) sent() []conversations.MessageRecord {
	var out []conversations.MessageRecord
	for _, rec := range m.messages {
		if rec.Direction == conversations.DirectionSent {
			out = append(out, rec)
		}
	}
	return out
}

type stubResponder struct {
	result    assistant.Result
	calls     int
	histories [][]conversations.Message
}

func (s *stubResponder) Respond(_ context.Context, _ *tenants.Tenant, history []conversations.Message, _ string) assistant.Result {
	s.calls++
	s.histories = append(s.histories, history)
	return s.result
}

// recordingLLM answers from a script and keeps every request, so tests can
// inspect the exact context a real responder sends per pass.
type recordingLLM struct {
	responses []string
	requests  []assistant.LLMRequest
}

func (c *recordingLLM) Complete(_ context.Context, req assistant.LLMRequest) (assistant.LLMResponse, error) {
	c.requests = append(c.requests, req)
	i := len(c.requests) - 1
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	return assistant.LLMResponse{Text: c.responses[i]}, nil
}

type stubCreator struct {
	created []appointments.CreateParams
	err     error
}

func (s *stubCreator) CreateFromIntent(_ context.Context, p appointments.CreateParams) (*appointments.Appointment, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, p)
	return &appointments.Appointment{
		ID:            uuid.New(),
		TenantID:      p.TenantID,
		CustomerPhone: p.CustomerPhone,
		Date:          p.Date,
		Time:          p.Time,
		Status:        appointments.StatusPending,
	}, nil
}

type stubSender struct {
	sent []struct{ Session, Phone, Text string }
	err  error
}

func (s *stubSender) SendText(_ context.Context, session, phone, text string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, struct{ Session, Phone, Text string }{session, phone, text})
	return nil
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func salonTenant() *tenants.Tenant {
	return &tenants.Tenant{
		ID:               uuid.New(),
		Email:            "salon@x.com",
		CompanyName:      "Salon X",
		SectorID:         "coiffure",
		GatewaySession:   "waha_salon",
		Status:           tenants.StatusActive,
		AutoReplyEnabled: true,
		OpeningHours:     tenants.DefaultOpeningHours(),
	}
}
