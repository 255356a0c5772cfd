package messaging

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/replygo/whatsapp-ai-platform/internal/assistant"
	"github.com/replygo/whatsapp-ai-platform/internal/conversations"
	"github.com/replygo/whatsapp-ai-platform/internal/tenants"
	"github.com/replygo/whatsapp-ai-platform/pkg/logging"
)

func newWebhookHandler(t *testing.T, tenant *tenants.Tenant, store *memoryStore, responder *stubResponder, creator *stubCreator, sender *stubSender) *WebhookHandler {
	t.Helper()
	return NewWebhookHandler(WebhookConfig{
		Tenants:      &stubDirectory{bySession: map[string]*tenants.Tenant{tenant.GatewaySession: tenant}},
		Store:        store,
		Responder:    responder,
		Appointments: creator,
		Sender:       sender,
		Guard:        NewGuard(testRedis(t), 0, 0, logging.Default()),
		Logger:       logging.Default(),
	})
}

func postWebhook(t *testing.T, h *WebhookHandler, evt map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.HandleWebhook(rr, req)
	return rr
}

func inboundEvent(session, from, body, id string) map[string]any {
	return map[string]any{
		"event":   "message",
		"session": session,
		"payload": map[string]any{
			"id":     id,
			"from":   from,
			"fromMe": false,
			"body":   body,
		},
	}
}

func TestWebhookFullPipeline(t *testing.T) {
	tenant := salonTenant()
	store := newMemoryStore()
	responder := &stubResponder{result: assistant.Result{
		ReplyText: "C'est noté pour demain 10h !",
		Appointment: &assistant.AppointmentIntent{
			Detected:      true,
			Date:          "2026-09-02",
			Time:          "10:00",
			Service:       "coupe homme",
			ReadyToCreate: true,
		},
	}}
	creator := &stubCreator{}
	sender := &stubSender{}
	h := newWebhookHandler(t, tenant, store, responder, creator, sender)

	rr := postWebhook(t, h, inboundEvent("waha_salon", "33600000000@c.us", "Bonjour, je voudrais un RDV coupe homme demain 10h", "abc123"))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	conv, ok := store.conversations[tenant.ID.String()+"|33600000000"]
	if !ok {
		t.Fatal("conversation not created")
	}
	if conv.UnreadCount != 0 {
		t.Fatalf("unread = %d, want 0 after reply", conv.UnreadCount)
	}
	if len(store.messages) != 2 {
		t.Fatalf("expected inbound + outbound rows, got %d", len(store.messages))
	}
	if store.messages[0].Direction != conversations.DirectionReceived || store.messages[0].ExternalID != "abc123" {
		t.Fatalf("inbound row mismatch: %+v", store.messages[0])
	}
	if len(creator.created) != 1 {
		t.Fatalf("expected one appointment, got %d", len(creator.created))
	}
	if creator.created[0].Date != "2026-09-02" || creator.created[0].Service != "coupe homme" {
		t.Fatalf("appointment params mismatch: %+v", creator.created[0])
	}
	if len(sender.sent) != 1 || sender.sent[0].Session != "waha_salon" {
		t.Fatalf("send mismatch: %+v", sender.sent)
	}
	outbound := store.sent()
	if len(outbound) != 1 || outbound[0].Body != "C'est noté pour demain 10h !" {
		t.Fatalf("outbound row mismatch: %+v", outbound)
	}
}

func TestWebhookIgnoresOwnMessages(t *testing.T) {
	tenant := salonTenant()
	store := newMemoryStore()
	responder := &stubResponder{}
	h := newWebhookHandler(t, tenant, store, responder, &stubCreator{}, &stubSender{})

	evt := inboundEvent("waha_salon", "33600000000@c.us", "reply from the owner's phone", "own1")
	evt["payload"].(map[string]any)["fromMe"] = true
	rr := postWebhook(t, h, evt)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(store.messages) != 0 {
		t.Fatalf("fromMe must not persist anything, got %d rows", len(store.messages))
	}
	if responder.calls != 0 {
		t.Fatal("fromMe must not trigger the assistant")
	}
}

func TestWebhookUnknownSessionAnswers200(t *testing.T) {
	tenant := salonTenant()
	h := newWebhookHandler(t, tenant, newMemoryStore(), &stubResponder{}, &stubCreator{}, &stubSender{})

	rr := postWebhook(t, h, inboundEvent("waha_ghost", "33600000000@c.us", "hi", "g1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("unknown session must answer 200, got %d", rr.Code)
	}
	var resp webhookResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatal("benign response must report success")
	}
}

func TestWebhookDeduplicatesByExternalID(t *testing.T) {
	tenant := salonTenant()
	store := newMemoryStore()
	responder := &stubResponder{result: assistant.Result{ReplyText: "Bonjour !"}}
	sender := &stubSender{}
	h := newWebhookHandler(t, tenant, store, responder, &stubCreator{}, sender)

	evt := inboundEvent("waha_salon", "33600000000@c.us", "Bonjour", "dup1")
	postWebhook(t, h, evt)
	rr := postWebhook(t, h, evt)
	if rr.Code != http.StatusOK {
		t.Fatalf("duplicate must answer 200, got %d", rr.Code)
	}
	inboundCount := 0
	for _, rec := range store.messages {
		if rec.Direction == conversations.DirectionReceived {
			inboundCount++
		}
	}
	if inboundCount != 1 {
		t.Fatalf("duplicate delivery stored %d inbound rows", inboundCount)
	}
	if responder.calls != 1 {
		t.Fatalf("assistant ran %d times for one message", responder.calls)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("gateway got %d sends for one message", len(sender.sent))
	}
}

func TestWebhookDedupeSurvivesRedisOutage(t *testing.T) {
	tenant := salonTenant()
	store := newMemoryStore()
	responder := &stubResponder{result: assistant.Result{ReplyText: "Bonjour !"}}
	h := NewWebhookHandler(WebhookConfig{
		Tenants:      &stubDirectory{bySession: map[string]*tenants.Tenant{tenant.GatewaySession: tenant}},
		Store:        store,
		Responder:    responder,
		Appointments: &stubCreator{},
		Sender:       &stubSender{},
		Guard:        NewGuard(nil, 0, 0, logging.Default()),
		Logger:       logging.Default(),
	})

	evt := inboundEvent("waha_salon", "33600000000@c.us", "Bonjour", "out1")
	postWebhook(t, h, evt)
	rr := postWebhook(t, h, evt)
	if rr.Code != http.StatusOK {
		t.Fatalf("duplicate must answer 200, got %d", rr.Code)
	}
	inboundCount := 0
	for _, rec := range store.messages {
		if rec.Direction == conversations.DirectionReceived {
			inboundCount++
		}
	}
	if inboundCount != 1 {
		t.Fatalf("store backstop let %d inbound rows through", inboundCount)
	}
	if responder.calls != 1 {
		t.Fatalf("assistant ran %d times for one message", responder.calls)
	}
	// The duplicate must not have re-touched the conversation either.
	conv := store.conversations[tenant.ID.String()+"|33600000000"]
	if conv.UnreadCount != 0 {
		t.Fatalf("unread = %d, duplicate delivery leaked a count", conv.UnreadCount)
	}
}

func TestWebhookAutoReplyDisabledStoresOnly(t *testing.T) {
	tenant := salonTenant()
	tenant.AutoReplyEnabled = false
	store := newMemoryStore()
	responder := &stubResponder{}
	h := newWebhookHandler(t, tenant, store, responder, &stubCreator{}, &stubSender{})

	rr := postWebhook(t, h, inboundEvent("waha_salon", "33600000000@c.us", "Bonjour", "m1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(store.messages) != 1 {
		t.Fatalf("expected the inbound row only, got %d", len(store.messages))
	}
	if responder.calls != 0 {
		t.Fatal("assistant must not run when auto reply is off")
	}
	conv := store.conversations[tenant.ID.String()+"|33600000000"]
	if conv.UnreadCount != 1 {
		t.Fatalf("unread = %d, want 1 without a bot reply", conv.UnreadCount)
	}
}

func TestWebhookSecondMessageReusesConversation(t *testing.T) {
	tenant := salonTenant()
	store := newMemoryStore()
	responder := &stubResponder{result: assistant.Result{ReplyText: "Bonjour !"}}
	h := newWebhookHandler(t, tenant, store, responder, &stubCreator{}, &stubSender{})

	postWebhook(t, h, inboundEvent("waha_salon", "33600000000@c.us", "Bonjour", "s1"))
	postWebhook(t, h, inboundEvent("waha_salon", "33600000000@c.us", "Vous êtes ouverts demain ?", "s2"))

	if len(store.conversations) != 1 {
		t.Fatalf("expected one conversation for the phone, got %d", len(store.conversations))
	}
	if responder.calls != 2 {
		t.Fatalf("assistant ran %d times, want 2", responder.calls)
	}
	// The second turn must see the first exchange in its history.
	second := responder.histories[1]
	if len(second) < 2 {
		t.Fatalf("second turn history too short: %d messages", len(second))
	}
	if second[0].Body != "Bonjour" || second[0].Direction != conversations.DirectionReceived {
		t.Fatalf("first inbound missing from history: %+v", second[0])
	}
	if second[1].Body != "Bonjour !" || second[1].Direction != conversations.DirectionSent {
		t.Fatalf("first reply missing from history: %+v", second[1])
	}
}

func TestWebhookUnreadAccumulatesWithoutReply(t *testing.T) {
	tenant := salonTenant()
	tenant.AutoReplyEnabled = false
	store := newMemoryStore()
	h := newWebhookHandler(t, tenant, store, &stubResponder{}, &stubCreator{}, &stubSender{})

	postWebhook(t, h, inboundEvent("waha_salon", "33600000000@c.us", "Bonjour", "u1"))
	postWebhook(t, h, inboundEvent("waha_salon", "33600000000@c.us", "Toujours là ?", "u2"))

	conv := store.conversations[tenant.ID.String()+"|33600000000"]
	if conv == nil {
		t.Fatal("conversation not created")
	}
	if conv.UnreadCount != 2 {
		t.Fatalf("unread = %d, want 2 before any read", conv.UnreadCount)
	}
}

func TestWebhookFallbackReplyStillDelivered(t *testing.T) {
	tenant := salonTenant()
	store := newMemoryStore()
	responder := &stubResponder{result: assistant.Result{
		ReplyText: "Merci pour votre message ! Nous revenons vers vous très vite.",
		Fallback:  true,
	}}
	creator := &stubCreator{}
	sender := &stubSender{}
	h := newWebhookHandler(t, tenant, store, responder, creator, sender)

	postWebhook(t, h, inboundEvent("waha_salon", "33600000000@c.us", "rdv demain 10h svp", "fb1"))

	if len(creator.created) != 0 {
		t.Fatalf("fallback turn must not create appointments: %+v", creator.created)
	}
	if len(sender.sent) != 1 || sender.sent[0].Text != responder.result.ReplyText {
		t.Fatalf("fallback text not sent: %+v", sender.sent)
	}
	outbound := store.sent()
	if len(outbound) != 1 || outbound[0].Body != responder.result.ReplyText {
		t.Fatalf("fallback text not recorded: %+v", outbound)
	}
}

func TestWebhookAssistantContextCarriesInboundOnce(t *testing.T) {
	tenant := salonTenant()
	store := newMemoryStore()
	llm := &recordingLLM{responses: []string{
		`{"intentDetected": false}`,
		"Bonjour ! Quand souhaitez-vous venir ?",
		`{"intentDetected": false}`,
		"Avec plaisir, à demain !",
	}}
	h := NewWebhookHandler(WebhookConfig{
		Tenants:      &stubDirectory{bySession: map[string]*tenants.Tenant{tenant.GatewaySession: tenant}},
		Store:        store,
		Responder:    assistant.NewResponder(llm, assistant.Config{}, logging.Default()),
		Appointments: &stubCreator{},
		Sender:       &stubSender{},
		Guard:        NewGuard(testRedis(t), 0, 0, logging.Default()),
		Logger:       logging.Default(),
	})

	first := "Je voudrais un RDV demain 10h"
	postWebhook(t, h, inboundEvent("waha_salon", "33600000000@c.us", first, "ctx1"))
	if len(llm.requests) != 2 {
		t.Fatalf("expected intent + reply calls, got %d", len(llm.requests))
	}
	for pass, req := range llm.requests {
		count := 0
		for _, msg := range req.Messages {
			if msg.Content == first {
				count++
			}
		}
		if count != 1 {
			t.Fatalf("pass %d saw the inbound %d times: %+v", pass, count, req.Messages)
		}
		last := req.Messages[len(req.Messages)-1]
		if last.Role != assistant.ChatRoleUser || last.Content != first {
			t.Fatalf("pass %d must end with the new message, got %+v", pass, last)
		}
	}

	second := "Merci, à demain alors"
	postWebhook(t, h, inboundEvent("waha_salon", "33600000000@c.us", second, "ctx2"))
	if len(llm.requests) != 4 {
		t.Fatalf("expected four calls after two messages, got %d", len(llm.requests))
	}
	reply := llm.requests[3]
	want := []assistant.ChatMessage{
		{Role: assistant.ChatRoleUser, Content: first},
		{Role: assistant.ChatRoleAssistant, Content: "Bonjour ! Quand souhaitez-vous venir ?"},
		{Role: assistant.ChatRoleUser, Content: second},
	}
	if len(reply.Messages) != len(want) {
		t.Fatalf("second reply context = %+v, want %+v", reply.Messages, want)
	}
	for i := range want {
		if reply.Messages[i] != want[i] {
			t.Fatalf("second reply context[%d] = %+v, want %+v", i, reply.Messages[i], want[i])
		}
	}
}

func TestWebhookSendFailureKeepsNoOutboundRow(t *testing.T) {
	tenant := salonTenant()
	store := newMemoryStore()
	responder := &stubResponder{result: assistant.Result{ReplyText: "Bonjour !"}}
	sender := &stubSender{err: errors.New("gateway down")}
	h := newWebhookHandler(t, tenant, store, responder, &stubCreator{}, sender)

	rr := postWebhook(t, h, inboundEvent("waha_salon", "33600000000@c.us", "Bonjour", "f1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("send failure must still answer 200, got %d", rr.Code)
	}
	if len(store.sent()) != 0 {
		t.Fatal("failed send must not record an outbound message")
	}
	if len(store.markedRead) != 0 {
		t.Fatal("failed send must not mark the conversation read")
	}
}

func TestWebhookNoAppointmentWhenNotReady(t *testing.T) {
	tenant := salonTenant()
	store := newMemoryStore()
	responder := &stubResponder{result: assistant.Result{
		ReplyText: "Quelle heure vous arrange ?",
		Appointment: &assistant.AppointmentIntent{
			Detected: true,
			Date:     "2026-09-02",
		},
	}}
	creator := &stubCreator{}
	h := newWebhookHandler(t, tenant, store, responder, creator, &stubSender{})

	postWebhook(t, h, inboundEvent("waha_salon", "33600000000@c.us", "je veux un rdv demain", "p1"))
	if len(creator.created) != 0 {
		t.Fatalf("appointment created without readyToCreate: %+v", creator.created)
	}
}

func TestWebhookBadBodyIs400(t *testing.T) {
	tenant := salonTenant()
	h := newWebhookHandler(t, tenant, newMemoryStore(), &stubResponder{}, &stubCreator{}, &stubSender{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	h.HandleWebhook(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}
