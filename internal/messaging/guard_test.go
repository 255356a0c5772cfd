package messaging

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/replygo/whatsapp-ai-platform/pkg/logging"
)

func TestFirstDeliveryOncePerID(t *testing.T) {
	g := NewGuard(testRedis(t), 0, 0, logging.Default())
	tenantID := uuid.New()

	if !g.FirstDelivery(context.Background(), tenantID, "msg-1") {
		t.Fatal("first delivery must pass")
	}
	if g.FirstDelivery(context.Background(), tenantID, "msg-1") {
		t.Fatal("second delivery must be flagged as duplicate")
	}
	if !g.FirstDelivery(context.Background(), tenantID, "msg-2") {
		t.Fatal("different id must pass")
	}
	if !g.FirstDelivery(context.Background(), uuid.New(), "msg-1") {
		t.Fatal("same id under another tenant must pass")
	}
}

func TestFirstDeliveryBlankIDPasses(t *testing.T) {
	g := NewGuard(testRedis(t), 0, 0, logging.Default())
	if !g.FirstDelivery(context.Background(), uuid.New(), "") {
		t.Fatal("blank external id must not be deduplicated")
	}
}

func TestClaimConversationExcludesConcurrentTurns(t *testing.T) {
	g := NewGuard(testRedis(t), 0, 0, logging.Default())
	tenantID := uuid.New()

	release, ok := g.ClaimConversation(context.Background(), tenantID, "33600000000")
	if !ok {
		t.Fatal("first claim must succeed")
	}
	if _, ok := g.ClaimConversation(context.Background(), tenantID, "33600000000"); ok {
		t.Fatal("second claim while held must fail")
	}
	release()
	if _, ok := g.ClaimConversation(context.Background(), tenantID, "33600000000"); !ok {
		t.Fatal("claim must be available after release")
	}
}

func TestGuardNilRedisIsOpen(t *testing.T) {
	g := NewGuard(nil, 0, 0, logging.Default())
	if !g.FirstDelivery(context.Background(), uuid.New(), "msg-1") {
		t.Fatal("nil redis must pass deliveries through")
	}
	release, ok := g.ClaimConversation(context.Background(), uuid.New(), "33600000000")
	if !ok {
		t.Fatal("nil redis must grant claims")
	}
	release()
}
