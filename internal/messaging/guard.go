package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/replygo/whatsapp-ai-platform/pkg/logging"
)

const (
	defaultDedupeTTL = 24 * time.Hour
	defaultClaimTTL  = 60 * time.Second
)

// Guard provides the two Redis gates on the inbound pipeline: dedupe by the
// gateway's message id, and a per-conversation claim so two deliveries for
// the same customer never run concurrent AI turns.
//
// A nil Redis client disables both gates; the database's partial unique index
// on external message ids still backstops dedupe.
type Guard struct {
	redis     *redis.Client
	dedupeTTL time.Duration
	claimTTL  time.Duration
	logger    *logging.Logger
}

// NewGuard creates a guard. client may be nil.
func NewGuard(client *redis.Client, dedupeTTL, claimTTL time.Duration, logger *logging.Logger) *Guard {
	if dedupeTTL <= 0 {
		dedupeTTL = defaultDedupeTTL
	}
	if claimTTL <= 0 {
		claimTTL = defaultClaimTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Guard{redis: client, dedupeTTL: dedupeTTL, claimTTL: claimTTL, logger: logger}
}

// FirstDelivery reports whether this external message id has not been seen
// within the dedupe window. Redis errors fail open with a warning; blocking
// inbound traffic on a cache outage is worse than a rare duplicate.
func (g *Guard) FirstDelivery(ctx context.Context, tenantID uuid.UUID, externalID string) bool {
	if g.redis == nil || externalID == "" {
		return true
	}
	key := fmt.Sprintf("dedupe:%s:%s", tenantID, externalID)
	ok, err := g.redis.SetNX(ctx, key, 1, g.dedupeTTL).Result()
	if err != nil {
		g.logger.Warn("dedupe check failed, letting message through",
			"error", err, "tenant_id", tenantID, "external_id", externalID)
		return true
	}
	return ok
}

// ClaimConversation takes the per-conversation lock. The returned release
// func is safe to call on every path; it only deletes the key this claim set.
func (g *Guard) ClaimConversation(ctx context.Context, tenantID uuid.UUID, phone string) (release func(), ok bool) {
	noop := func() {}
	if g.redis == nil {
		return noop, true
	}
	key := fmt.Sprintf("claim:%s:%s", tenantID, phone)
	token := uuid.NewString()
	acquired, err := g.redis.SetNX(ctx, key, token, g.claimTTL).Result()
	if err != nil {
		g.logger.Warn("conversation claim failed, proceeding unclaimed",
			"error", err, "tenant_id", tenantID, "customer_phone", phone)
		return noop, true
	}
	if !acquired {
		return noop, false
	}
	return func() {
		// Release only if we still hold the claim.
		const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		if err := g.redis.Eval(context.Background(), script, []string{key}, token).Err(); err != nil && err != redis.Nil {
			g.logger.Warn("conversation claim release failed", "error", err, "key", key)
		}
	}, true
}
