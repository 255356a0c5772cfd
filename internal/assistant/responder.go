// Package assistant wraps the language-model collaborators: context building,
// appointment-intent extraction, and reply generation for inbound messages.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/replygo/whatsapp-ai-platform/internal/conversations"
	"github.com/replygo/whatsapp-ai-platform/internal/tenants"
	"github.com/replygo/whatsapp-ai-platform/pkg/logging"
)

var llmTracer = otel.Tracer("replygo.internal.assistant")

const defaultFallbackReply = "Merci pour votre message ! Nous revenons vers vous très vite."

const intentExtractionPrompt = `You analyze one customer message from a WhatsApp business conversation and decide whether it requests an appointment.

Today's date is %s.

Reply with ONLY a JSON object, no prose, no markdown fences:
{"intentDetected": bool, "date": "YYYY-MM-DD or empty", "time": "HH:MM or empty", "service": "requested service or empty", "customerName": "name if stated or empty", "readyToCreate": bool}

Rules:
- Resolve relative dates ("demain", "lundi prochain") against today's date.
- readyToCreate is true ONLY when both date and time are known.
- When unsure, set readyToCreate to false.`

// Result is what one responder turn produces.
type Result struct {
	ReplyText   string
	Appointment *AppointmentIntent
	Fallback    bool
}

var llmLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "replygo",
		Subsystem: "assistant",
		Name:      "llm_latency_seconds",
		Help:      "Latency of LLM completions",
		// Focus on sub-10s buckets with a few higher ones for visibility.
		Buckets: []float64{0.25, 0.5, 1, 2, 3, 4, 5, 6, 8, 10, 15, 20, 30},
	},
	[]string{"pass", "status"},
)

var llmTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "replygo",
		Subsystem: "assistant",
		Name:      "llm_tokens_total",
		Help:      "Tokens used by the LLM",
	},
	[]string{"pass", "type"}, // type: input, output, total
)

var intentDecisionTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "replygo",
		Subsystem: "assistant",
		Name:      "intent_decision_total",
		Help:      "Counts appointment-intent extraction outcomes",
	},
	[]string{"outcome"}, // outcome: ready, detected, none, error
)

func init() {
	prometheus.MustRegister(llmLatency)
	prometheus.MustRegister(llmTokensTotal)
	prometheus.MustRegister(intentDecisionTotal)
}

// Config tunes the responder.
type Config struct {
	HistoryWindow int
	FallbackReply string
	Timeout       time.Duration
}

// Responder turns an inbound customer message into a reply and an
// appointment-intent judgment. Detection runs before reply generation so the
// reply can confirm the booking or ask for the missing fields.
type Responder struct {
	llm           LLMClient
	historyWindow int
	fallbackReply string
	timeout       time.Duration
	logger        *logging.Logger
	now           func() time.Time
}

// NewResponder creates a responder on top of an LLM client.
func NewResponder(llm LLMClient, cfg Config, logger *logging.Logger) *Responder {
	if llm == nil {
		panic("assistant: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	window := cfg.HistoryWindow
	if window <= 0 {
		window = 20
	}
	fallback := strings.TrimSpace(cfg.FallbackReply)
	if fallback == "" {
		fallback = defaultFallbackReply
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &Responder{
		llm:           llm,
		historyWindow: window,
		fallbackReply: fallback,
		timeout:       timeout,
		logger:        logger,
		now:           time.Now,
	}
}

// Respond runs the two passes for one inbound message. It never returns an
// error: when both passes fail the customer still gets the fallback reply and
// Result.Fallback reports it so the caller can log loudly.
func (r *Responder) Respond(ctx context.Context, tenant *tenants.Tenant, history []conversations.Message, inbound string) Result {
	ctx, span := llmTracer.Start(ctx, "assistant.respond")
	defer span.End()
	span.SetAttributes(
		attribute.String("replygo.tenant_id", tenant.ID.String()),
		attribute.String("replygo.sector", tenant.SectorID),
	)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	intent := r.extractIntent(ctx, tenant, history, inbound)

	reply, err := r.generateReply(ctx, tenant, history, inbound, intent)
	if err != nil {
		span.RecordError(err)
		r.logger.Error("reply generation failed, using fallback",
			"error", err, "tenant_id", tenant.ID)
		return Result{ReplyText: r.fallbackReply, Appointment: intent, Fallback: true}
	}
	return Result{ReplyText: reply, Appointment: intent}
}

// extractIntent is the first pass. Failures never propagate; they record the
// outcome and return nil, which downstream reads as "no appointment".
func (r *Responder) extractIntent(ctx context.Context, tenant *tenants.Tenant, history []conversations.Message, inbound string) *AppointmentIntent {
	if !tenant.Sector().SupportsBooking {
		return nil
	}

	start := time.Now()
	resp, err := r.llm.Complete(ctx, LLMRequest{
		System:      []string{fmt.Sprintf(intentExtractionPrompt, r.now().Format("2006-01-02"))},
		Messages:    r.intentMessages(history, inbound),
		MaxTokens:   256,
		Temperature: 0,
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	llmLatency.WithLabelValues("intent", status).Observe(time.Since(start).Seconds())

	if err != nil {
		intentDecisionTotal.WithLabelValues("error").Inc()
		r.logger.Warn("intent extraction failed", "error", err, "tenant_id", tenant.ID)
		return nil
	}
	recordTokens("intent", resp.Usage)

	intent, err := ParseIntent(resp.Text)
	if err != nil {
		intentDecisionTotal.WithLabelValues("error").Inc()
		r.logger.Warn("intent extraction returned unparseable output",
			"error", err, "tenant_id", tenant.ID)
		return nil
	}

	switch {
	case intent.ReadyToCreate:
		intentDecisionTotal.WithLabelValues("ready").Inc()
	case intent.Detected:
		intentDecisionTotal.WithLabelValues("detected").Inc()
	default:
		intentDecisionTotal.WithLabelValues("none").Inc()
		return nil
	}
	return intent
}

func (r *Responder) generateReply(ctx context.Context, tenant *tenants.Tenant, history []conversations.Message, inbound string, intent *AppointmentIntent) (string, error) {
	start := time.Now()
	resp, err := r.llm.Complete(ctx, LLMRequest{
		System:      []string{r.systemPrompt(tenant, intent)},
		Messages:    chatHistory(history, inbound, r.historyWindow),
		MaxTokens:   512,
		Temperature: 0.7,
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	llmLatency.WithLabelValues("reply", status).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	recordTokens("reply", resp.Usage)

	reply := strings.TrimSpace(resp.Text)
	if reply == "" {
		return "", fmt.Errorf("assistant: empty reply from model")
	}
	return reply, nil
}

// systemPrompt assembles the sector prompt, the tenant's own instructions,
// and the business facts the model needs to answer accurately.
func (r *Responder) systemPrompt(tenant *tenants.Tenant, intent *AppointmentIntent) string {
	sector := tenant.Sector()
	var b strings.Builder

	if strings.TrimSpace(tenant.CustomPrompt) != "" {
		b.WriteString(tenant.CustomPrompt)
	} else {
		b.WriteString(sector.SystemPrompt)
	}
	b.WriteString("\n\n")

	b.WriteString("Business facts:\n")
	fmt.Fprintf(&b, "- Name: %s\n", tenant.CompanyName)
	if tenant.Address != "" {
		fmt.Fprintf(&b, "- Address: %s\n", tenant.Address)
	}
	if tenant.Phone != "" {
		fmt.Fprintf(&b, "- Phone: %s\n", tenant.Phone)
	}
	fmt.Fprintf(&b, "- Opening hours: %s\n", tenant.OpeningHours.Describe())
	fmt.Fprintf(&b, "- Today's date: %s\n", r.now().Format("2006-01-02"))

	switch {
	case intent != nil && intent.ReadyToCreate:
		fmt.Fprintf(&b, "\nThe customer is booking an appointment on %s at %s", intent.Date, intent.Time)
		if intent.Service != "" {
			fmt.Fprintf(&b, " for %q", intent.Service)
		}
		b.WriteString(". The booking has been registered as pending. Confirm it warmly and mention the business will validate it.\n")
	case intent != nil && intent.Detected:
		b.WriteString("\nThe customer wants an appointment but some details are missing. Ask for the missing date or time in your reply. Do not invent a slot.\n")
	}

	b.WriteString("\nAnswer in the customer's language. Keep replies short, warm, and suited to WhatsApp.")
	return b.String()
}

// intentMessages keeps the extraction pass cheap: a short recent window plus
// the new message, no system-style padding.
func (r *Responder) intentMessages(history []conversations.Message, inbound string) []ChatMessage {
	window := r.historyWindow
	if window > 6 {
		window = 6
	}
	return chatHistory(history, inbound, window)
}

func chatHistory(history []conversations.Message, inbound string, window int) []ChatMessage {
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	out := make([]ChatMessage, 0, len(history)+1)
	for _, msg := range history {
		content := strings.TrimSpace(msg.Body)
		if content == "" {
			continue
		}
		role := ChatRoleUser
		if msg.Direction == conversations.DirectionSent {
			role = ChatRoleAssistant
		}
		out = append(out, ChatMessage{Role: role, Content: content})
	}
	return append(out, ChatMessage{Role: ChatRoleUser, Content: inbound})
}

func recordTokens(pass string, usage TokenUsage) {
	if usage.TotalTokens == 0 {
		return
	}
	llmTokensTotal.WithLabelValues(pass, "input").Add(float64(usage.InputTokens))
	llmTokensTotal.WithLabelValues(pass, "output").Add(float64(usage.OutputTokens))
	llmTokensTotal.WithLabelValues(pass, "total").Add(float64(usage.TotalTokens))
}
