// Package router assembles the HTTP surface: public webhook + health
// endpoints and the JWT-protected dashboard API.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/replygo/whatsapp-ai-platform/internal/appointments"
	"github.com/replygo/whatsapp-ai-platform/internal/conversations"
	httpmiddleware "github.com/replygo/whatsapp-ai-platform/internal/http/middleware"
	"github.com/replygo/whatsapp-ai-platform/internal/messaging"
	"github.com/replygo/whatsapp-ai-platform/internal/tenants"
	"github.com/replygo/whatsapp-ai-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger               *logging.Logger
	TenantsHandler       *tenants.Handler
	ConversationsHandler *conversations.Handler
	AppointmentsHandler  *appointments.Handler
	WebhookHandler       *messaging.WebhookHandler
	SendHandler          *messaging.SendHandler
	BotHandler           *messaging.BotHandler
	MetricsHandler       http.Handler
	DashboardAuthSecret  string
	CORSAllowedOrigins   []string
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (gateway webhook, health, metrics).
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.WebhookHandler != nil {
			public.Post("/webhooks/gateway", cfg.WebhookHandler.HandleWebhook)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.TenantsHandler != nil {
			public.Post("/tenants", cfg.TenantsHandler.CreateTenant)
			public.Get("/sectors", cfg.TenantsHandler.ListSectors)
		}
	})

	// Dashboard API, JWT-protected, scoped to the token's tenant.
	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.DashboardJWT(cfg.DashboardAuthSecret))

		private.Route("/bot", func(br chi.Router) {
			if cfg.BotHandler != nil {
				br.Post("/process", cfg.BotHandler.Process)
			}
		})

		private.Route("/tenants/{email}", func(tr chi.Router) {
			if cfg.TenantsHandler != nil {
				tr.Get("/settings", cfg.TenantsHandler.GetSettings)
				tr.Put("/settings", cfg.TenantsHandler.UpdateSettings)
				tr.Put("/status", cfg.TenantsHandler.UpdateStatus)
				tr.Get("/gateway", cfg.TenantsHandler.GatewayStatus)
				tr.Delete("/", cfg.TenantsHandler.DeleteTenant)
			}
			if cfg.ConversationsHandler != nil {
				tr.Route("/conversations", func(cr chi.Router) {
					cr.Get("/", cfg.ConversationsHandler.ListConversations)
					cr.Get("/{conversationID}/messages", cfg.ConversationsHandler.GetHistory)
					cr.Post("/{conversationID}/archive", cfg.ConversationsHandler.Archive)
					cr.Post("/{conversationID}/unarchive", cfg.ConversationsHandler.Unarchive)
					cr.Put("/{conversationID}/name", cfg.ConversationsHandler.Rename)
					if cfg.SendHandler != nil {
						cr.Post("/{conversationID}/messages", cfg.SendHandler.Send)
					}
				})
			}
			if cfg.AppointmentsHandler != nil {
				tr.Route("/appointments", func(ar chi.Router) {
					ar.Get("/", cfg.AppointmentsHandler.List)
					ar.Post("/", cfg.AppointmentsHandler.Create)
					ar.Put("/{appointmentID}/status", cfg.AppointmentsHandler.UpdateStatus)
					ar.Delete("/{appointmentID}", cfg.AppointmentsHandler.Delete)
				})
			}
		})
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
