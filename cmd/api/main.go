package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/replygo/whatsapp-ai-platform/internal/api/router"
	"github.com/replygo/whatsapp-ai-platform/internal/appointments"
	"github.com/replygo/whatsapp-ai-platform/internal/assistant"
	appconfig "github.com/replygo/whatsapp-ai-platform/internal/config"
	"github.com/replygo/whatsapp-ai-platform/internal/conversations"
	"github.com/replygo/whatsapp-ai-platform/internal/gateway"
	"github.com/replygo/whatsapp-ai-platform/internal/messaging"
	"github.com/replygo/whatsapp-ai-platform/internal/notify"
	"github.com/replygo/whatsapp-ai-platform/internal/observability/metrics"
	"github.com/replygo/whatsapp-ai-platform/internal/tenants"
	"github.com/replygo/whatsapp-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting whatsapp-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, dedupe and claims degrade to database backstop", "error", err)
		}
		defer func() { _ = redisClient.Close() }()
	}

	gatewayClient, err := gateway.NewClient(gateway.Config{
		BaseURL: cfg.GatewayBaseURL,
		APIKey:  cfg.GatewayAPIKey,
		Timeout: cfg.GatewayTimeout,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to create gateway client", "error", err)
		os.Exit(1)
	}

	llm := buildLLMClient(ctx, cfg, logger)
	responder := assistant.NewResponder(llm, assistant.Config{
		HistoryWindow: cfg.HistoryWindow,
		FallbackReply: cfg.FallbackReply,
		Timeout:       cfg.LLMTimeout,
	}, logger)

	tenantRepo := tenants.NewRepository(pool)
	conversationStore := conversations.NewStore(pool)
	appointmentRepo := appointments.NewRepository(pool)

	sendgrid := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger)
	var emailSender notify.EmailSender = sendgrid
	if sendgrid == nil {
		logger.Warn("sendgrid not configured, appointment emails are logged only")
		emailSender = notify.NewStubEmailSender(logger)
	}
	notifier := notify.NewService(emailSender, tenantRepo, logger)
	appointmentService := appointments.NewService(appointmentRepo, notifier, logger)

	messagingMetrics := metrics.NewMessagingMetrics(nil)
	guard := messaging.NewGuard(redisClient, cfg.DedupeTTL, cfg.ClaimTTL, logger)

	webhookHandler := messaging.NewWebhookHandler(messaging.WebhookConfig{
		Tenants:       tenantRepo,
		Store:         conversationStore,
		Responder:     responder,
		Appointments:  appointmentService,
		Sender:        gatewayClient,
		Guard:         guard,
		Metrics:       messagingMetrics,
		HistoryWindow: cfg.HistoryWindow,
		Logger:        logger,
	})
	sendHandler := messaging.NewSendHandler(tenantRepo, conversationStore, gatewayClient, messagingMetrics, logger)
	botHandler := messaging.NewBotHandler(tenantRepo, conversationStore, responder, appointmentService, cfg.HistoryWindow, logger)

	routerCfg := &router.Config{
		Logger:               logger,
		TenantsHandler:       tenants.NewHandler(tenantRepo, gatewayClient, logger),
		ConversationsHandler: conversations.NewHandler(conversationStore, tenantRepo, logger),
		AppointmentsHandler:  appointments.NewHandler(appointmentRepo, appointmentService, tenantRepo, logger),
		WebhookHandler:       webhookHandler,
		SendHandler:          sendHandler,
		BotHandler:           botHandler,
		MetricsHandler:       promhttp.Handler(),
		DashboardAuthSecret:  cfg.DashboardJWTSecret,
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	logger.Info("server stopped")
}

// buildLLMClient chains OpenAI and Gemini; whichever is configured first
// becomes primary, the other the automatic fallback.
func buildLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) assistant.LLMClient {
	var primary, fallback assistant.LLMClient

	if cfg.OpenAIAPIKey != "" {
		client, err := assistant.NewOpenAILLMClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		if err != nil {
			logger.Error("failed to create openai client", "error", err)
			os.Exit(1)
		}
		primary = client
	}
	if cfg.GeminiAPIKey != "" {
		client, err := assistant.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("failed to create gemini client", "error", err)
			os.Exit(1)
		}
		if primary == nil {
			primary = client
		} else {
			fallback = client
		}
	}
	if primary == nil {
		logger.Error("no LLM provider configured, set OPENAI_API_KEY or GEMINI_API_KEY")
		os.Exit(1)
	}
	return assistant.NewFallbackLLMClient(primary, fallback, logger)
}
