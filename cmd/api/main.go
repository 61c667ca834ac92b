// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/solacrm/backend/internal/actions"
	"github.com/solacrm/backend/internal/calendar"
	"github.com/solacrm/backend/internal/clock"
	"github.com/solacrm/backend/internal/config"
	"github.com/solacrm/backend/internal/convstore"
	"github.com/solacrm/backend/internal/crm"
	"github.com/solacrm/backend/internal/events"
	"github.com/solacrm/backend/internal/extractor"
	"github.com/solacrm/backend/internal/handler"
	"github.com/solacrm/backend/internal/llm"
	"github.com/solacrm/backend/internal/middleware"
	"github.com/solacrm/backend/internal/orchestrator"
	"github.com/solacrm/backend/internal/prompt"
	"github.com/solacrm/backend/internal/retrieval"
	"github.com/solacrm/backend/internal/tenants"
	"github.com/solacrm/backend/internal/tools"
	"github.com/solacrm/backend/internal/websearch"
	"github.com/solacrm/backend/pkg/logger"
	"github.com/solacrm/backend/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "solacrm-ai", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to the database
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Error("failed to connect to database", zap.Error(err))
		os.Exit(1)
	}
	if err := crm.AutoMigrate(db); err != nil {
		log.Error("failed to migrate CRM tables", zap.Error(err))
		os.Exit(1)
	}
	if err := convstore.AutoMigrate(db); err != nil {
		log.Error("failed to migrate conversation tables", zap.Error(err))
		os.Exit(1)
	}
	if err := tenants.AutoMigrate(db); err != nil {
		log.Error("failed to migrate tenant config table", zap.Error(err))
		os.Exit(1)
	}

	// Connect to NATS for audit events. The audit trail is best effort; the
	// assistant still answers when the broker is down.
	eventsClient, err := events.Connect(ctx, events.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Warn("failed to connect to NATS, audit events disabled", zap.Error(err))
		eventsClient = nil
	} else {
		defer eventsClient.Close()
	}

	// Business time policy: a fixed UTC offset, never the server's local zone.
	loc := clock.FixedOffsetZone(cfg.BusinessUTCOffsetMinutes)
	clk := clock.New(loc)

	// Initialize services
	llms := llm.NewFactory(cfg.LLMTimeout)
	crmStore := crm.NewGormStore(db, log)
	conversations := convstore.New(db, convstore.Settings{
		Window:             cfg.MemoryWindow,
		SummarizeThreshold: cfg.SummarizeThreshold,
		KeepMessages:       cfg.MessagesToKeep,
	}, log)
	retriever := retrieval.NewRetriever(
		retrieval.PineconeConfig{
			BaseURL:    cfg.PineconeBaseURL,
			APIVersion: cfg.PineconeAPIVersion,
			Timeout:    cfg.RetrievalTimeout,
		},
		retrieval.Options{TopK: cfg.RetrievalTopK, MinScore: cfg.RetrievalMinScore},
		retrieval.NewOpenAIEmbedder(),
		log,
	)
	webClient := websearch.NewClient(cfg.SearchTimeout, log)
	registry := tools.NewRegistry(crmStore, retriever, webClient, clk, log)
	composer := prompt.NewComposer(clk)

	var calendarProvider calendar.Provider
	if cfg.CalendarBaseURL != "" {
		calendarProvider = calendar.NewHTTPProvider(cfg.CalendarBaseURL, cfg.CalendarTimeout, log)
	}
	executor := actions.NewExecutor(crmStore, calendarProvider, clk, log)

	deps := orchestrator.Deps{
		LLMs:          llms,
		Conversations: conversations,
		CRM:           crmStore,
		Registry:      registry,
		Composer:      composer,
		Retriever:     retriever,
		Executor:      executor,
		Log:           log,
	}
	if eventsClient != nil {
		deps.Events = eventsClient
	}
	portal := orchestrator.NewPortal(deps)
	widget := orchestrator.NewWidget(deps)

	tenantConfigs := tenants.NewStore(db)
	extract := extractor.New(loc, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(eventsClient)
	chatHandler := handler.NewChatHandler(portal, widget, conversations, tenantConfigs, log)
	extractHandler := handler.NewExtractHandler(extract, llms, crmStore, calendarProvider, tenantConfigs, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1/ai", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/portal/chat", chatHandler.PortalChat)
		r.Post("/widget/chat", chatHandler.WidgetChat)
		r.Delete("/conversations/{owner}", chatHandler.ClearConversation)
		r.Post("/transcript/extract", extractHandler.Extract)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
