// RIZZO - Multi-tenant WhatsApp bot platform
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ArcanaCorp/RIZZO/internal/api"
	"github.com/ArcanaCorp/RIZZO/internal/bot"
	"github.com/ArcanaCorp/RIZZO/internal/config"
	"github.com/ArcanaCorp/RIZZO/internal/domain"
	"github.com/ArcanaCorp/RIZZO/internal/flow"
	"github.com/ArcanaCorp/RIZZO/internal/journal"
	"github.com/ArcanaCorp/RIZZO/internal/middleware"
	"github.com/ArcanaCorp/RIZZO/internal/store"
	"github.com/ArcanaCorp/RIZZO/internal/transport/gateway"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "data_path", cfg.DataPath)

	// Initialize dependencies.
	repo, err := store.NewFile(cfg.StorePath())
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	slog.Info("Store loaded", "path", cfg.StorePath())

	jrnl, err := journal.NewSQLite(cfg.JournalPath())
	if err != nil {
		slog.Error("Failed to initialize message journal", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := jrnl.Close(); closeErr != nil {
			slog.Error("Failed to close journal", "error", closeErr)
		}
	}()

	// Register conversational flows and publish their metadata.
	flows := flow.NewRegistry()
	flows.Register(flow.DefaultName, flow.Default())
	flows.Register("foodies", flow.Foodies(repo))
	flows.Register("hotel", flow.Hotel(repo))

	flowInfos := []domain.FlowInfo{
		{Name: flow.DefaultName, Description: flow.DefaultDescription},
		{Name: "foodies", Description: flow.FoodiesDescription},
		{Name: "hotel", Description: flow.HotelDescription},
	}
	for _, info := range flowInfos {
		if err := repo.RegisterFlow(context.Background(), info); err != nil {
			slog.Error("Failed to register flow", "flow", info.Name, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("Flows registered", "count", len(flowInfos))

	mgr := bot.NewManager(repo, flows, jrnl, gateway.New, cfg)

	// Sessions persisted by a previous process have no live transport.
	if err := mgr.Reconcile(context.Background()); err != nil {
		slog.Error("Failed to reconcile persisted sessions", "error", err)
		os.Exit(1)
	}

	// Initialize handlers.
	handler := api.NewHandler(repo, mgr, jrnl, cfg)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr.StartReaper(ctx)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mgr.StopAll(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
