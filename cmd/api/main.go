package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwebster45206/campaign-engine/internal/config"
	"github.com/jwebster45206/campaign-engine/internal/handlers"
	"github.com/jwebster45206/campaign-engine/internal/logger"
	"github.com/jwebster45206/campaign-engine/internal/middleware"
	"github.com/jwebster45206/campaign-engine/internal/services"
	"github.com/jwebster45206/campaign-engine/internal/services/journal"
	internalstorage "github.com/jwebster45206/campaign-engine/internal/storage"
	"github.com/jwebster45206/campaign-engine/pkg/storage"
	"github.com/jwebster45206/campaign-engine/pkg/system"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Campaign Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"storage_backend", cfg.StorageBackend,
		"system_template", cfg.SystemTemplate)

	tmpl, err := system.Get(cfg.SystemTemplate)
	if err != nil {
		log.Error("Failed to load system template", "error", err, "template", cfg.SystemTemplate)
		os.Exit(1)
	}

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	store, j, err := openStorage(storageCtx, cfg, log)
	if err != nil {
		log.Error("Failed to connect to storage", "error", err, "backend", cfg.StorageBackend)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully", "journal_enabled", j != nil)

	// A nil *journal.Journal must stay a nil interface.
	var campaignJournal services.Journal
	if j != nil {
		campaignJournal = j
	}
	campaignService := services.NewCampaignService(store, tmpl, campaignJournal, log)

	mux := http.NewServeMux()

	checks := []handlers.HealthCheck{{Name: "storage", Ping: store.Ping}}
	if j != nil {
		checks = append(checks, handlers.HealthCheck{Name: "journal", Ping: j.Ping})
	}
	mux.Handle("/health", handlers.NewHealthHandler(cfg.StorageBackend, log, checks...))

	campaignHandler := handlers.NewCampaignHandler(campaignService, log)
	mux.Handle("/v1/campaigns", campaignHandler)
	mux.Handle("/v1/campaigns/", campaignHandler)

	templateHandler := handlers.NewTemplateHandler(log)
	mux.Handle("/v1/templates", templateHandler)
	mux.Handle("/v1/templates/", templateHandler)

	if j != nil {
		mux.Handle("/v1/events/campaigns/", handlers.NewEventsHandler(campaignService, j, log))
	}

	mux.Handle("/metrics", promhttp.Handler())

	handler := middleware.Logger(mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}

// openStorage builds the configured blob backend behind the document codec.
// The journal and its event stream are only available on Redis.
func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Storage, *journal.Journal, error) {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		rs, err := internalstorage.NewRedisStorage(cfg.RedisURL, log)
		if err != nil {
			return nil, nil, err
		}
		if err := rs.WaitForConnection(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, err
		}
		var j *journal.Journal
		if cfg.JournalEnabled {
			j = journal.NewJournal(rs.Client(), cfg.JournalLimit, log)
		}
		return storage.NewDocumentStore(rs, log), j, nil

	case config.BackendSQLite:
		ss, err := internalstorage.OpenSQLite(cfg.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		if cfg.JournalEnabled {
			log.Warn("Journal requires the redis backend; running without it")
		}
		return storage.NewDocumentStore(ss, log), nil, nil

	case config.BackendMemory:
		log.Warn("Using in-memory storage; campaigns are lost on restart")
		return storage.NewDocumentStore(storage.NewMemoryBlobs(), log), nil, nil
	}
	return nil, nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
}
