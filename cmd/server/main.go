package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stellarnodeN/recrusearch/internal/campaign"
	campaignhandler "github.com/stellarnodeN/recrusearch/internal/campaign/handler"
	"github.com/stellarnodeN/recrusearch/internal/envelope"
	"github.com/stellarnodeN/recrusearch/internal/ledger"
	"github.com/stellarnodeN/recrusearch/internal/platform/config"
	"github.com/stellarnodeN/recrusearch/internal/platform/httpserver"
	"github.com/stellarnodeN/recrusearch/internal/platform/logger"
	"github.com/stellarnodeN/recrusearch/internal/platform/metrics"
	"github.com/stellarnodeN/recrusearch/internal/platform/middleware"
	platformredis "github.com/stellarnodeN/recrusearch/internal/platform/redis"
	"github.com/stellarnodeN/recrusearch/internal/storage"
	"github.com/stellarnodeN/recrusearch/internal/submission"
	"github.com/stellarnodeN/recrusearch/internal/submission/handler"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal packages.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	appMetrics := metrics.New(registry)
	storageMetrics := storage.NewMetrics(registry)

	store, err := storage.New(cfg.Storage, log, storageMetrics)
	if err != nil {
		log.Error("storage client construction failed", "error", err)
		os.Exit(1)
	}
	pipeline := envelope.NewPipeline(store)

	ledgerStore, cleanup, err := buildLedger(cfg, log)
	if err != nil {
		log.Error("ledger construction failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	submissionService := submission.NewService(ledgerStore, pipeline, log, appMetrics)
	campaignService := campaign.NewService(ledgerStore, log)
	validator := middleware.NewHMACValidator(cfg.JWTSigningKey)

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	handler.New(submissionService, log, validator).Register(router)
	campaignhandler.New(campaignService, log, validator).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting recrusearch server",
		"addr", cfg.Addr,
		"storage_provider", cfg.Storage.Provider,
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

// ledgerStack pairs a (possibly cached) reader with the write adapters.
type ledgerStack struct {
	ledger.Reader
	ledger.Writer
	ledger.CampaignWriter
}

// buildLedger selects the ledger stack: in-memory for development, postgres
// when configured, with an optional redis snapshot cache in front of reads.
func buildLedger(cfg config.Config, log *slog.Logger) (ledgerStack, func(), error) {
	if cfg.PostgresURL == "" {
		log.Warn("no POSTGRES_URL configured, using in-memory ledger")
		memory := ledger.NewInMemoryStore()
		return ledgerStack{Reader: memory, Writer: memory, CampaignWriter: memory}, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return ledgerStack{}, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return ledgerStack{}, nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := ledger.NewPostgresStore(db)
	if err := store.InitSchema(context.Background()); err != nil {
		_ = db.Close()
		return ledgerStack{}, nil, err
	}

	var reader ledger.Reader = store
	var campaigns ledger.CampaignWriter = store
	cleanup := func() { _ = db.Close() }

	cache, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		_ = db.Close()
		return ledgerStack{}, nil, err
	}
	if cache != nil {
		cached := ledger.NewCachedReader(store, cache.Client, log)
		reader = cached
		campaigns = cached.WrapCampaignWriter(store)
		cleanup = func() {
			_ = cache.Close()
			_ = db.Close()
		}
	}

	return ledgerStack{Reader: reader, Writer: store, CampaignWriter: campaigns}, cleanup, nil
}
