// Command preventia-server runs PreventIA's ingestion, analytics and REST
// API surface as a single process: one Scraper Orchestrator run loop per
// request, a background retention sweep, and the read-only Analytics Query
// Layer behind gorilla/mux.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/preventia/preventia-core/internal/analytics"
	"github.com/preventia/preventia-core/internal/api"
	"github.com/preventia/preventia-core/internal/audit"
	"github.com/preventia/preventia-core/internal/compliance"
	"github.com/preventia/preventia-core/internal/config"
	"github.com/preventia/preventia-core/internal/extractor"
	"github.com/preventia/preventia-core/internal/logging"
	"github.com/preventia/preventia-core/internal/nlp"
	"github.com/preventia/preventia-core/internal/orchestrator"
	"github.com/preventia/preventia-core/internal/retention"
	"github.com/preventia/preventia-core/internal/sources"
	"github.com/preventia/preventia-core/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to JSON configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	logging.Init(&logging.Config{
		Level:  cfg.LogLevelValue(),
		Format: cfg.LogFormatValue(),
	})
	logger := logging.Default().WithComponent("preventia-server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, postgres.Config{
		ConnectionString: cfg.Database.URL,
		MaxConnections:   cfg.Database.MaxConnections,
		MigrationsPath:   cfg.Database.MigrationsPath,
	})
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer db.Close()

	auditLog := audit.New(db)

	if err := db.MigrateAndAudit(ctx, auditLog); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	evaluator := compliance.New(compliance.Config{
		UserAgent:       cfg.UserAgent,
		MinRequestDelay: cfg.RequestDelaySeconds,
		RobotsCacheTTL:  time.Duration(cfg.RobotsCacheTTLHours) * time.Hour,
	}, auditLog, db)
	defer evaluator.Close()

	sourceRegistry := sources.New(db, auditLog, cfg.Sources.FullContentOverrideHash)

	extractorConfigs, err := extractor.LoadRegistryConfig(cfg.ExtractorsConfigPath)
	if err != nil {
		log.Fatalf("load extractor configuration: %v", err)
	}
	registry, err := extractor.BuildRegistry(extractorConfigs)
	if err != nil {
		log.Fatalf("build extractor registry: %v", err)
	}

	fetcher, err := orchestrator.NewHTTPFetcher(orchestrator.FetcherConfig{
		UserAgent: cfg.UserAgent,
		Timeout:   30 * time.Second,
	})
	if err != nil {
		log.Fatalf("build fetcher: %v", err)
	}

	nlpProcessor := nlp.New(db, auditLog, nlp.Config{
		PositiveThreshold: cfg.NLP.Sentiment.PositiveThreshold,
		NegativeThreshold: cfg.NLP.Sentiment.NegativeThreshold,
		KeywordTopN:       cfg.NLP.Keywords.TopN,
	})

	searchIndex, err := analytics.OpenOrCreateIndex(cfg.SearchIndexPath)
	if err != nil {
		log.Fatalf("open search index: %v", err)
	}
	defer searchIndex.Close()
	nlpProcessor.SetIndexer(searchIndex)

	nlpQueue := nlp.NewQueue(nlpProcessor, 4, 256)
	defer nlpQueue.Close()

	orch := orchestrator.New(sourceRegistry, db, evaluator, registry, fetcher, nlpQueue, auditLog, orchestrator.Config{
		Workers: cfg.Orchestrator.Workers,
	})

	analyticsSvc := analytics.New(db, searchIndex)

	sweeper := retention.New(db, auditLog, time.Hour)
	sweeper.Start(ctx)
	defer sweeper.Close()

	server := api.NewServer(analyticsSvc, sourceRegistry, evaluator, orch, db, cfg.Retention.DefaultDays)

	httpServer := &http.Server{
		Addr:         cfg.APIAddr,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("graceful shutdown failed: %v", err)
		}
	}()

	logger.WithField("addr", cfg.APIAddr).Info("preventia-server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}
