// Package app wires the search index together: store, query engine,
// normalizer, Kafka consumers, retention sweeper, and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/config"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/event"
	handler "github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/handler/http"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/index"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/normalizer"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/query"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/service"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/health"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/httpclient"
	pkgkafka "github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/kafka"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/tracing"
)

// App wires together all dependencies and runs the search index service.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	catalog    *service.Catalog
	consumers  []*pkgkafka.Consumer
	producer   *pkgkafka.Producer
	dlq        *pkgkafka.DLQProducer
	httpServer *http.Server

	tracingShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Tracing.
	traceCfg := tracing.DefaultConfig("search-index")
	traceCfg.Environment = cfg.Environment
	traceCfg.SampleRate = cfg.TraceSamplePct / 100
	if cfg.OTLPEndpoint != "" {
		traceCfg.OTLPEndpoint = cfg.OTLPEndpoint
		traceCfg.Enabled = true
	}
	tracingShutdown, err := tracing.InitTracer(ctx, traceCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Core components.
	store := index.New(index.Config{
		AllowedSources: cfg.SourceAllowList(),
		MaxRecords:     cfg.MaxRecords,
	})
	logger.Info("index store initialized",
		slog.Int("max_records", cfg.MaxRecords),
		slog.Bool("source_enforcement", cfg.EnforceSources),
	)

	var collector *service.Collector
	if cfg.CollectorURL != "" {
		collector = service.NewCollector(cfg.CollectorURL, httpclient.DefaultConfig(), logger)
		logger.Info("collector client initialized", slog.String("url", cfg.CollectorURL))
	}

	catalog := service.NewCatalog(
		store,
		query.NewEngine(),
		normalizer.New(cfg.DefaultCurrency),
		collector,
		cfg.MaxPerPage,
		logger,
	)

	// Kafka consumers for the ingestion topics, plus the lifecycle producer.
	var consumers []*pkgkafka.Consumer
	var producer *pkgkafka.Producer
	var dlq *pkgkafka.DLQProducer
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		catalog.WithNotifier(event.NewPublisher(producer, logger))

		dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
		eventConsumer := event.NewConsumer(catalog, logger)

		topics := []string{
			event.TopicScraperBatch,
			event.TopicEnrichmentCompleted,
			event.TopicProductRemoved,
		}
		for _, topic := range topics {
			c := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
				Brokers:  cfg.KafkaBrokers,
				GroupID:  cfg.KafkaGroupID,
				Topic:    topic,
				MinBytes: 1,
				MaxBytes: 10e6, // 10 MB
			}, eventConsumer.Handle, logger).WithDLQ(dlq)
			consumers = append(consumers, c)
		}
		logger.Info("kafka consumers initialized",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.String("group", cfg.KafkaGroupID),
			slog.Int("topic_count", len(topics)),
		)
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("index", func(ctx context.Context) error {
		report := catalog.Integrity(ctx)
		if !report.Healthy {
			return fmt.Errorf("index integrity check failed: %d issues", len(report.Issues))
		}
		return nil
	})
	if cfg.KafkaEnabled {
		healthHandler.Register("kafka", func(ctx context.Context) error {
			return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
		})
	}

	// HTTP router.
	router := handler.NewRouter(catalog, healthHandler, handler.RouterConfig{
		Environment:    cfg.Environment,
		AllowedOrigins: cfg.AllowedOrigins,
		EnablePprof:    cfg.PprofEnabled,
		PprofCIDRs:     cfg.PprofCIDRs,
	}, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:             cfg,
		logger:          logger,
		catalog:         catalog,
		consumers:       consumers,
		producer:        producer,
		dlq:             dlq,
		httpServer:      httpServer,
		tracingShutdown: tracingShutdown,
	}, nil
}

// Run starts the HTTP server, Kafka consumers, and the retention sweeper,
// blocking until the context is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	for _, c := range a.consumers {
		c := c
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	go a.runEvictSweeper(ctx)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// runEvictSweeper drops stale products on every tick until the context ends.
func (a *App) runEvictSweeper(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.EvictInterval)
	defer ticker.Stop()

	a.logger.Info("retention sweeper started",
		slog.Duration("interval", a.cfg.EvictInterval),
		slog.Duration("retention", a.cfg.Retention),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.catalog.EvictStale(ctx, a.cfg.Retention)
		}
	}
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.tracingShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracing shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
