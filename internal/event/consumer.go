// Package event adapts Kafka ingestion events onto the catalog service. The
// steady-state write path of the index is these events; the HTTP ingestion
// endpoints exist for backfills and operators.
package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/domain"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/normalizer"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/service"
	apperrors "github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/errors"
	pkgkafka "github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/kafka"
)

// Kafka topics consumed by the search index.
const (
	TopicScraperBatch        = "neurosearch.scraper.batch"
	TopicEnrichmentCompleted = "neurosearch.enrichment.completed"
	TopicProductRemoved      = "neurosearch.product.removed"
)

// ScraperBatchData is the payload of a scraper.batch event: one scrape run's
// worth of raw products from a single source.
type ScraperBatchData struct {
	Source   string                  `json:"source"`
	Products []normalizer.RawProduct `json:"products"`
}

// EnrichmentData is the payload of an enrichment.completed event. The AI
// enricher fills in fields the scraper could not extract; absent fields are
// left as they are.
type EnrichmentData struct {
	Source      string            `json:"source"`
	ID          string            `json:"id"`
	Category    *string           `json:"category,omitempty"`
	Brand       *string           `json:"brand,omitempty"`
	Description *string           `json:"description,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// ProductRemovedData is the payload of a product.removed event.
type ProductRemovedData struct {
	Source string `json:"source"`
	ID     string `json:"id"`
}

// Consumer routes ingestion events to the catalog service.
type Consumer struct {
	catalog *service.Catalog
	logger  *slog.Logger
}

// NewConsumer creates an event consumer bound to the given catalog.
func NewConsumer(catalog *service.Catalog, logger *slog.Logger) *Consumer {
	return &Consumer{
		catalog: catalog,
		logger:  logger,
	}
}

// Handle processes a Kafka event based on its type. Unknown event types are
// logged and dropped so a topic shared with newer producers never wedges the
// consumer group.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicScraperBatch:
		return c.handleScraperBatch(ctx, event)
	case TopicEnrichmentCompleted:
		return c.handleEnrichmentCompleted(ctx, event)
	case TopicProductRemoved:
		return c.handleProductRemoved(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

// handleScraperBatch upserts a scraped batch. Per-element failures are part
// of normal operation (scrapers emit junk), so they are logged rather than
// returned; returning an error would retry the whole batch including the
// elements that already succeeded.
func (c *Consumer) handleScraperBatch(ctx context.Context, event *pkgkafka.Event) error {
	var data ScraperBatchData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal scraper.batch data: %w", err)
	}

	// A batch-level source fills in elements that omit their own.
	if data.Source != "" {
		for i := range data.Products {
			if data.Products[i].Source == "" {
				data.Products[i].Source = data.Source
			}
		}
	}

	res := c.catalog.AddProducts(ctx, data.Products)
	c.logger.InfoContext(ctx, "scraper batch processed",
		slog.String("event_id", event.EventID),
		slog.String("source", data.Source),
		slog.Int("added", res.Added),
		slog.Int("updated", res.Updated),
		slog.Int("failed", res.Failed),
	)
	for _, be := range res.Errors {
		c.logger.WarnContext(ctx, "scraper batch element rejected",
			slog.String("event_id", event.EventID),
			slog.String("identity", be.Identity.String()),
			slog.String("reason", be.Reason),
		)
	}
	return nil
}

// handleEnrichmentCompleted applies enriched fields as a partial update. An
// enrichment for a product that has since been evicted or removed is stale,
// not an error worth retrying.
func (c *Consumer) handleEnrichmentCompleted(ctx context.Context, event *pkgkafka.Event) error {
	var data EnrichmentData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal enrichment.completed data: %w", err)
	}

	id := domain.Identity{Source: data.Source, ID: data.ID}
	patch := &service.ProductPatch{
		Category:    data.Category,
		Brand:       data.Brand,
		Description: data.Description,
		Attributes:  data.Attributes,
	}

	if _, err := c.catalog.UpdateProduct(ctx, id, patch); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.logger.WarnContext(ctx, "enrichment for unknown product dropped",
				slog.String("identity", id.String()),
				slog.String("event_id", event.EventID),
			)
			return nil
		}
		return fmt.Errorf("apply enrichment to %s: %w", id, err)
	}

	c.logger.InfoContext(ctx, "enrichment applied", slog.String("identity", id.String()))
	return nil
}

// handleProductRemoved drops a delisted product. Removal is idempotent, so a
// replayed event is a no-op.
func (c *Consumer) handleProductRemoved(ctx context.Context, event *pkgkafka.Event) error {
	var data ProductRemovedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal product.removed data: %w", err)
	}
	if data.Source == "" || data.ID == "" {
		return fmt.Errorf("product.removed event %s missing source or id", event.EventID)
	}

	id := domain.Identity{Source: data.Source, ID: data.ID}
	removed := c.catalog.RemoveProducts(ctx, []domain.Identity{id})

	c.logger.InfoContext(ctx, "product removal processed",
		slog.String("identity", id.String()),
		slog.Bool("was_present", removed > 0),
	)
	return nil
}
