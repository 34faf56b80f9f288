// Package service implements the business operations of the search index:
// ingestion, querying, administration, and the reindex flow against the
// collector service.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/domain"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/facet"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/index"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/normalizer"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/query"
	apperrors "github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/errors"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/pagination"
)

// defaultSuggestLimit bounds suggest responses when the caller does not ask
// for a specific count.
const (
	defaultSuggestLimit = 10
	maxSuggestLimit     = 25
)

// Notifier receives index lifecycle notifications: wholesale changes other
// services may want to react to. Implementations own their failure handling;
// the catalog never fails an operation over a notification.
type Notifier interface {
	IndexCleared(ctx context.Context)
	IndexEvicted(ctx context.Context, removed int)
	ReindexCompleted(ctx context.Context, added, updated, failed int)
}

// Catalog ties the normalizer, the index store, and the query engine together
// behind the operations the transport layers expose.
type Catalog struct {
	store      *index.Store
	engine     *query.Engine
	normalizer *normalizer.Normalizer
	collector  *Collector
	notifier   Notifier
	maxPerPage int
	logger     *slog.Logger

	reindexing atomic.Bool
}

// NewCatalog creates the catalog service. collector may be nil when no
// collector URL is configured; Reindex then reports service unavailable.
func NewCatalog(store *index.Store, engine *query.Engine, norm *normalizer.Normalizer, collector *Collector, maxPerPage int, logger *slog.Logger) *Catalog {
	return &Catalog{
		store:      store,
		engine:     engine,
		normalizer: norm,
		collector:  collector,
		maxPerPage: maxPerPage,
		logger:     logger,
	}
}

// WithNotifier attaches a lifecycle notifier. A nil notifier (the default)
// disables notifications.
func (c *Catalog) WithNotifier(n Notifier) *Catalog {
	c.notifier = n
	return c
}

// Search runs the full query pipeline: snapshot, filter and rank, optional
// facets over the matched set, then pagination. Facets always describe the
// whole matched set, not the returned page.
func (c *Catalog) Search(ctx context.Context, q *domain.Query) (*domain.Result, error) {
	start := time.Now()

	params := pagination.Params{Page: q.Page, PerPage: q.PerPage}.Clamp(c.maxPerPage)
	q.Page, q.PerPage = params.Page, params.PerPage

	matched, err := c.engine.Run(c.store.Snapshot(), q)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	total := len(matched)
	pages := total / params.PerPage
	if total%params.PerPage > 0 {
		pages++
	}

	result := &domain.Result{
		Products: pagination.Slice(matched, params),
		Total:    total,
		Page:     params.Page,
		PerPage:  params.PerPage,
		Pages:    pages,
		HasNext:  params.Page*params.PerPage < total,
		HasPrev:  params.Page > 1,
		TookMs:   time.Since(start).Milliseconds(),
	}
	if q.IncludeFacets {
		result.Facets = facet.Compute(matched)
	}

	c.logger.DebugContext(ctx, "search executed",
		slog.String("text", q.Text),
		slog.Int("total", total),
		slog.Int64("took_ms", result.TookMs),
	)
	return result, nil
}

// Suggest returns up to limit distinct product titles matching the given
// prefix, case-insensitively, ordered alphabetically.
func (c *Catalog) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil, apperrors.InvalidInput("suggest prefix must not be empty")
	}
	if limit <= 0 {
		limit = defaultSuggestLimit
	}
	if limit > maxSuggestLimit {
		limit = maxSuggestLimit
	}

	seen := make(map[string]struct{})
	var titles []string
	for _, p := range c.store.Snapshot() {
		lower := strings.ToLower(p.Title)
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		titles = append(titles, p.Title)
	}
	sort.Strings(titles)
	if len(titles) > limit {
		titles = titles[:limit]
	}
	return titles, nil
}

// AddProduct normalizes and upserts a single raw payload. It reports whether
// the product was newly inserted.
func (c *Catalog) AddProduct(ctx context.Context, raw *normalizer.RawProduct) (bool, error) {
	p, err := c.normalizer.Normalize(raw)
	if err != nil {
		return false, fmt.Errorf("add product: %w", err)
	}

	inserted, err := c.store.Upsert(p)
	if err != nil {
		return false, fmt.Errorf("add product: %w", err)
	}

	c.logger.InfoContext(ctx, "product upserted",
		slog.String("identity", p.Identity().String()),
		slog.Bool("inserted", inserted),
	)
	return inserted, nil
}

// AddProducts normalizes and upserts a batch. Invalid elements are reported
// per index; valid elements are always applied.
func (c *Catalog) AddProducts(ctx context.Context, raws []normalizer.RawProduct) index.BatchResult {
	var res index.BatchResult
	for i := range raws {
		raw := &raws[i]
		p, err := c.normalizer.Normalize(raw)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, index.BatchError{
				Index:    i,
				Identity: domain.Identity{Source: raw.Source, ID: raw.ID},
				Reason:   err.Error(),
			})
			continue
		}
		inserted, err := c.store.Upsert(p)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, index.BatchError{
				Index:    i,
				Identity: p.Identity(),
				Reason:   err.Error(),
			})
			continue
		}
		if inserted {
			res.Added++
		} else {
			res.Updated++
		}
	}

	c.logger.InfoContext(ctx, "batch upserted",
		slog.Int("added", res.Added),
		slog.Int("updated", res.Updated),
		slog.Int("failed", res.Failed),
	)
	return res
}

// GetProduct returns the product with the given identity.
func (c *Catalog) GetProduct(ctx context.Context, id domain.Identity) (domain.Product, error) {
	p, ok := c.store.Get(id)
	if !ok {
		return domain.Product{}, apperrors.NotFound("product", id.String())
	}
	return p, nil
}

// ProductPatch carries the updatable fields of a partial update. Nil fields
// are left untouched; a non-nil Attributes replaces the attribute map whole.
type ProductPatch struct {
	Title         *string           `json:"title,omitempty"`
	Description   *string           `json:"description,omitempty"`
	Price         *float64          `json:"price,omitempty"`
	OriginalPrice *float64          `json:"original_price,omitempty"`
	Currency      *string           `json:"currency,omitempty"`
	Rating        *float64          `json:"rating,omitempty"`
	ReviewsCount  *int              `json:"reviews_count,omitempty"`
	Category      *string           `json:"category,omitempty"`
	Brand         *string           `json:"brand,omitempty"`
	Availability  *bool             `json:"availability,omitempty"`
	URL           *string           `json:"url,omitempty"`
	Image         *string           `json:"image,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// UpdateProduct applies a partial update to an existing product. The update
// goes back through Upsert so the data-model invariants hold afterwards too.
func (c *Catalog) UpdateProduct(ctx context.Context, id domain.Identity, patch *ProductPatch) (domain.Product, error) {
	p, ok := c.store.Get(id)
	if !ok {
		return domain.Product{}, apperrors.NotFound("product", id.String())
	}

	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.OriginalPrice != nil {
		p.OriginalPrice = patch.OriginalPrice
	}
	if patch.Currency != nil {
		p.Currency = *patch.Currency
	}
	if patch.Rating != nil {
		p.Rating = patch.Rating
	}
	if patch.ReviewsCount != nil {
		p.ReviewsCount = patch.ReviewsCount
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Brand != nil {
		p.Brand = *patch.Brand
	}
	if patch.Availability != nil {
		p.Availability = *patch.Availability
	}
	if patch.URL != nil {
		p.URL = *patch.URL
	}
	if patch.Image != nil {
		p.Image = *patch.Image
	}
	if patch.Attributes != nil {
		p.Attributes = patch.Attributes
	}

	if _, err := c.store.Upsert(p); err != nil {
		return domain.Product{}, fmt.Errorf("update product %s: %w", id, err)
	}

	// Re-read for the store-owned timestamps. A concurrent remove can win the
	// race against the re-read; report that as not found, never as a zero
	// product.
	updated, ok := c.store.Get(id)
	if !ok {
		return domain.Product{}, apperrors.NotFound("product", id.String())
	}
	c.logger.InfoContext(ctx, "product updated", slog.String("identity", id.String()))
	return updated, nil
}

// RemoveProducts deletes the given identities and returns how many existed.
func (c *Catalog) RemoveProducts(ctx context.Context, ids []domain.Identity) int {
	removed := c.store.Remove(ids)
	c.logger.InfoContext(ctx, "products removed",
		slog.Int("requested", len(ids)),
		slog.Int("removed", removed),
	)
	return removed
}

// Clear empties the whole index.
func (c *Catalog) Clear(ctx context.Context) {
	c.store.Clear()
	c.logger.WarnContext(ctx, "index cleared")
	if c.notifier != nil {
		c.notifier.IndexCleared(ctx)
	}
}

// Stats summarizes the current index contents for the admin surface.
type Stats struct {
	TotalProducts int                `json:"total_products"`
	Sources       map[string]int     `json:"sources"`
	Categories    map[string]int     `json:"categories"`
	Price         domain.PriceStats  `json:"price"`
	Ratings       map[string]int     `json:"ratings"`
	OldestUpdate  *time.Time         `json:"oldest_update,omitempty"`
	NewestUpdate  *time.Time         `json:"newest_update,omitempty"`
}

// Stats aggregates the whole index the same way search facets aggregate a
// candidate set, plus update-recency bounds for staleness monitoring.
func (c *Catalog) Stats(ctx context.Context) *Stats {
	snapshot := c.store.Snapshot()
	f := facet.Compute(snapshot)

	stats := &Stats{
		TotalProducts: f.Total,
		Sources:       f.Sources,
		Categories:    f.Categories,
		Price:         f.Price,
		Ratings:       f.Ratings,
	}
	for i := range snapshot {
		lu := snapshot[i].LastUpdated
		if stats.OldestUpdate == nil || lu.Before(*stats.OldestUpdate) {
			t := lu
			stats.OldestUpdate = &t
		}
		if stats.NewestUpdate == nil || lu.After(*stats.NewestUpdate) {
			t := lu
			stats.NewestUpdate = &t
		}
	}
	return stats
}

// IntegrityReport is the result of re-validating every stored product.
type IntegrityReport struct {
	Healthy  bool     `json:"healthy"`
	Products int      `json:"products"`
	Issues   []string `json:"issues,omitempty"`
}

// maxIntegrityIssues caps the issue list so a corrupted index cannot produce
// an unbounded health payload.
const maxIntegrityIssues = 20

// Integrity re-checks the data-model invariants over the stored products.
// The source allow-list is an ingestion policy, not a storage invariant, so
// it is not re-applied here.
func (c *Catalog) Integrity(ctx context.Context) *IntegrityReport {
	snapshot := c.store.Snapshot()
	report := &IntegrityReport{Healthy: true, Products: len(snapshot)}

	for i := range snapshot {
		p := &snapshot[i]
		if err := p.Validate(nil); err != nil {
			report.Healthy = false
			if len(report.Issues) < maxIntegrityIssues {
				report.Issues = append(report.Issues, fmt.Sprintf("%s: %v", p.Identity(), err))
			}
		}
	}
	return report
}

// Export returns every stored product ordered by identity, so repeated
// exports of the same index are byte-for-byte comparable.
func (c *Catalog) Export(ctx context.Context) []domain.Product {
	snapshot := c.store.Snapshot()
	sort.Slice(snapshot, func(i, j int) bool {
		a, b := snapshot[i].Identity(), snapshot[j].Identity()
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.ID < b.ID
	})
	return snapshot
}

// Import upserts already-canonical products, typically a previous Export.
// Store-owned timestamps are reassigned on the way in.
func (c *Catalog) Import(ctx context.Context, products []domain.Product) index.BatchResult {
	res := c.store.UpsertBatch(products)
	c.logger.InfoContext(ctx, "import completed",
		slog.Int("added", res.Added),
		slog.Int("updated", res.Updated),
		slog.Int("failed", res.Failed),
	)
	return res
}

// EvictStale drops every product not updated within maxAge.
func (c *Catalog) EvictStale(ctx context.Context, maxAge time.Duration) int {
	removed := c.store.EvictStale(maxAge)
	if removed > 0 {
		c.logger.InfoContext(ctx, "stale products evicted",
			slog.Int("removed", removed),
			slog.Duration("max_age", maxAge),
		)
		if c.notifier != nil {
			c.notifier.IndexEvicted(ctx, removed)
		}
	}
	return removed
}

// Reindex pulls the full product set from the collector service page by page
// and upserts everything. Only one reindex may run at a time.
func (c *Catalog) Reindex(ctx context.Context) (*index.BatchResult, error) {
	if c.collector == nil {
		return nil, &apperrors.AppError{
			Code:    "REINDEX_UNAVAILABLE",
			Message: "no collector configured",
			Status:  http.StatusServiceUnavailable,
			Err:     apperrors.ErrServiceUnavail,
		}
	}
	if !c.reindexing.CompareAndSwap(false, true) {
		return nil, apperrors.Conflict("reindex already in progress")
	}
	defer c.reindexing.Store(false)

	var total index.BatchResult
	page := 1
	for {
		raws, totalPages, err := c.collector.FetchProducts(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("fetch products page %d: %w", page, err)
		}
		if len(raws) == 0 {
			break
		}

		res := c.AddProducts(ctx, raws)
		total.Added += res.Added
		total.Updated += res.Updated
		total.Failed += res.Failed
		total.Errors = append(total.Errors, res.Errors...)

		if page >= totalPages {
			break
		}
		page++
	}

	c.logger.InfoContext(ctx, "reindex completed",
		slog.Int("added", total.Added),
		slog.Int("updated", total.Updated),
		slog.Int("failed", total.Failed),
	)
	if c.notifier != nil {
		c.notifier.ReindexCompleted(ctx, total.Added, total.Updated, total.Failed)
	}
	return &total, nil
}

// ReindexInProgress reports whether a reindex is currently running, so the
// HTTP layer can refuse a second one up front instead of spawning a doomed
// background run.
func (c *Catalog) ReindexInProgress() bool {
	return c.reindexing.Load()
}
