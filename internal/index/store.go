package index

import (
	"fmt"
	"sync"
	"time"

	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/domain"
	apperrors "github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/errors"
)

// Config holds the store's safety bounds and validation settings.
type Config struct {
	// AllowedSources is the marketplace allow-list enforced at ingestion.
	// An empty list disables enforcement.
	AllowedSources []string

	// MaxRecords caps the number of products the store will hold. Inserts
	// beyond the cap fail with a capacity error. Zero means unlimited.
	MaxRecords int
}

// Store is the authoritative in-memory collection of products, keyed by
// (source, id). It is the single owner of product lifetime: callers receive
// copies, never references into the map.
//
// All mutation happens under the write lock, so two concurrent upserts to
// the same identity serialize and the later one wins. Snapshot copies under
// the read lock, which gives queries a consistent view that later writes
// cannot disturb.
type Store struct {
	mu       sync.RWMutex
	products map[domain.Identity]domain.Product

	allowed    map[string]struct{}
	maxRecords int
}

// New creates an empty store with the given configuration.
func New(cfg Config) *Store {
	var allowed map[string]struct{}
	if len(cfg.AllowedSources) > 0 {
		allowed = make(map[string]struct{}, len(cfg.AllowedSources))
		for _, s := range cfg.AllowedSources {
			allowed[s] = struct{}{}
		}
	}

	return &Store{
		products:   make(map[domain.Identity]domain.Product),
		allowed:    allowed,
		maxRecords: cfg.MaxRecords,
	}
}

// Upsert validates the product and inserts or replaces it by identity.
// It returns true when the product was newly inserted, false on update.
// AddedAt is set on first insert and preserved afterwards; LastUpdated is
// refreshed on every call.
func (s *Store) Upsert(p domain.Product) (inserted bool, err error) {
	if err := p.Validate(s.allowed); err != nil {
		upsertsTotal.WithLabelValues(resultRejected).Inc()
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	id := p.Identity()

	existing, ok := s.products[id]
	if ok {
		p.AddedAt = existing.AddedAt
	} else {
		if s.maxRecords > 0 && len(s.products) >= s.maxRecords {
			upsertsTotal.WithLabelValues(resultRejected).Inc()
			return false, apperrors.CapacityExceeded(
				fmt.Sprintf("index is full: %d records (cap %d)", len(s.products), s.maxRecords))
		}
		p.AddedAt = now
	}
	p.LastUpdated = now

	s.products[id] = p.Clone()

	if ok {
		upsertsTotal.WithLabelValues(resultUpdated).Inc()
		return false, nil
	}
	productsGauge.WithLabelValues(p.Source).Inc()
	upsertsTotal.WithLabelValues(resultInserted).Inc()
	return true, nil
}

// BatchError describes one failed element of a batch upsert.
type BatchError struct {
	Index    int             `json:"index"`
	Identity domain.Identity `json:"identity"`
	Reason   string          `json:"reason"`
}

// BatchResult is the per-element outcome report of UpsertBatch. A batch with
// failures is not a hard error; callers must inspect Errors rather than
// assume success.
type BatchResult struct {
	Added   int          `json:"added"`
	Updated int          `json:"updated"`
	Failed  int          `json:"failed"`
	Errors  []BatchError `json:"errors,omitempty"`
}

// UpsertBatch applies Upsert to each element. Scraped batches routinely
// contain malformed entries, so one bad element never sinks the batch:
// valid elements are applied, invalid ones are reported. There is no
// atomicity across elements.
func (s *Store) UpsertBatch(products []domain.Product) BatchResult {
	var res BatchResult
	for i, p := range products {
		inserted, err := s.Upsert(p)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, BatchError{
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
	return res
}

// Remove deletes the given identities and returns how many were actually
// present. Removing a missing identity is not an error.
func (s *Store) Remove(ids []domain.Identity) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			delete(s.products, id)
			productsGauge.WithLabelValues(p.Source).Dec()
			removed++
		}
	}
	return removed
}

// Clear empties the store. Irreversible; used for administrative resets.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.products {
		productsGauge.WithLabelValues(p.Source).Dec()
	}
	s.products = make(map[domain.Identity]domain.Product)
}

// Get returns a copy of the product with the given identity.
func (s *Store) Get(id domain.Identity) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, false
	}
	return p.Clone(), true
}

// Snapshot returns an independent copy of every product currently in the
// store. Each call yields its own snapshot-in-time, so a long query pass
// never observes writes that started after the snapshot was taken. The
// size is bounded by MaxRecords, which Upsert enforces.
func (s *Store) Snapshot() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p.Clone())
	}
	return out
}

// Len returns the current record count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

// EvictStale removes every product whose LastUpdated is older than maxAge
// and returns the count removed. Called by the periodic retention sweeper.
func (s *Store) EvictStale(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0
	for id, p := range s.products {
		if p.LastUpdated.Before(cutoff) {
			delete(s.products, id)
			productsGauge.WithLabelValues(p.Source).Dec()
			removed++
		}
	}
	if removed > 0 {
		evictionsTotal.Add(float64(removed))
	}
	return removed
}
