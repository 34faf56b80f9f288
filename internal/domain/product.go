package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/errors"
)

// Product is the canonical entity held by the index store. Every scraped
// payload is converted into this shape by the normalizer before it reaches
// the store; past that boundary all fields are strongly typed.
type Product struct {
	Source        string            `json:"source"`
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Slug          string            `json:"slug,omitempty"`
	Description   string            `json:"description,omitempty"`
	Price         float64           `json:"price"`
	OriginalPrice *float64          `json:"original_price,omitempty"`
	Currency      string            `json:"currency"`
	Rating        *float64          `json:"rating,omitempty"`
	ReviewsCount  *int              `json:"reviews_count,omitempty"`
	Category      string            `json:"category,omitempty"`
	Brand         string            `json:"brand,omitempty"`
	Availability  bool              `json:"availability"`
	URL           string            `json:"url,omitempty"`
	Image         string            `json:"image,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`

	// ScrapedAt reflects source-side freshness: when the scraper produced
	// this snapshot. AddedAt and LastUpdated are owned by the index store.
	ScrapedAt   time.Time `json:"scraped_at"`
	AddedAt     time.Time `json:"added_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// Identity is the composite key a product is unique by. The same marketplace
// listing scraped twice maps to the same identity; the same title on two
// marketplaces does not.
type Identity struct {
	Source string `json:"source"`
	ID     string `json:"id"`
}

// Identity returns the product's composite identity.
func (p *Product) Identity() Identity {
	return Identity{Source: p.Source, ID: p.ID}
}

func (id Identity) String() string {
	return id.Source + "/" + id.ID
}

// ValidationError reports every data-model invariant a product or query
// violates, not just the first one. It unwraps to ErrInvalidInput so the
// HTTP layer maps it to a 400 without special-casing.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// Validate checks the product against the data-model invariants. The source
// allow-list is supplied by the caller (the store's configuration); a nil
// list disables allow-list enforcement.
func (p *Product) Validate(allowedSources map[string]struct{}) error {
	var violations []string

	if strings.TrimSpace(p.Source) == "" {
		violations = append(violations, "source must not be empty")
	} else if allowedSources != nil {
		if _, ok := allowedSources[p.Source]; !ok {
			violations = append(violations, fmt.Sprintf("source %q is not in the allow-list", p.Source))
		}
	}
	if strings.TrimSpace(p.ID) == "" {
		violations = append(violations, "id must not be empty")
	}
	if strings.TrimSpace(p.Title) == "" {
		violations = append(violations, "title must not be empty")
	}
	// NaN compares false against everything, so the range checks below would
	// wave a non-finite value through.
	if !isFinite(p.Price) {
		violations = append(violations, fmt.Sprintf("price must be a finite number, got %v", p.Price))
	} else if p.Price < 0 {
		violations = append(violations, fmt.Sprintf("price must not be negative, got %v", p.Price))
	}
	if p.OriginalPrice != nil {
		if !isFinite(*p.OriginalPrice) {
			violations = append(violations, fmt.Sprintf("original_price must be a finite number, got %v", *p.OriginalPrice))
		} else if *p.OriginalPrice < p.Price {
			violations = append(violations, fmt.Sprintf("original_price %v must not be below price %v", *p.OriginalPrice, p.Price))
		}
	}
	if p.Rating != nil && (!isFinite(*p.Rating) || *p.Rating < 0 || *p.Rating > 5) {
		violations = append(violations, fmt.Sprintf("rating must be within [0, 5], got %v", *p.Rating))
	}
	if p.ReviewsCount != nil && *p.ReviewsCount < 0 {
		violations = append(violations, fmt.Sprintf("reviews_count must not be negative, got %d", *p.ReviewsCount))
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Clone returns a deep copy of the product so store snapshots never share
// mutable state with callers.
func (p *Product) Clone() Product {
	out := *p
	if p.OriginalPrice != nil {
		v := *p.OriginalPrice
		out.OriginalPrice = &v
	}
	if p.Rating != nil {
		v := *p.Rating
		out.Rating = &v
	}
	if p.ReviewsCount != nil {
		v := *p.ReviewsCount
		out.ReviewsCount = &v
	}
	if p.Attributes != nil {
		attrs := make(map[string]string, len(p.Attributes))
		for k, v := range p.Attributes {
			attrs[k] = v
		}
		out.Attributes = attrs
	}
	return out
}
