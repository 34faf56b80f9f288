// Package normalizer is the strict boundary between loosely-typed scraped
// payloads and the canonical Product entity. Scrapers disagree about basic
// things (prices as strings, timestamps as epoch millis or RFC3339), so the
// raw shape is decoded tolerantly here; everything past this package is
// strongly typed.
package normalizer

import (
	"time"

	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/domain"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/slug"
)

// RawProduct is the permissive inbound shape pushed by scrapers and AI
// enrichers. Numeric fields accept both JSON numbers and numeric strings;
// scraped_at accepts RFC3339 or epoch millis.
type RawProduct struct {
	Source        string            `json:"source"`
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Slug          string            `json:"slug,omitempty"`
	Description   string            `json:"description,omitempty"`
	Price         *FlexFloat        `json:"price"`
	OriginalPrice *FlexFloat        `json:"original_price,omitempty"`
	Currency      string            `json:"currency,omitempty"`
	Rating        *FlexFloat        `json:"rating,omitempty"`
	ReviewsCount  *FlexInt          `json:"reviews_count,omitempty"`
	Category      string            `json:"category,omitempty"`
	Brand         string            `json:"brand,omitempty"`
	Availability  *bool             `json:"availability,omitempty"`
	URL           string            `json:"url,omitempty"`
	Image         string            `json:"image,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	ScrapedAt     *FlexTime         `json:"scraped_at,omitempty"`
}

// Normalizer converts raw scraped payloads into canonical products.
type Normalizer struct {
	defaultCurrency string
}

// New creates a normalizer that fills in the given currency when a payload
// carries none.
func New(defaultCurrency string) *Normalizer {
	return &Normalizer{defaultCurrency: defaultCurrency}
}

// Normalize validates the required fields, applies defaults (currency,
// availability, slug), and clamps a future scraped_at to now — a scraper
// with a skewed clock should not be able to blank out its whole batch.
// Identity and invariant validation proper happens at the store; this is
// only the shape conversion.
func (n *Normalizer) Normalize(raw *RawProduct) (domain.Product, error) {
	var violations []string
	if raw.Source == "" {
		violations = append(violations, "source is required")
	}
	if raw.ID == "" {
		violations = append(violations, "id is required")
	}
	if raw.Title == "" {
		violations = append(violations, "title is required")
	}
	if raw.Price == nil {
		violations = append(violations, "price is required")
	}
	if len(violations) > 0 {
		return domain.Product{}, &domain.ValidationError{Violations: violations}
	}

	now := time.Now().UTC()

	p := domain.Product{
		Source:      raw.Source,
		ID:          raw.ID,
		Title:       raw.Title,
		Slug:        raw.Slug,
		Description: raw.Description,
		Price:       float64(*raw.Price),
		Currency:    raw.Currency,
		Category:    raw.Category,
		Brand:       raw.Brand,
		URL:         raw.URL,
		Image:       raw.Image,
		Attributes:  raw.Attributes,
	}

	if raw.OriginalPrice != nil {
		v := float64(*raw.OriginalPrice)
		p.OriginalPrice = &v
	}
	if raw.Rating != nil {
		v := float64(*raw.Rating)
		p.Rating = &v
	}
	if raw.ReviewsCount != nil {
		v := int(*raw.ReviewsCount)
		p.ReviewsCount = &v
	}

	if p.Currency == "" {
		p.Currency = n.defaultCurrency
	}
	if p.Slug == "" {
		p.Slug = slug.Generate(p.Title)
	}

	p.Availability = true
	if raw.Availability != nil {
		p.Availability = *raw.Availability
	}

	p.ScrapedAt = now
	if raw.ScrapedAt != nil {
		ts := time.Time(*raw.ScrapedAt)
		if ts.After(now) {
			ts = now
		}
		if !ts.IsZero() {
			p.ScrapedAt = ts.UTC()
		}
	}

	return p, nil
}
