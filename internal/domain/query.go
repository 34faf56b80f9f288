package domain

import (
	"fmt"
	"time"
)

// Sort fields for search results.
const (
	SortRelevance  = "relevance"
	SortPrice      = "price"
	SortRating     = "rating"
	SortDate       = "date"
	SortTitle      = "title"
	SortPopularity = "popularity"
)

// Sort orders.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// ValidSortFields returns the list of valid sort fields.
func ValidSortFields() []string {
	return []string{SortRelevance, SortPrice, SortRating, SortDate, SortTitle, SortPopularity}
}

// IsValidSort checks whether the given field is a valid sort field.
func IsValidSort(field string) bool {
	for _, s := range ValidSortFields() {
		if s == field {
			return true
		}
	}
	return false
}

// IsValidOrder checks whether the given order is asc or desc.
func IsValidOrder(order string) bool {
	return order == OrderAsc || order == OrderDesc
}

// Filters holds the structured constraints of a search request. All supplied
// filters apply as a conjunction: a product must satisfy every one of them.
type Filters struct {
	Sources       []string          `json:"sources,omitempty"`
	Categories    []string          `json:"categories,omitempty"`
	Brands        []string          `json:"brands,omitempty"`
	MinPrice      *float64          `json:"min_price,omitempty"`
	MaxPrice      *float64          `json:"max_price,omitempty"`
	MinRating     *float64          `json:"min_rating,omitempty"`
	MaxRating     *float64          `json:"max_rating,omitempty"`
	Availability  *bool             `json:"availability,omitempty"`
	ScrapedAfter  *time.Time        `json:"scraped_after,omitempty"`
	ScrapedBefore *time.Time        `json:"scraped_before,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// Query holds all parameters for a search request.
type Query struct {
	Text          string  `json:"text"`
	Filters       Filters `json:"filters"`
	SortBy        string  `json:"sort_by"`
	SortOrder     string  `json:"sort_order"`
	Page          int     `json:"page"`
	PerPage       int     `json:"per_page"`
	IncludeFacets bool    `json:"include_facets"`
}

// Validate rejects unsupported enum values before any scan happens. A
// malformed query never produces partial results.
func (q *Query) Validate() error {
	var violations []string
	if q.SortBy != "" && !IsValidSort(q.SortBy) {
		violations = append(violations, fmt.Sprintf("sort_by must be one of %v, got %q", ValidSortFields(), q.SortBy))
	}
	if q.SortOrder != "" && !IsValidOrder(q.SortOrder) {
		violations = append(violations, fmt.Sprintf("sort_order must be asc or desc, got %q", q.SortOrder))
	}
	if q.Filters.MinPrice != nil && q.Filters.MaxPrice != nil && *q.Filters.MinPrice > *q.Filters.MaxPrice {
		violations = append(violations, "min_price must not exceed max_price")
	}
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// PriceStats summarizes prices over a candidate set.
type PriceStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// Facets holds descriptive aggregates over a candidate set.
type Facets struct {
	Total      int            `json:"total"`
	Sources    map[string]int `json:"sources"`
	Categories map[string]int `json:"categories"`
	Price      PriceStats     `json:"price"`
	Ratings    map[string]int `json:"ratings"`
}

// Result holds the paginated search response.
type Result struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PerPage  int       `json:"per_page"`
	Pages    int       `json:"pages"`
	HasNext  bool      `json:"has_next"`
	HasPrev  bool      `json:"has_prev"`
	Facets   *Facets   `json:"facets,omitempty"`
	TookMs   int64     `json:"took_ms"`
}
