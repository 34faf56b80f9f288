// Package facet computes descriptive aggregates over a candidate set of
// products. Every function here is pure: no mutation, no hidden state, and
// empty input produces zeroed aggregates rather than an error.
package facet

import (
	"math"

	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/domain"
)

// ratingBuckets label the half-open rating intervals [0,1), [1,2), ... with
// [4,5] closed at the top. Products without a rating land in "unrated".
var ratingBuckets = []string{"0-1", "1-2", "2-3", "3-4", "4-5"}

// RatingUnrated is the bucket for products that carry no rating.
const RatingUnrated = "unrated"

// Compute aggregates the given candidate set: counts per source and
// category, price min/max/avg, and the rating distribution.
func Compute(products []domain.Product) *domain.Facets {
	f := &domain.Facets{
		Total:      len(products),
		Sources:    make(map[string]int),
		Categories: make(map[string]int),
		Ratings:    make(map[string]int),
	}
	if len(products) == 0 {
		return f
	}

	var sum float64
	minPrice := math.Inf(1)
	maxPrice := math.Inf(-1)

	for i := range products {
		p := &products[i]

		f.Sources[p.Source]++
		if p.Category != "" {
			f.Categories[p.Category]++
		}
		f.Ratings[ratingBucket(p.Rating)]++

		sum += p.Price
		if p.Price < minPrice {
			minPrice = p.Price
		}
		if p.Price > maxPrice {
			maxPrice = p.Price
		}
	}

	f.Price = domain.PriceStats{
		Min: minPrice,
		Max: maxPrice,
		Avg: sum / float64(len(products)),
	}
	return f
}

func ratingBucket(rating *float64) string {
	if rating == nil {
		return RatingUnrated
	}
	idx := int(*rating)
	if idx >= len(ratingBuckets) {
		idx = len(ratingBuckets) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return ratingBuckets[idx]
}
