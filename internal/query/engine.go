package query

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/domain"
)

// minTermLength filters out stop-words and short noise tokens from the
// free-text query.
const minTermLength = 3

// descriptionWeight discounts matches found in the description relative to
// matches in the title.
const descriptionWeight = 0.5

// Engine computes the ranked, filtered candidate set for a search request.
// It is stateless apart from the collator; every call operates on the
// snapshot the caller hands in.
type Engine struct {
	collator *collate.Collator
}

// NewEngine creates a query engine. Title ordering uses case-insensitive
// locale collation so Cyrillic marketplace titles sort correctly.
func NewEngine() *Engine {
	return &Engine{
		collator: collate.New(language.Und, collate.IgnoreCase),
	}
}

// Run validates the query, applies every supplied filter as a conjunction,
// scores candidates against the query text, and orders the survivors. The
// query is rejected before any scan when it carries an unsupported enum
// value. Pagination is the caller's concern.
func (e *Engine) Run(products []domain.Product, q *domain.Query) ([]domain.Product, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	terms := Tokenize(q.Text)

	type candidate struct {
		product domain.Product
		score   float64
	}

	candidates := make([]candidate, 0, len(products))
	for _, p := range products {
		if !matches(&p, &q.Filters) {
			continue
		}
		score := 0.0
		if len(terms) > 0 {
			// Text search is a filter, not just a ranking signal:
			// zero-score candidates are dropped.
			score = relevance(&p, terms)
			if score == 0 {
				continue
			}
		}
		candidates = append(candidates, candidate{product: p, score: score})
	}

	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = domain.SortRelevance
	}
	desc := e.descending(q)

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := &candidates[i], &candidates[j]
		var less, equal bool
		switch sortBy {
		case domain.SortRelevance:
			less, equal = a.score < b.score, a.score == b.score
		case domain.SortPrice:
			less, equal = a.product.Price < b.product.Price, a.product.Price == b.product.Price
		case domain.SortRating:
			ra, rb := ratingOrLowest(&a.product), ratingOrLowest(&b.product)
			less, equal = ra < rb, ra == rb
		case domain.SortDate:
			less = a.product.ScrapedAt.Before(b.product.ScrapedAt)
			equal = a.product.ScrapedAt.Equal(b.product.ScrapedAt)
		case domain.SortTitle:
			cmp := e.collator.CompareString(a.product.Title, b.product.Title)
			less, equal = cmp < 0, cmp == 0
		case domain.SortPopularity:
			pa, pb := reviewsOrLowest(&a.product), reviewsOrLowest(&b.product)
			less, equal = pa < pb, pa == pb
		}
		if !equal {
			if desc {
				return !less
			}
			return less
		}
		// Ties break toward well-reviewed, fresher listings.
		ra, rb := ratingOrLowest(&a.product), ratingOrLowest(&b.product)
		if ra != rb {
			return ra > rb
		}
		return a.product.ScrapedAt.After(b.product.ScrapedAt)
	})

	out := make([]domain.Product, len(candidates))
	for i, c := range candidates {
		out[i] = c.product
	}
	return out, nil
}

// descending resolves the effective sort direction. Relevance and recency
// default to highest-first; everything else defaults to ascending.
func (e *Engine) descending(q *domain.Query) bool {
	if q.SortOrder != "" {
		return q.SortOrder == domain.OrderDesc
	}
	switch q.SortBy {
	case "", domain.SortRelevance, domain.SortDate, domain.SortRating, domain.SortPopularity:
		return true
	default:
		return false
	}
}

// Tokenize splits free text into lowercase search terms, dropping tokens of
// fewer than three characters.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= minTermLength {
			terms = append(terms, f)
		}
	}
	return terms
}

// relevance counts query terms found as substrings of the title, plus a
// smaller weight for matches in the description.
func relevance(p *domain.Product, terms []string) float64 {
	title := strings.ToLower(p.Title)
	desc := strings.ToLower(p.Description)

	score := 0.0
	for _, term := range terms {
		if strings.Contains(title, term) {
			score++
		} else if strings.Contains(desc, term) {
			score += descriptionWeight
		}
	}
	return score
}

// matches checks the product against every supplied filter. A candidate must
// satisfy all of them to remain.
func matches(p *domain.Product, f *domain.Filters) bool {
	if len(f.Sources) > 0 && !containsFold(f.Sources, p.Source) {
		return false
	}
	if len(f.Categories) > 0 && !containsFold(f.Categories, p.Category) {
		return false
	}
	if len(f.Brands) > 0 && !containsFold(f.Brands, p.Brand) {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	if f.MinRating != nil && ratingOrLowest(p) < *f.MinRating {
		return false
	}
	if f.MaxRating != nil && ratingOrLowest(p) > *f.MaxRating {
		return false
	}
	if f.Availability != nil && p.Availability != *f.Availability {
		return false
	}
	if f.ScrapedAfter != nil && p.ScrapedAt.Before(*f.ScrapedAfter) {
		return false
	}
	if f.ScrapedBefore != nil && p.ScrapedAt.After(*f.ScrapedBefore) {
		return false
	}
	for k, want := range f.Attributes {
		if got, ok := p.Attributes[k]; !ok || !strings.EqualFold(got, want) {
			return false
		}
	}
	return true
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

// ratingOrLowest treats a missing rating as below every real rating so sorts
// and range filters never error on optional fields.
func ratingOrLowest(p *domain.Product) float64 {
	if p.Rating == nil {
		return -1
	}
	return *p.Rating
}

func reviewsOrLowest(p *domain.Product) int {
	if p.ReviewsCount == nil {
		return -1
	}
	return *p.ReviewsCount
}
