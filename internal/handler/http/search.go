package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/domain"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/service"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/httputil"
)

// Handler serves the HTTP surface of the search index.
type Handler struct {
	catalog *service.Catalog
	logger  *slog.Logger
}

// NewHandler creates the HTTP handler bound to the given catalog.
func NewHandler(catalog *service.Catalog, logger *slog.Logger) *Handler {
	return &Handler{
		catalog: catalog,
		logger:  logger,
	}
}

// attrParamPrefix marks query parameters that filter on product attributes,
// e.g. ?attr.color=black&attr.size=m.
const attrParamPrefix = "attr."

// Search handles GET /api/v1/search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query, ok := h.parseSearchQuery(w, r)
	if !ok {
		return
	}

	result, err := h.catalog.Search(r.Context(), query)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if result.Products == nil {
		result.Products = []domain.Product{}
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Suggest handles GET /api/v1/search/suggest
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSpace(r.URL.Query().Get("q"))
	if prefix == "" {
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"suggestions": []string{}}})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 {
			limit = l
		}
	}

	suggestions, err := h.catalog.Suggest(r.Context(), prefix, limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if suggestions == nil {
		suggestions = []string{}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"suggestions": suggestions}})
}

// parseSearchQuery turns the URL query string into a domain query. On a bad
// parameter it writes the 400 itself and reports !ok.
func (h *Handler) parseSearchQuery(w http.ResponseWriter, r *http.Request) (*domain.Query, bool) {
	params := r.URL.Query()

	query := &domain.Query{
		Text:      strings.TrimSpace(params.Get("q")),
		SortBy:    params.Get("sort"),
		SortOrder: params.Get("order"),
	}

	if v := params.Get("sources"); v != "" {
		query.Filters.Sources = splitList(v)
	}
	if v := params.Get("categories"); v != "" {
		query.Filters.Categories = splitList(v)
	}
	if v := params.Get("brands"); v != "" {
		query.Filters.Brands = splitList(v)
	}

	var ok bool
	if query.Filters.MinPrice, ok = parseFloatParam(w, params.Get("min_price"), "min_price"); !ok {
		return nil, false
	}
	if query.Filters.MaxPrice, ok = parseFloatParam(w, params.Get("max_price"), "max_price"); !ok {
		return nil, false
	}
	if query.Filters.MinRating, ok = parseFloatParam(w, params.Get("min_rating"), "min_rating"); !ok {
		return nil, false
	}
	if query.Filters.MaxRating, ok = parseFloatParam(w, params.Get("max_rating"), "max_rating"); !ok {
		return nil, false
	}

	if v := params.Get("availability"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeInvalidParam(w, "availability must be true or false")
			return nil, false
		}
		query.Filters.Availability = &b
	}

	if query.Filters.ScrapedAfter, ok = parseTimeParam(w, params.Get("scraped_after"), "scraped_after"); !ok {
		return nil, false
	}
	if query.Filters.ScrapedBefore, ok = parseTimeParam(w, params.Get("scraped_before"), "scraped_before"); !ok {
		return nil, false
	}

	for key, values := range params {
		if !strings.HasPrefix(key, attrParamPrefix) || len(values) == 0 {
			continue
		}
		name := strings.TrimPrefix(key, attrParamPrefix)
		if name == "" {
			continue
		}
		if query.Filters.Attributes == nil {
			query.Filters.Attributes = make(map[string]string)
		}
		query.Filters.Attributes[name] = values[0]
	}

	if v := params.Get("page"); v != "" {
		if page, err := strconv.Atoi(v); err == nil && page > 0 {
			query.Page = page
		}
	}
	if v := params.Get("per_page"); v != "" {
		if perPage, err := strconv.Atoi(v); err == nil && perPage > 0 {
			query.PerPage = perPage
		}
	}
	if v := params.Get("facets"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			query.IncludeFacets = b
		}
	}

	return query, true
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseFloatParam(w http.ResponseWriter, v, name string) (*float64, bool) {
	if v == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		writeInvalidParam(w, name+" must be a valid number")
		return nil, false
	}
	if f < 0 {
		writeInvalidParam(w, name+" must not be negative")
		return nil, false
	}
	return &f, true
}

func parseTimeParam(w http.ResponseWriter, v, name string) (*time.Time, bool) {
	if v == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		writeInvalidParam(w, name+" must be an RFC3339 timestamp")
		return nil, false
	}
	return &t, true
}

func writeInvalidParam(w http.ResponseWriter, message string) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: message},
	})
}
