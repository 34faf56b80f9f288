package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/normalizer"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/httpclient"
)

// collectorPageSize is the per_page used when paging through the collector's
// export endpoint during a reindex.
const collectorPageSize = 500

// Collector is the HTTP client for the collector service, the upstream that
// owns the scraped product corpus. It is only used by the reindex flow; the
// steady-state ingestion path is Kafka.
type Collector struct {
	client  *httpclient.Client
	baseURL string
	logger  *slog.Logger
}

// NewCollector creates a collector client for the given base URL.
func NewCollector(baseURL string, cfg httpclient.Config, logger *slog.Logger) *Collector {
	return &Collector{
		client:  httpclient.New(cfg),
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// exportPage mirrors the paginated envelope the collector's export endpoint
// returns. Elements are kept raw so one malformed entry cannot sink the page.
type exportPage struct {
	Data       []json.RawMessage `json:"data"`
	TotalCount int               `json:"total_count"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
}

// FetchProducts retrieves one page of the collector's product export. It
// returns the decoded raw products and the total number of pages. Malformed
// elements are skipped with a warning rather than failing the page.
func (c *Collector) FetchProducts(ctx context.Context, page int) ([]normalizer.RawProduct, int, error) {
	url := fmt.Sprintf("%s/api/v1/products/export?page=%d&per_page=%d", c.baseURL, page, collectorPageSize)

	resp, err := c.client.Get(ctx, url)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// ParseResponseError preserves structured AppError semantics when the
		// collector returns the standard error envelope.
		return nil, 0, fmt.Errorf("collector returned unexpected status %d: %w",
			resp.StatusCode, httpclient.ParseResponseError(resp, "collector"))
	}

	var envelope exportPage
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, 0, fmt.Errorf("decode collector response: %w", err)
	}

	raws := make([]normalizer.RawProduct, 0, len(envelope.Data))
	for i, msg := range envelope.Data {
		var raw normalizer.RawProduct
		if err := json.Unmarshal(msg, &raw); err != nil {
			c.logger.WarnContext(ctx, "skipping malformed collector product",
				slog.Int("page", page),
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		raws = append(raws, raw)
	}
	return raws, envelope.TotalPages, nil
}
