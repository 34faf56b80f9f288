package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/domain"
	apperrors "github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/errors"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/httputil"
)

// Stats handles GET /api/v1/admin/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.catalog.Stats(r.Context())})
}

// Integrity handles GET /api/v1/admin/health. A 200 means the stored data
// still satisfies every invariant; a 503 surfaces the issue list.
func (h *Handler) Integrity(w http.ResponseWriter, r *http.Request) {
	report := h.catalog.Integrity(r.Context())

	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, httputil.Response{Data: report})
}

// Export handles GET /api/v1/admin/export
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	products := h.catalog.Export(r.Context())
	if products == nil {
		products = []domain.Product{}
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"total":    len(products),
		"products": products,
	}})
}

// ImportRequest is the JSON request body for re-importing an export.
type ImportRequest struct {
	Products []domain.Product `json:"products"`
}

// Import handles POST /api/v1/admin/import
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 50<<20) // exports can be large

	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	res := h.catalog.Import(r.Context(), req.Products)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: res})
}

// Clear handles POST /api/v1/admin/clear
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	h.catalog.Clear(r.Context())
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "cleared"}})
}

// Reindex handles POST /api/v1/admin/reindex. The fetch runs in the
// background; the request context would be gone long before a full reindex
// finishes.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	if h.catalog.ReindexInProgress() {
		httputil.WriteError(w, r, apperrors.Conflict("reindex already in progress"), h.logger)
		return
	}

	go func() {
		ctx := context.Background()
		if _, err := h.catalog.Reindex(ctx); err != nil {
			h.logger.ErrorContext(ctx, "background reindex failed", "error", err)
		}
	}()

	httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{Data: map[string]string{"status": "reindex started"}})
}
