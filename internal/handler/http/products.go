package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/domain"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/normalizer"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/service"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/httputil"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/validator"
)

// BatchRequest is the JSON request body for batch ingestion.
type BatchRequest struct {
	Products []normalizer.RawProduct `json:"products" validate:"required,min=1,max=1000"`
}

// RemoveRequest is the JSON request body for removing products by identity.
type RemoveRequest struct {
	Identities []domain.Identity `json:"identities" validate:"required,min=1,max=1000"`
}

// AddProduct handles POST /api/v1/products
func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var raw normalizer.RawProduct
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	inserted, err := h.catalog.AddProduct(r.Context(), &raw)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	status := http.StatusOK
	outcome := "updated"
	if inserted {
		status = http.StatusCreated
		outcome = "created"
	}
	httputil.WriteJSON(w, status, httputil.Response{Data: map[string]string{
		"identity": domain.Identity{Source: raw.Source, ID: raw.ID}.String(),
		"status":   outcome,
	}})
}

// AddProducts handles POST /api/v1/products/batch
func (h *Handler) AddProducts(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20) // 10MB limit for batch ingestion

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	res := h.catalog.AddProducts(r.Context(), req.Products)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: res})
}

// GetProduct handles GET /api/v1/products/{source}/{id}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := domain.Identity{
		Source: chi.URLParam(r, "source"),
		ID:     chi.URLParam(r, "id"),
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// UpdateProduct handles PATCH /api/v1/products/{source}/{id}
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	id := domain.Identity{
		Source: chi.URLParam(r, "source"),
		ID:     chi.URLParam(r, "id"),
	}

	var patch service.ProductPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	product, err := h.catalog.UpdateProduct(r.Context(), id, &patch)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// RemoveProducts handles DELETE /api/v1/products
func (h *Handler) RemoveProducts(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req RemoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	removed := h.catalog.RemoveProducts(r.Context(), req.Identities)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]int{
		"requested": len(req.Identities),
		"removed":   removed,
	}})
}
