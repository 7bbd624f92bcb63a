package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"blog-lab/domain"
	"blog-lab/errors"
	"blog-lab/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

type FeatureHandler struct {
	features services.IFeatureRequestService
}

func NewFeatureHandler(features services.IFeatureRequestService) *FeatureHandler {
	return &FeatureHandler{features: features}
}

func (h *FeatureHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Submit)
	r.Get("/", h.List)
	r.Post("/{id}/triage", h.Triage)
	return r
}

type featureRequestBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (h *FeatureHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req featureRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err))
		return
	}

	fr, err := h.features.Submit(r.Context(), IdentityFrom(r.Context()),
		services.FeatureRequestInput{Title: req.Title, Description: req.Description})
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, fr)
}

func (h *FeatureHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, cursor := pageParams(r)
	requests, next, err := h.features.List(r.Context(), IdentityFrom(r.Context()), limit, cursor)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, pageResponse[domain.FeatureRequest]{Items: requests, Cursor: next})
}

type triageRequest struct {
	Status   domain.FeatureRequestStatus `json:"status"`
	Priority int                         `json:"priority"`
}

func (h *FeatureHandler) Triage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, fmt.Errorf("%w: invalid feature request id", errors.ErrInvalidInput))
		return
	}
	var req triageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err))
		return
	}

	fr, err := h.features.Triage(r.Context(), IdentityFrom(r.Context()), id, req.Status, req.Priority)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, fr)
}
