package product

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shoply/shoply-api/internal/pkg/response"
	"github.com/shoply/shoply-api/internal/pkg/validator"
)

// Handler handles product HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates product handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /products
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	product, err := h.service.Create(r.Context(), &req)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.Created(w, product)
}

// Get handles GET /products/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid product ID")
		return
	}

	product, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			response.NotFound(w, "Product not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, product)
}

// List handles GET /products
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	products, total, err := h.service.List(r.Context(), limit, (page-1)*limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	pages := (total + limit - 1) / limit
	response.WithMeta(w, products, response.Meta{
		Total:   total,
		Page:    page,
		Limit:   limit,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	})
}

// Update handles PATCH /products/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid product ID")
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	product, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			response.NotFound(w, "Product not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, product)
}

// Delete handles DELETE /products/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid product ID")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			response.NotFound(w, "Product not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.NoContent(w)
}
