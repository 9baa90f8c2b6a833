package image

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shoply/shoply-api/internal/pkg/response"
	"github.com/shoply/shoply-api/internal/pkg/storage"
	"github.com/shoply/shoply-api/internal/pkg/validator"
)

const maxUploadBytes = storage.MaxImageSize + 1024*1024 // multipart overhead

// Handler handles image HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates image handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Upload handles POST /products/{productID}/images (multipart form, field "file")
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		response.BadRequest(w, "Invalid product ID")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		response.BadRequest(w, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "Missing file field")
		return
	}
	defer file.Close()

	altText := r.FormValue("alt_text")
	if len(altText) > 160 {
		response.BadRequest(w, "Alt text exceeds 160 characters")
		return
	}

	img, created, err := h.service.Ingest(r.Context(), productID, header.Filename, file, altText)
	if err != nil {
		switch {
		case errors.Is(err, ErrProductNotFound):
			response.NotFound(w, "Product not found")
		case errors.Is(err, storage.ErrEmptyFile),
			errors.Is(err, storage.ErrFileTooLarge),
			errors.Is(err, storage.ErrInvalidMimeType):
			response.BadRequest(w, err.Error())
		default:
			response.InternalError(w)
		}
		return
	}

	resp := NewResponse(img, h.service.CanonicalURL(img))
	if created {
		response.Created(w, resp)
		return
	}
	// deduplicated: the existing record is returned
	response.OK(w, resp)
}

// Register handles POST /products/{productID}/images/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		response.BadRequest(w, "Invalid product ID")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	img, err := h.service.Register(r.Context(), productID, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrProductNotFound):
			response.NotFound(w, "Product not found")
		case errors.Is(err, ErrInvalidSizeVariant):
			response.BadRequest(w, "Invalid size variant")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, NewResponse(img, h.service.CanonicalURL(img)))
}

// List handles GET /products/{productID}/images
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		response.BadRequest(w, "Invalid product ID")
		return
	}

	images, err := h.service.ListByProduct(r.Context(), productID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, images)
}

// Get handles GET /images/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid image ID")
		return
	}

	img, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrImageNotFound) {
			response.NotFound(w, "Image not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, NewResponse(img, h.service.CanonicalURL(img)))
}

// Delete handles DELETE /images/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid image ID")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrImageNotFound) {
			response.NotFound(w, "Image not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.NoContent(w)
}
