package image

import (
	"github.com/go-chi/chi/v5"
)

// ProductRoutes returns the router mounted under /products/{productID}/images
func (h *Handler) ProductRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Upload)
	r.Post("/register", h.Register)
	r.Get("/", h.List)

	return r
}

// Routes returns the router mounted under /images
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)

	return r
}
