package product

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ImagePurger removes a product's stored image objects before the rows
// cascade away with the product. Implemented by the image service.
type ImagePurger interface {
	DeleteByProduct(ctx context.Context, productID uuid.UUID) error
}

// Service handles product business logic
type Service struct {
	repo   Repository
	images ImagePurger
}

// NewService creates product service
func NewService(repo Repository, images ImagePurger) *Service {
	return &Service{repo: repo, images: images}
}

// Create creates a new product
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Product, error) {
	now := time.Now()
	product := &Product{
		ID:          uuid.New(),
		Title:       req.Title,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if product.Currency == "" {
		product.Currency = "USD"
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

// GetByID returns a product by ID
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// List returns a page of products with the total count
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Product, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	products, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// Update updates an existing product
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateRequest) (*Product, error) {
	product, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		product.Title = req.Title
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.PriceCents != nil {
		product.PriceCents = *req.PriceCents
	}
	product.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

// Delete removes a product together with its stored images. Storage object
// cleanup is best effort; the rows cascade with the product either way.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if product == nil {
		return ErrProductNotFound
	}

	if s.images != nil {
		_ = s.images.DeleteByProduct(ctx, id)
	}

	return s.repo.Delete(ctx, id)
}
