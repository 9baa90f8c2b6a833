package product

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines product data access interface
type Repository interface {
	Create(ctx context.Context, product *Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	List(ctx context.Context, limit, offset int) ([]*Product, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, product *Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates product repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, product *Product) error {
	query := `
		INSERT INTO products (id, title, description, price_cents, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		product.ID,
		product.Title,
		product.Description,
		product.PriceCents,
		product.Currency,
		product.CreatedAt,
		product.UpdatedAt,
	)
	return err
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := `SELECT * FROM products WHERE id = $1`
	var product Product
	err := r.db.GetContext(ctx, &product, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]*Product, error) {
	query := `SELECT * FROM products ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	var products []*Product
	err := r.db.SelectContext(ctx, &products, query, limit, offset)
	return products, err
}

func (r *repository) Count(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM products`
	var count int
	err := r.db.GetContext(ctx, &count, query)
	return count, err
}

func (r *repository) Update(ctx context.Context, product *Product) error {
	query := `
		UPDATE products SET
			title = $2,
			description = $3,
			price_cents = $4,
			currency = $5,
			updated_at = $6
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		product.ID,
		product.Title,
		product.Description,
		product.PriceCents,
		product.Currency,
		product.UpdatedAt,
	)
	return err
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	// image rows cascade via the product_id foreign key
	query := `DELETE FROM products WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
