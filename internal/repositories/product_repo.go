package repositories

import (
	"context"

	"storefront/internal/models"
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id uint) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	// UpdateFields writes only the named columns and reloads product.
	UpdateFields(ctx context.Context, product *models.Product, fields []string) error
	Delete(ctx context.Context, id uint) error
}
