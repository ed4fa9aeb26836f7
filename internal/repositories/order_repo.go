package repositories

import (
	"context"

	"storefront/internal/models"
)

// OrderRepository defines the read side of order data access.
// Orders are only written inside a Tx.
type OrderRepository interface {
	GetAll(ctx context.Context) ([]models.Order, error)
	GetAllByCustomer(ctx context.Context, customerID string) ([]models.Order, error)
	GetByID(ctx context.Context, id uint) (*models.Order, error)
	GetByIDForCustomer(ctx context.Context, id uint, customerID string) (*models.Order, error)
}
