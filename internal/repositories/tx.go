package repositories

import (
	"context"
	"errors"

	"storefront/internal/models"
)

// ErrNotFound is wrapped by every repository lookup that matches no row.
var ErrNotFound = errors.New("record not found")

// Tx is the set of row-level operations available inside one store transaction.
// Rows returned by the Lock* methods stay locked until the transaction ends.
type Tx interface {
	// LockProducts locks the given product rows. Ids with no live product
	// are absent from the result.
	LockProducts(ctx context.Context, ids []uint) (map[uint]*models.Product, error)
	// UpdateProductStocks writes the Stock field of every product in one statement.
	UpdateProductStocks(ctx context.Context, products []*models.Product) error
	// RestockProduct adds quantity to the product's stock, soft-deleted rows included.
	RestockProduct(ctx context.Context, id uint, quantity int) error
	// InsertOrder inserts the order and its items, assigning ids.
	InsertOrder(ctx context.Context, order *models.Order) error
	LockOrder(ctx context.Context, id uint) (*models.Order, error)
	// LockOrderForCustomer behaves like LockOrder but reports ErrNotFound
	// when the order belongs to someone else.
	LockOrderForCustomer(ctx context.Context, id uint, customerID string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id uint, status models.OrderStatus) error
}

// Transactor opens store transactions.
type Transactor interface {
	// WithinTransaction begins a transaction and hands it to fn. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTransaction(ctx context.Context, fn func(tx Tx) error) error
}
