package repositories

import (
	"context"
	"fmt"
	"sort"

	"storefront/internal/models"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
type MockOrderRepository struct {
	store *MemoryStore
}

// NewMockOrderRepository creates an order repository over a fresh MemoryStore.
func NewMockOrderRepository() *MockOrderRepository {
	return NewMemoryStore().Orders()
}

// GetAll returns all orders.
func (r *MockOrderRepository) GetAll(_ context.Context) ([]models.Order, error) {
	return r.filter(func(models.Order) bool { return true }), nil
}

// GetAllByCustomer returns the orders owned by customerID.
func (r *MockOrderRepository) GetAllByCustomer(_ context.Context, customerID string) ([]models.Order, error) {
	return r.filter(func(o models.Order) bool { return o.CustomerID == customerID }), nil
}

// GetByID returns an order by its ID.
func (r *MockOrderRepository) GetByID(_ context.Context, id uint) (*models.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	order, ok := r.store.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %d: %w", id, ErrNotFound)
	}
	order = cloneOrder(order)
	return &order, nil
}

// GetByIDForCustomer returns an order only if customerID owns it.
func (r *MockOrderRepository) GetByIDForCustomer(ctx context.Context, id uint, customerID string) (*models.Order, error) {
	order, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, fmt.Errorf("order with ID %d: %w", id, ErrNotFound)
	}
	return order, nil
}

func (r *MockOrderRepository) filter(keep func(models.Order) bool) []models.Order {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	orderList := make([]models.Order, 0, len(r.store.orders))
	for _, order := range r.store.orders {
		if keep(order) {
			orderList = append(orderList, cloneOrder(order))
		}
	}
	sort.Slice(orderList, func(i, j int) bool { return orderList[i].ID < orderList[j].ID })
	return orderList
}
