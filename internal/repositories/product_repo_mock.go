package repositories

import (
	"context"
	"fmt"
	"sort"
	"time"

	"storefront/internal/models"
)

// MockProductRepository is an in-memory implementation of ProductRepository.
type MockProductRepository struct {
	store *MemoryStore
}

// NewMockProductRepository creates a product repository over a fresh MemoryStore.
func NewMockProductRepository() *MockProductRepository {
	return NewMemoryStore().Products()
}

// GetAll returns all live products ordered by ID.
func (r *MockProductRepository) GetAll(_ context.Context) ([]models.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	productList := make([]models.Product, 0, len(r.store.products))
	for _, p := range r.store.products {
		if p.DeletedAt.Valid {
			continue
		}
		productList = append(productList, p)
	}
	sort.Slice(productList, func(i, j int) bool { return productList[i].ID < productList[j].ID })
	return productList, nil
}

// GetByID returns a product by its ID.
func (r *MockProductRepository) GetByID(_ context.Context, id uint) (*models.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	product, ok := r.store.products[id]
	if !ok || product.DeletedAt.Valid {
		return nil, fmt.Errorf("product with ID %d: %w", id, ErrNotFound)
	}
	return &product, nil
}

// Create adds a new product.
func (r *MockProductRepository) Create(_ context.Context, product *models.Product) error {
	r.store.txMu.Lock()
	defer r.store.txMu.Unlock()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.nextProductID++
	product.ID = r.store.nextProductID
	product.CreatedAt = time.Now()
	product.UpdatedAt = product.CreatedAt
	r.store.products[product.ID] = *product
	return nil
}

// Update modifies an existing product.
func (r *MockProductRepository) Update(ctx context.Context, product *models.Product) error {
	return r.UpdateFields(ctx, product, editableFields)
}

// UpdateFields copies only the named fields. Writers wait for in-flight
// transactions, as a row lock would make them.
func (r *MockProductRepository) UpdateFields(_ context.Context, product *models.Product, fields []string) error {
	r.store.txMu.Lock()
	defer r.store.txMu.Unlock()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.products[product.ID]
	if !ok || existing.DeletedAt.Valid {
		return fmt.Errorf("product with ID %d for update: %w", product.ID, ErrNotFound)
	}
	for _, field := range fields {
		switch field {
		case "name":
			existing.Name = product.Name
		case "description":
			existing.Description = product.Description
		case "price":
			existing.Price = product.Price
		case "stock":
			existing.Stock = product.Stock
		default:
			return fmt.Errorf("unknown product field %q", field)
		}
	}
	existing.UpdatedAt = time.Now()
	r.store.products[product.ID] = existing
	*product = existing
	return nil
}

// Delete soft-deletes a product by its ID.
func (r *MockProductRepository) Delete(_ context.Context, id uint) error {
	r.store.txMu.Lock()
	defer r.store.txMu.Unlock()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	product, ok := r.store.products[id]
	if !ok || product.DeletedAt.Valid {
		return fmt.Errorf("product with ID %d for deletion: %w", id, ErrNotFound)
	}
	softDelete(&product)
	r.store.products[id] = product
	return nil
}
