package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront/internal/models"

	"gorm.io/gorm"
)

// MemoryStore is an in-memory backing store shared by MockProductRepository
// and MockOrderRepository. Transactions are serialized by txMu and stage their
// writes until commit, so a failed transaction leaves no trace.
type MemoryStore struct {
	txMu sync.Mutex   // held by writers for the whole transaction
	mu   sync.RWMutex // guards the maps and counters

	products map[uint]models.Product
	orders   map[uint]models.Order

	nextProductID uint
	nextOrderID   uint
	nextItemID    uint
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[uint]models.Product),
		orders:   make(map[uint]models.Order),
	}
}

// Products returns a ProductRepository over the store.
func (s *MemoryStore) Products() *MockProductRepository {
	return &MockProductRepository{store: s}
}

// Orders returns an OrderRepository over the store.
func (s *MemoryStore) Orders() *MockOrderRepository {
	return &MockOrderRepository{store: s}
}

// Store wraps the memory repositories in a Store.
func (s *MemoryStore) Store() *Store {
	return &Store{
		Products:   s.Products(),
		Orders:     s.Orders(),
		Transactor: s,
	}
}

// WithinTransaction runs fn with exclusive write access and applies its staged
// writes only when fn succeeds.
func (s *MemoryStore) WithinTransaction(ctx context.Context, fn func(tx Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &memoryTx{
		store:    s,
		products: make(map[uint]models.Product),
		orders:   make(map[uint]models.Order),
	}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range tx.products {
		s.products[id] = p
	}
	for id, o := range tx.orders {
		s.orders[id] = o
	}
	return nil
}

func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}

type memoryTx struct {
	store    *MemoryStore
	products map[uint]models.Product
	orders   map[uint]models.Order
}

func (t *memoryTx) product(id uint) (models.Product, bool) {
	if p, ok := t.products[id]; ok {
		return p, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	p, ok := t.store.products[id]
	return p, ok
}

func (t *memoryTx) order(id uint) (models.Order, bool) {
	if o, ok := t.orders[id]; ok {
		return cloneOrder(o), true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	o, ok := t.store.orders[id]
	return cloneOrder(o), ok
}

func (t *memoryTx) LockProducts(_ context.Context, ids []uint) (map[uint]*models.Product, error) {
	locked := make(map[uint]*models.Product, len(ids))
	for _, id := range ids {
		p, ok := t.product(id)
		if !ok || p.DeletedAt.Valid {
			continue
		}
		locked[id] = &p
	}
	return locked, nil
}

func (t *memoryTx) UpdateProductStocks(_ context.Context, products []*models.Product) error {
	now := time.Now()
	for _, p := range products {
		current, ok := t.product(p.ID)
		if !ok || current.DeletedAt.Valid {
			return fmt.Errorf("product with ID %d for stock update: %w", p.ID, ErrNotFound)
		}
		current.Stock = p.Stock
		current.UpdatedAt = now
		t.products[p.ID] = current
	}
	return nil
}

func (t *memoryTx) RestockProduct(_ context.Context, id uint, quantity int) error {
	p, ok := t.product(id)
	if !ok {
		return fmt.Errorf("product with ID %d for restock: %w", id, ErrNotFound)
	}
	p.Stock += quantity
	p.UpdatedAt = time.Now()
	t.products[id] = p
	return nil
}

func (t *memoryTx) InsertOrder(_ context.Context, order *models.Order) error {
	t.store.mu.Lock()
	t.store.nextOrderID++
	order.ID = t.store.nextOrderID
	for i := range order.Items {
		t.store.nextItemID++
		order.Items[i].ID = t.store.nextItemID
		order.Items[i].OrderID = order.ID
	}
	t.store.mu.Unlock()

	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	t.orders[order.ID] = cloneOrder(*order)
	return nil
}

func (t *memoryTx) LockOrder(_ context.Context, id uint) (*models.Order, error) {
	o, ok := t.order(id)
	if !ok {
		return nil, fmt.Errorf("order with ID %d: %w", id, ErrNotFound)
	}
	return &o, nil
}

func (t *memoryTx) LockOrderForCustomer(_ context.Context, id uint, customerID string) (*models.Order, error) {
	o, ok := t.order(id)
	if !ok || o.CustomerID != customerID {
		return nil, fmt.Errorf("order with ID %d: %w", id, ErrNotFound)
	}
	return &o, nil
}

func (t *memoryTx) UpdateOrderStatus(_ context.Context, id uint, status models.OrderStatus) error {
	o, ok := t.order(id)
	if !ok {
		return fmt.Errorf("order with ID %d for status update: %w", id, ErrNotFound)
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	t.orders[id] = o
	return nil
}

// softDelete marks p deleted the way gorm.DeletedAt does.
func softDelete(p *models.Product) {
	p.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
}
