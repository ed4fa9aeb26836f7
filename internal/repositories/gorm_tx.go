package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMTransactor runs transactions against a GORM database.
type GORMTransactor struct {
	db *gorm.DB
}

// NewGORMTransactor creates a new instance of GORMTransactor.
func NewGORMTransactor(db *gorm.DB) *GORMTransactor {
	return &GORMTransactor{db: db}
}

// WithinTransaction begins a transaction, runs fn and commits, rolling back on
// any error or panic.
func (t *GORMTransactor) WithinTransaction(ctx context.Context, fn func(tx Tx) error) error {
	tx := t.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&gormTx{db: tx}); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			log.WithError(rbErr).Warn("transaction rollback failed")
		}
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type gormTx struct {
	db *gorm.DB
}

func (g *gormTx) forUpdate(ctx context.Context) *gorm.DB {
	// SQLite has no row locks; its dialect drops the clause and the single
	// connection serializes writers instead.
	return g.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

func (g *gormTx) LockProducts(ctx context.Context, ids []uint) (map[uint]*models.Product, error) {
	locked := make(map[uint]*models.Product, len(ids))
	if len(ids) == 0 {
		return locked, nil
	}
	var products []models.Product
	// Ordered by id so concurrent orders acquire row locks in the same sequence.
	if err := g.forUpdate(ctx).Where("id IN ?", ids).Order("id").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	for i := range products {
		locked[products[i].ID] = &products[i]
	}
	return locked, nil
}

func (g *gormTx) UpdateProductStocks(ctx context.Context, products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(products))
	args := make([]interface{}, 0, len(products)*2)
	var expr strings.Builder
	expr.WriteString("CASE id")
	for _, p := range products {
		expr.WriteString(" WHEN ? THEN CAST(? AS INTEGER)")
		args = append(args, p.ID, p.Stock)
		ids = append(ids, p.ID)
	}
	expr.WriteString(" END")

	res := g.db.WithContext(ctx).Model(&models.Product{}).
		Where("id IN ?", ids).
		Update("stock", gorm.Expr(expr.String(), args...))
	if res.Error != nil {
		return fmt.Errorf("failed to update product stock: %w", res.Error)
	}
	if res.RowsAffected != int64(len(ids)) {
		return fmt.Errorf("stock update touched %d of %d products: %w", res.RowsAffected, len(ids), ErrNotFound)
	}
	return nil
}

func (g *gormTx) RestockProduct(ctx context.Context, id uint, quantity int) error {
	res := g.db.WithContext(ctx).Unscoped().Model(&models.Product{}).
		Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", quantity))
	if res.Error != nil {
		return fmt.Errorf("failed to restock product %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %d for restock: %w", id, ErrNotFound)
	}
	return nil
}

func (g *gormTx) InsertOrder(ctx context.Context, order *models.Order) error {
	if err := g.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (g *gormTx) LockOrder(ctx context.Context, id uint) (*models.Order, error) {
	return g.lockOrder(ctx, g.forUpdate(ctx), id)
}

func (g *gormTx) LockOrderForCustomer(ctx context.Context, id uint, customerID string) (*models.Order, error) {
	return g.lockOrder(ctx, g.forUpdate(ctx).Where("customer_id = ?", customerID), id)
}

func (g *gormTx) lockOrder(ctx context.Context, query *gorm.DB, id uint) (*models.Order, error) {
	var order models.Order
	if err := query.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order with ID %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock order %d: %w", id, err)
	}
	if err := g.db.WithContext(ctx).Where("order_id = ?", id).Order("id").Find(&order.Items).Error; err != nil {
		return nil, fmt.Errorf("failed to load items of order %d: %w", id, err)
	}
	return &order, nil
}

func (g *gormTx) UpdateOrderStatus(ctx context.Context, id uint, status models.OrderStatus) error {
	res := g.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update status of order %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order with ID %d for status update: %w", id, ErrNotFound)
	}
	return nil
}
