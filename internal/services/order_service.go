package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/pkg/rabbitmq"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventPublisher delivers order lifecycle events to interested consumers.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event rabbitmq.OrderEvent) error
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orders     repositories.OrderRepository
	transactor repositories.Transactor
	events     EventPublisher
	cache      ProductCache
}

// NewOrderService creates a new OrderService. events and cache may be nil.
func NewOrderService(orders repositories.OrderRepository, transactor repositories.Transactor, events EventPublisher, cache ProductCache) *OrderService {
	if cache == nil {
		cache = noopCache{}
	}
	return &OrderService{
		orders:     orders,
		transactor: transactor,
		events:     events,
		cache:      cache,
	}
}

// ListOrders returns the caller's orders, or every order for staff.
func (s *OrderService) ListOrders(ctx context.Context, user models.User) ([]models.Order, error) {
	if user.IsStaff {
		return s.orders.GetAll(ctx)
	}
	return s.orders.GetAllByCustomer(ctx, user.ID)
}

// GetOrder returns one order visible to the caller. Orders owned by someone
// else are reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, user models.User, id uint) (*models.Order, error) {
	var (
		order *models.Order
		err   error
	)
	if user.IsStaff {
		order, err = s.orders.GetByID(ctx, id)
	} else {
		order, err = s.orders.GetByIDForCustomer(ctx, id, user.ID)
	}
	if err != nil {
		return nil, orderError(err, id)
	}
	return order, nil
}

// CreateOrder validates every line against locked product rows and, only if
// all lines pass, persists the order, its items and the stock deductions in
// one transaction. Lines naming the same product draw on the same running
// stock, so their combined quantity is what gets checked.
func (s *OrderService) CreateOrder(ctx context.Context, user models.User, lines []models.OrderLine) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one product is required", ErrInvalidOrder)
	}
	ids := make([]uint, 0, len(lines))
	seen := make(map[uint]bool, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for product %d must be positive", ErrInvalidOrder, line.ProductID)
		}
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			ids = append(ids, line.ProductID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var order *models.Order
	err := s.transactor.WithinTransaction(ctx, func(tx repositories.Tx) error {
		products, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return err
		}

		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			product, ok := products[line.ProductID]
			if !ok {
				return fmt.Errorf("%w: %d", ErrProductNotFound, line.ProductID)
			}
			if product.Stock < line.Quantity {
				return &InsufficientStockError{
					ProductID:   product.ID,
					ProductName: product.Name,
					Requested:   line.Quantity,
					Available:   product.Stock,
				}
			}
			item := models.OrderItem{
				ProductID: product.ID,
				Quantity:  line.Quantity,
				Price:     product.Price,
			}
			total = total.Add(item.LineTotal())
			items = append(items, item)
			product.Stock -= line.Quantity
		}

		order = &models.Order{
			CustomerID: user.ID,
			TotalPrice: total,
			Status:     models.StatusPending,
			Items:      items,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}

		touched := make([]*models.Product, 0, len(ids))
		for _, id := range ids {
			touched = append(touched, products[id])
		}
		return tx.UpdateProductStocks(ctx, touched)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateProducts(ctx, ids)
	s.publish(ctx, rabbitmq.EventOrderCreated, order)
	return order, nil
}

// CancelOrder moves the caller's pending order to canceled and returns every
// item's quantity to its product's stock.
func (s *OrderService) CancelOrder(ctx context.Context, user models.User, id uint) error {
	var restocked []uint
	order, err := s.transition(ctx, id, models.StatusCanceled,
		func(tx repositories.Tx) (*models.Order, error) {
			return tx.LockOrderForCustomer(ctx, id, user.ID)
		},
		func(tx repositories.Tx, order *models.Order) error {
			quantities := make(map[uint]int, len(order.Items))
			for _, item := range order.Items {
				if _, ok := quantities[item.ProductID]; !ok {
					restocked = append(restocked, item.ProductID)
				}
				quantities[item.ProductID] += item.Quantity
			}
			sort.Slice(restocked, func(i, j int) bool { return restocked[i] < restocked[j] })
			for _, productID := range restocked {
				if err := tx.RestockProduct(ctx, productID, quantities[productID]); err != nil {
					return err
				}
			}
			return nil
		})
	if err != nil {
		return err
	}

	s.invalidateProducts(ctx, restocked)
	s.publish(ctx, rabbitmq.EventOrderCanceled, order)
	return nil
}

// ShipOrder moves a pending order to shipped.
func (s *OrderService) ShipOrder(ctx context.Context, id uint) error {
	order, err := s.transition(ctx, id, models.StatusShipped, func(tx repositories.Tx) (*models.Order, error) {
		return tx.LockOrder(ctx, id)
	}, nil)
	if err != nil {
		return err
	}
	s.publish(ctx, rabbitmq.EventOrderShipped, order)
	return nil
}

// DeliverOrder moves a shipped order to delivered.
func (s *OrderService) DeliverOrder(ctx context.Context, id uint) error {
	order, err := s.transition(ctx, id, models.StatusDelivered, func(tx repositories.Tx) (*models.Order, error) {
		return tx.LockOrder(ctx, id)
	}, nil)
	if err != nil {
		return err
	}
	s.publish(ctx, rabbitmq.EventOrderDelivered, order)
	return nil
}

// transition locks the order, checks that it may move to target, writes the
// new status and runs effect, all in one transaction.
func (s *OrderService) transition(
	ctx context.Context,
	id uint,
	target models.OrderStatus,
	lock func(repositories.Tx) (*models.Order, error),
	effect func(repositories.Tx, *models.Order) error,
) (*models.Order, error) {
	var order *models.Order
	err := s.transactor.WithinTransaction(ctx, func(tx repositories.Tx) error {
		locked, err := lock(tx)
		if err != nil {
			return orderError(err, id)
		}
		if !models.CanTransition(locked.Status, target) {
			return &TransitionError{OrderID: id, From: locked.Status, To: target}
		}
		if err := tx.UpdateOrderStatus(ctx, id, target); err != nil {
			return err
		}
		if effect != nil {
			if err := effect(tx, locked); err != nil {
				return err
			}
		}
		locked.Status = target
		order = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) invalidateProducts(ctx context.Context, ids []uint) {
	if len(ids) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		log.WithError(err).WithField("product_ids", ids).Warn("product cache invalidation failed")
	}
}

// publish runs after commit; a broker failure is logged and never undoes the
// order change.
func (s *OrderService) publish(ctx context.Context, eventType string, order *models.Order) {
	if s.events == nil {
		return
	}
	event := rabbitmq.NewOrderEvent(eventType, order.ID, order.CustomerID, string(order.Status), order.TotalPrice.StringFixed(2))
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Warn("failed to publish order event")
	}
}

func orderError(err error, id uint) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	return err
}
