package services

import (
	"errors"
	"fmt"

	"storefront/internal/models"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrTransitionRejected = errors.New("order status transition rejected")
	ErrInvalidOrder       = errors.New("invalid order")
)

// InsufficientStockError names the product whose stock could not cover a line.
type InsufficientStockError struct {
	ProductID   uint
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for product %s", e.ProductName)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// TransitionError reports an order whose current status does not allow the
// requested move.
type TransitionError struct {
	OrderID uint
	From    models.OrderStatus
	To      models.OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("Order cannot be %s", e.To)
}

func (e *TransitionError) Unwrap() error { return ErrTransitionRejected }
