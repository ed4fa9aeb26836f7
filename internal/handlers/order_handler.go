package handlers

import (
	"errors"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service     *services.OrderService
	authService *services.AuthService
	validate    *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, authService *services.AuthService) *OrderHandler {
	return &OrderHandler{
		service:     service,
		authService: authService,
		validate:    services.NewValidator(),
	}
}

// RegisterRoutes registers the order routes. Every route needs an
// authenticated caller; ship and deliver also need staff rights, checked
// before the handler runs.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	authenticated := middleware.AuthRequired(h.authService)
	admin := middleware.AdminRequired()

	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", authenticated, h.HandleGetOrders)
	orderRoutes.Post("/", authenticated, h.HandleCreateOrder)
	orderRoutes.Get("/:id", authenticated, h.HandleGetOrderByID)
	orderRoutes.Put("/:id/cancel", authenticated, h.HandleCancelOrder)
	orderRoutes.Put("/:id/ship", authenticated, admin, h.HandleShipOrder)
	orderRoutes.Put("/:id/deliver", authenticated, admin, h.HandleDeliverOrder)
}

func caller(c *fiber.Ctx) (models.User, error) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return models.User{}, fiber.NewError(fiber.StatusUnauthorized, "Authentication credentials were not provided")
	}
	return *user, nil
}

// HandleGetOrders lists the orders visible to the caller.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	user, err := caller(c)
	if err != nil {
		return err
	}
	orders, err := h.service.ListOrders(c.UserContext(), user)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID returns one order visible to the caller.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	user, err := caller(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	order, err := h.service.GetOrder(c.UserContext(), user, id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(order)
}

// HandleCreateOrder creates an order for the caller.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	user, err := caller(c)
	if err != nil {
		return err
	}
	var req models.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequestBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return validationFailed(c, validationErrors)
		}
		return badRequestBody(c, err)
	}

	order, err := h.service.CreateOrder(c.UserContext(), user, req.Products)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleCancelOrder cancels one of the caller's pending orders.
func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	user, err := caller(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.service.CancelOrder(c.UserContext(), user, id); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"status": "Order canceled, items restocked"})
}

// HandleShipOrder ships a pending order.
func (h *OrderHandler) HandleShipOrder(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.service.ShipOrder(c.UserContext(), id); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"status": "Order shipped"})
}

// HandleDeliverOrder marks a shipped order delivered.
func (h *OrderHandler) HandleDeliverOrder(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.service.DeliverOrder(c.UserContext(), id); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"status": "Order delivered"})
}
