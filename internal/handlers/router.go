package handlers

import (
	"time"

	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Options configures the HTTP surface.
type Options struct {
	APIPrefix           string
	AllowAnonymousReads bool
	AccessLog           bool
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
}

// NewApp builds the Fiber app with every route registered.
func NewApp(opts Options, productService *services.ProductService, orderService *services.OrderService, authService *services.AuthService) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          ErrorHandler,
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	api := app.Group(opts.APIPrefix)
	NewAuthHandler(authService).RegisterRoutes(api)
	NewProductHandler(productService, authService, opts.AllowAnonymousReads).RegisterRoutes(api)
	NewOrderHandler(orderService, authService).RegisterRoutes(api)

	return app
}
