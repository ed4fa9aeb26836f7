package handlers

import (
	"errors"
	"fmt"

	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// ErrorHandler renders errors that escape a handler, including Fiber's own
// routing errors, as {"error": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		log.WithError(err).WithField("path", c.Path()).Error("unhandled request error")
	}
	return c.Status(code).JSON(fiber.Map{"error": message})
}

// parseID reads the :id route parameter. Anything but a positive integer is
// treated as a missing resource.
func parseID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusNotFound, "Not found")
	}
	return uint(id), nil
}

func badRequestBody(c *fiber.Ctx, err error) error {
	log.WithError(err).Debug("error parsing request body")
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Invalid request body",
	})
}

func validationFailed(c *fiber.Ctx, validationErrors validator.ValidationErrors) error {
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":  "Validation failed",
		"errors": errorMessages,
	})
}

// serviceError maps a service error onto its HTTP status and body.
func serviceError(c *fiber.Ctx, err error) error {
	var (
		validationErrors validator.ValidationErrors
		stockErr         *services.InsufficientStockError
		transitionErr    *services.TransitionError
	)
	switch {
	case errors.As(err, &validationErrors):
		return validationFailed(c, validationErrors)
	case errors.As(err, &stockErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": stockErr.Error()})
	case errors.As(err, &transitionErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": transitionErr.Error()})
	case errors.Is(err, services.ErrInvalidOrder):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrProductNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Product not found"})
	case errors.Is(err, services.ErrOrderNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Order not found"})
	}
	log.WithError(err).WithFields(log.Fields{
		"method": c.Method(),
		"path":   c.Path(),
	}).Error("request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
}
