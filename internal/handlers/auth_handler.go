package handlers

import (
	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// AuthHandler exposes the caller's own identity. Accounts and logins are
// handled by whoever issues the tokens.
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth", middleware.AuthRequired(h.authService))
	authRoutes.Get("/me", h.HandleMe)
	authRoutes.Post("/refresh", h.HandleRefresh)
}

// HandleMe returns the identity carried by the bearer token.
func (h *AuthHandler) HandleMe(c *fiber.Ctx) error {
	user, err := caller(c)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// HandleRefresh issues a fresh token for the same identity.
func (h *AuthHandler) HandleRefresh(c *fiber.Ctx) error {
	user, err := caller(c)
	if err != nil {
		return err
	}
	token, err := h.authService.IssueToken(user)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("error refreshing token")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not issue token"})
	}
	return c.JSON(fiber.Map{"token": token})
}
