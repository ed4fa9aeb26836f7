package handlers

import (
	"fmt"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ProductHandler handles HTTP requests for the catalog.
type ProductHandler struct {
	service             *services.ProductService
	authService         *services.AuthService
	allowAnonymousReads bool
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, authService *services.AuthService, allowAnonymousReads bool) *ProductHandler {
	return &ProductHandler{
		service:             service,
		authService:         authService,
		allowAnonymousReads: allowAnonymousReads,
	}
}

// RegisterRoutes registers the product routes. Reads are open to anonymous
// callers when allowed; every mutation requires a staff caller.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	read := middleware.AuthRequired(h.authService)
	if h.allowAnonymousReads {
		read = middleware.OptionalAuth(h.authService)
	}
	authenticated := middleware.AuthRequired(h.authService)
	admin := middleware.AdminRequired()

	productRoutes := router.Group("/products")
	productRoutes.Get("/", read, h.HandleGetProducts)
	productRoutes.Get("/:id", read, h.HandleGetProductByID)
	productRoutes.Post("/", authenticated, admin, h.HandleCreateProduct)
	productRoutes.Put("/:id", authenticated, admin, h.HandleUpdateProduct)
	productRoutes.Patch("/:id", authenticated, admin, h.HandlePatchProduct)
	productRoutes.Delete("/:id", authenticated, admin, h.HandleDeleteProduct)
}

// HandleGetProducts lists every product.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext())
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(products)
}

// HandleGetProductByID returns a single product.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	product, err := h.service.GetProductByID(c.UserContext(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(product)
}

// HandleCreateProduct creates a product.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var product models.Product
	if err := c.BodyParser(&product); err != nil {
		return badRequestBody(c, err)
	}
	if err := h.service.CreateProduct(c.UserContext(), &product); err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct replaces the editable fields of a product.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var product models.Product
	if err := c.BodyParser(&product); err != nil {
		return badRequestBody(c, err)
	}
	product.ID = id
	if err := h.service.UpdateProduct(c.UserContext(), &product); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(product)
}

// HandlePatchProduct updates only the fields present in the body.
func (h *ProductHandler) HandlePatchProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var patch models.ProductPatch
	if err := c.BodyParser(&patch); err != nil {
		return badRequestBody(c, err)
	}
	product, err := h.service.PatchProduct(c.UserContext(), id, patch)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(product)
}

// HandleDeleteProduct deletes a product.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteProduct(c.UserContext(), id); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Product %d deleted successfully", id),
	})
}
