package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ProductCache is a read-through cache for single products.
// Implementations must treat a miss as (nil, false, nil).
//
// Generation changes every time a product is invalidated. Set must drop the
// write when the product was invalidated after generation was read, so a
// load that raced a committed write cannot cache what it read.
type ProductCache interface {
	Get(ctx context.Context, id uint) (*models.Product, bool, error)
	Generation(ctx context.Context, id uint) (int64, error)
	Set(ctx context.Context, product *models.Product, generation int64) error
	Invalidate(ctx context.Context, ids ...uint) error
}

type noopCache struct{}

func (noopCache) Get(context.Context, uint) (*models.Product, bool, error) { return nil, false, nil }
func (noopCache) Generation(context.Context, uint) (int64, error)          { return 0, nil }
func (noopCache) Set(context.Context, *models.Product, int64) error        { return nil }
func (noopCache) Invalidate(context.Context, ...uint) error                { return nil }

// ProductService handles business logic related to products.
type ProductService struct {
	repo     repositories.ProductRepository
	cache    ProductCache
	validate *validator.Validate
	loads    singleflight.Group // collapses concurrent cache misses per product
}

// NewProductService creates a new ProductService. A nil cache disables caching.
func NewProductService(repo repositories.ProductRepository, cache ProductCache) *ProductService {
	if cache == nil {
		cache = noopCache{}
	}
	return &ProductService{
		repo:     repo,
		cache:    cache,
		validate: NewValidator(),
	}
}

// GetAllProducts retrieves all products.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.GetAll(ctx)
}

// GetProductByID retrieves a single product by its ID, consulting the cache first.
func (s *ProductService) GetProductByID(ctx context.Context, id uint) (*models.Product, error) {
	if cached, ok, err := s.cache.Get(ctx, id); err != nil {
		log.WithError(err).WithField("product_id", id).Warn("product cache read failed")
	} else if ok {
		return cached, nil
	}

	v, err, _ := s.loads.Do(strconv.FormatUint(uint64(id), 10), func() (interface{}, error) {
		// the load is shared, so one caller giving up must not fail the rest
		loadCtx := context.WithoutCancel(ctx)
		generation, genErr := s.cache.Generation(loadCtx, id)
		product, err := s.repo.GetByID(loadCtx, id)
		if err != nil {
			return nil, err
		}
		if genErr != nil {
			log.WithError(genErr).WithField("product_id", id).Warn("product cache generation read failed")
		} else if err := s.cache.Set(loadCtx, product, generation); err != nil {
			log.WithError(err).WithField("product_id", id).Warn("product cache write failed")
		}
		return product, nil
	})
	if err != nil {
		return nil, productError(err, id)
	}
	// callers sharing a load each get their own copy
	product := *v.(*models.Product)
	return &product, nil
}

// CreateProduct validates and creates a new product.
func (s *ProductService) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := s.validate.Struct(product); err != nil {
		return err
	}
	return s.repo.Create(ctx, product)
}

// UpdateProduct validates and replaces the editable fields of a product.
func (s *ProductService) UpdateProduct(ctx context.Context, product *models.Product) error {
	if err := s.validate.Struct(product); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, product); err != nil {
		return productError(err, product.ID)
	}
	s.invalidate(ctx, product.ID)
	return nil
}

// PatchProduct applies a partial update and validates the merged result.
// Only the fields present in the patch are written back.
func (s *ProductService) PatchProduct(ctx context.Context, id uint, patch models.ProductPatch) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, productError(err, id)
	}
	fields := patch.Fields()
	if len(fields) == 0 {
		return product, nil
	}
	patch.Apply(product)
	if err := s.validate.Struct(product); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateFields(ctx, product, fields); err != nil {
		return nil, productError(err, id)
	}
	s.invalidate(ctx, id)
	return product, nil
}

// DeleteProduct deletes a product by its ID.
func (s *ProductService) DeleteProduct(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return productError(err, id)
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *ProductService) invalidate(ctx context.Context, ids ...uint) {
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		log.WithError(err).WithField("product_ids", ids).Warn("product cache invalidation failed")
	}
}

func productError(err error, id uint) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}
	return err
}
