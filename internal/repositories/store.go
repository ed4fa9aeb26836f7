package repositories

import (
	"fmt"

	"storefront/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported values for the DB_DRIVER setting.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Store bundles the repositories and transactor of one backing store.
type Store struct {
	Products   ProductRepository
	Orders     OrderRepository
	Transactor Transactor

	db *gorm.DB
}

// NewGORMStore wires the GORM repositories around db.
func NewGORMStore(db *gorm.DB) *Store {
	return &Store{
		Products:   NewGORMProductRepository(db),
		Orders:     NewGORMOrderRepository(db),
		Transactor: NewGORMTransactor(db),
		db:         db,
	}
}

// Open connects to the store selected by driver.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverMemory:
		return NewMemoryStore().Store(), nil
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
		}
		// One connection: every transaction is serialized against the file.
		sqlDB.SetMaxOpenConns(1)
	}
	return NewGORMStore(db), nil
}

// Migrate creates or updates the schema. It is a no-op for the memory store.
func (s *Store) Migrate() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// Close releases the underlying database connections.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
