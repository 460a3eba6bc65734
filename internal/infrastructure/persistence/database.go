package persistence

import (
	"fmt"
	"time"

	"github.com/souq/backend/internal/infrastructure/config"
	"github.com/souq/backend/internal/infrastructure/persistence/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database owns the gorm handle shared by every repository
type Database struct {
	DB *gorm.DB
}

// GormConfig is the gorm configuration every marketplace connection uses.
// Timestamps are written in UTC and unique violations surface as
// gorm.ErrDuplicatedKey, which the ledger and lock queries depend on.
func GormConfig(logger gormlogger.Interface) *gorm.Config {
	if logger == nil {
		logger = gormlogger.Discard
	}
	return &gorm.Config{
		Logger:                 logger,
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	}
}

// NewDatabase connects to PostgreSQL, sizes the pool and verifies the connection
func NewDatabase(cfg *config.DatabaseConfig, logger gormlogger.Interface) (*Database, error) {
	gormCfg := GormConfig(logger)
	gormCfg.PrepareStmt = true

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	d := &Database{DB: db}
	if err := d.configurePool(cfg); err != nil {
		return nil, err
	}
	if err := d.Ping(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Database) configurePool(cfg *config.DatabaseConfig) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
	return nil
}

// Ping verifies the database is reachable. Used by the health endpoint.
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Close releases the connection pool
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	return sqlDB.Close()
}

// AutoMigrate builds the marketplace tables from the persistence models. The
// deployed schema comes from migrations/; sqlite tests and local tooling use this.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.MerchantModel{},
		&models.PlatformConnectionModel{},
		&models.CategoryModel{},
		&models.ProductModel{},
		&models.OrderModel{},
		&models.WebhookEventModel{},
		&models.ClickTrackingModel{},
		&models.TrendingLogModel{},
	)
}
