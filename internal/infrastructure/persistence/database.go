package persistence

import (
	"fmt"
	"time"

	"github.com/reformshop/backend/internal/infrastructure/config"
	applogger "github.com/reformshop/backend/internal/infrastructure/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the database connection and provides methods for database
// operations
type Database struct {
	DB *gorm.DB
}

// DatabaseOption is a functional option for configuring the database
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	zapLogger *zap.Logger
	logLevel  gormlogger.LogLevel
	tracing   bool
}

// WithZapLogger routes GORM logs through the given zap logger
func WithZapLogger(logger *zap.Logger, level gormlogger.LogLevel) DatabaseOption {
	return func(o *databaseOptions) {
		o.zapLogger = logger
		o.logLevel = level
	}
}

// WithTracing enables otelgorm query tracing
func WithTracing() DatabaseOption {
	return func(o *databaseOptions) {
		o.tracing = true
	}
}

// NewDatabase creates a new database connection with the given configuration
func NewDatabase(cfg *config.DatabaseConfig, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{logLevel: gormlogger.Silent}
	for _, opt := range opts {
		opt(options)
	}

	var dbLogger gormlogger.Interface
	if options.zapLogger != nil {
		dbLogger = applogger.NewGormLogger(options.zapLogger, options.logLevel)
	} else {
		dbLogger = gormlogger.Default.LogMode(options.logLevel)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 dbLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if options.tracing {
		if err := db.Use(otelgorm.NewPlugin()); err != nil {
			return nil, fmt.Errorf("failed to enable query tracing: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db}, nil
}

// AutoMigrate creates or updates the cart schema
func (d *Database) AutoMigrate() error {
	return d.DB.AutoMigrate(&CartItemModel{})
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}
