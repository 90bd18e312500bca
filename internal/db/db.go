package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	maxOpenConns       = 25
	maxIdleConns       = 5
	connMaxLifetime    = 5 * time.Minute
	defaultPingTimeout = 5 * time.Second
)

// DB wraps a GORM database connection
type DB struct {
	*gorm.DB
}

type openConfig struct {
	enableWAL   bool
	pingTimeout time.Duration
}

// Option configures how New opens the database
type Option func(*openConfig)

// WithWAL enables or disables the write-ahead log journal mode
func WithWAL(enabled bool) Option {
	return func(c *openConfig) {
		c.enableWAL = enabled
	}
}

// WithConnectionTimeout bounds the initial ping
func WithConnectionTimeout(d time.Duration) Option {
	return func(c *openConfig) {
		if d > 0 {
			c.pingTimeout = d
		}
	}
}

// New creates a new database connection with GORM
// dbPath should be the path to the SQLite database file
// Example: "./data/lineup.db"
func New(dbPath string, opts ...Option) (*DB, error) {
	cfg := openConfig{enableWAL: true, pingTimeout: defaultPingTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	// Configure SQLite with foreign keys and the requested journal mode
	dsn := fmt.Sprintf("%s?_foreign_keys=on", dbPath)
	if cfg.enableWAL {
		dsn += "&_journal_mode=WAL"
	}

	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		// Disable default transaction for better performance
		SkipDefaultTransaction: true,
		// Prepare statements for better performance
		PrepareStmt: true,
		Logger:      gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Get underlying sql.DB for connection pool configuration
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), cfg.pingTimeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: gormDB}, nil
}

// Health checks database connectivity
func (db *DB) Health(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// GetSQLDB returns the underlying sql.DB for migrations
func (db *DB) GetSQLDB() (*sql.DB, error) {
	return db.DB.DB()
}
