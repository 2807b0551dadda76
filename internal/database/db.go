package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/meetsmatch/matchengine/internal/telemetry"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Store-level sentinels. Callers match them with errors.Is.
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateMatch    = errors.New("match already exists for pair")
	ErrDuplicateInterest = errors.New("interest already expressed")
)

type DB struct {
	*sql.DB
}

type Config struct {
	Host            string        `koanf:"host"`
	Port            string        `koanf:"port"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	DBName          string        `koanf:"name"`
	SSLMode         string        `koanf:"ssl_mode"`
	Instrumented    bool          `koanf:"instrumented"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// DSN renders the lib/pq connection string
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.DBName,
		c.SSLMode,
	)
}

// Open connects using the instrumented driver when config.Instrumented is set
func Open(ctx context.Context, config Config) (*DB, error) {
	if config.Instrumented {
		return NewInstrumentedConnection(ctx, config)
	}
	return NewConnection(ctx, config)
}

func NewConnection(ctx context.Context, config Config) (*DB, error) {
	logger := telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
		"host":      config.Host,
		"port":      config.Port,
		"database":  config.DBName,
		"ssl_mode":  config.SSLMode,
		"operation": "database_connection",
	})

	logger.Info("Establishing database connection")

	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		logger.WithError(err).Error("Failed to open database connection")
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return finishConnection(ctx, db, config, logger)
}

// NewInstrumentedConnection creates a new database connection with OpenTelemetry instrumentation
func NewInstrumentedConnection(ctx context.Context, config Config) (*DB, error) {
	logger := telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
		"host":            config.Host,
		"port":            config.Port,
		"database":        config.DBName,
		"ssl_mode":        config.SSLMode,
		"operation":       "instrumented_database_connection",
		"instrumentation": "opentelemetry",
	})

	logger.Info("Establishing instrumented database connection")

	port, _ := strconv.Atoi(config.Port)

	db, err := telemetry.OpenInstrumentedDB("postgres", config.DSN(),
		semconv.DBName(config.DBName),
		semconv.NetPeerName(config.Host),
		semconv.NetPeerPort(port),
	)
	if err != nil {
		logger.WithError(err).Error("Failed to open instrumented database connection")
		return nil, err
	}

	return finishConnection(ctx, db, config, logger)
}

func finishConnection(ctx context.Context, db *sql.DB, config Config, logger *telemetry.ContextualLogger) (*DB, error) {
	maxOpen, maxIdle, lifetime := config.MaxOpenConns, config.MaxIdleConns, config.ConnMaxLifetime
	if maxOpen <= 0 {
		maxOpen = 25
	}
	if maxIdle <= 0 {
		maxIdle = 5
	}
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	logger.Debug("Database connection pool configured")

	if err := db.PingContext(ctx); err != nil {
		logger.WithError(err).Error("Failed to ping database")
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established successfully")
	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// WithTransaction runs fn inside a transaction. The transaction is committed
// only when fn returns nil; any error or panic rolls it back.
func (db *DB) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	logger := telemetry.LogFromContext(ctx).WithField("operation", "database_transaction")

	logger.Debug("Starting database transaction")

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		logger.WithError(err).Error("Failed to begin transaction")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			logger.WithField("panic", p).Error("Transaction panicked, rolling back")
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			logger.WithError(err).Warn("Transaction failed, rolling back")
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.WithError(rbErr).Error("Failed to roll back transaction")
			}
			return
		}
		if err = tx.Commit(); err != nil {
			logger.WithError(err).Error("Failed to commit transaction")
			err = fmt.Errorf("failed to commit transaction: %w", err)
			return
		}
		logger.Debug("Transaction committed successfully")
	}()

	err = fn(tx)
	return err
}
