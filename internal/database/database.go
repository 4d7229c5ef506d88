package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"orderbridge/internal/constants"
	apperrors "orderbridge/internal/errors"
	"orderbridge/internal/migrations"
	"orderbridge/internal/models"
	"orderbridge/internal/retry"
	"orderbridge/internal/security"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Database is the relational store for orders, people and chat messages
type Database struct {
	db          *sql.DB
	encryptor   *encryptor
	retryPolicy retry.Policy
	logger      *logrus.Logger
	now         func() time.Time
}

// New opens (creating if needed) the SQLite database at cfg.Path and applies
// the embedded schema.
func New(ctx context.Context, cfg models.DatabaseConfig, retryCfg models.RetryConfig, logger *logrus.Logger) (*Database, error) {
	dbPath := cfg.Path
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	if logger == nil {
		logger = logrus.New()
	}

	encryptor, err := newEncryptor(cfg.EncryptPhones, cfg.EncryptionSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, constants.DefaultFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	dsn := dbPath + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	d := &Database{
		db:          db,
		encryptor:   encryptor,
		retryPolicy: retry.PolicyFromConfig(retryCfg, constants.DefaultDatabaseRetryAttempts),
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}

	if err := d.withRetry(ctx, "ping", func(ctx context.Context) error { return db.PingContext(ctx) }); err != nil {
		return nil, closeOnError(db, fmt.Errorf("failed to ping database: %w", err))
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		return nil, closeOnError(db, fmt.Errorf("failed to read schema: %w", err))
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, closeOnError(db, fmt.Errorf("failed to initialize schema: %w", err))
	}

	logger.WithFields(logrus.Fields{
		"path":             dbPath,
		"phone_encryption": encryptor.Enabled(),
	}).Info("Database initialized")

	return d, nil
}

func closeOnError(db *sql.DB, err error) error {
	if closeErr := db.Close(); closeErr != nil {
		return fmt.Errorf("%w (close error: %v)", err, closeErr)
	}
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Ping reports whether the database is reachable
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// exists runs a SELECT 1 query and reports whether a row came back
func (d *Database) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// deleteByID removes a row and maps zero affected rows to a not found error
func (d *Database) deleteByID(ctx context.Context, query, resource string, id int64) error {
	var affected int64
	err := d.withRetry(ctx, "delete_"+resource, func(ctx context.Context) error {
		result, err := d.db.ExecContext(ctx, query, id)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.New(apperrors.ErrCodeValidationFailed, fmt.Sprintf("%s is still referenced", resource)).
				WithContext("resource", resource)
		}
		return apperrors.NewDatabaseError("delete "+resource, err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(resource, fmt.Sprint(id))
	}
	return nil
}

func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
