package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// withRetry runs a write, retrying only transient SQLite lock and I/O errors
func (d *Database) withRetry(ctx context.Context, operationName string, operation func(ctx context.Context) error) error {
	policy := d.retryPolicy
	policy.Retryable = isRetryableDBError
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		d.logger.WithFields(logrus.Fields{
			"operation": operationName,
			"attempt":   attempt,
			"delay_ms":  delay.Milliseconds(),
		}).WithError(err).Warn("Retrying database operation")
	}
	return policy.Do(ctx, operation)
}

// isRetryableDBError determines if a database error is worth retrying
func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr:
			return true
		}
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "database is locked") || strings.Contains(errStr, "disk I/O error")
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintForeignKey:
		return true
	case sqlite3.ErrConstraintTrigger:
		// ON DELETE RESTRICT is enforced through the trigger constraint path
		return strings.Contains(sqliteErr.Error(), "FOREIGN KEY")
	}
	return false
}
