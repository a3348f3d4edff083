package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgNumericValueOutOfRange = "22003"

// IsNumericOverflow reports whether the database rejected a value because it
// does not fit the column type.
func IsNumericOverflow(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgNumericValueOutOfRange
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "out of range") || strings.Contains(msg, "integer overflow")
}

// IsTimeout reports whether err came from an expired or cancelled context.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
