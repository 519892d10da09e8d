package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgQueryCanceled        = "57014"
)

var retryableCodes = map[string]struct{}{
	pgLockNotAvailable:     {},
	pgSerializationFailure: {},
	pgDeadlockDetected:     {},
}

// IsRetryable reports whether err is a lock timeout, serialization failure or
// deadlock raised by Postgres.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	_, ok := retryableCodes[pgCode(err)]
	return ok
}

// IsDeadline reports whether the transaction gave up because the caller's
// deadline expired.
func IsDeadline(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return pgCode(err) == pgQueryCanceled || errors.Is(err, context.Canceled)
	}
	return false
}

func pgCode(err error) string {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
