package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// TransientError marks an error as safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as transient.
func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}

// Postgres SQLSTATE codes worth retrying.
var transientSQLStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57P01": true, // admin_shutdown
	"57P03": true, // cannot_connect_now
	"53300": true, // too_many_connections
}

var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"i/o timeout",
	"conn closed",
	"database is locked",
	"sqlite_busy",
	"no such host",
}

// IsTransient reports whether err (or any error in its chain) is likely to
// succeed on retry: an explicit TransientError, a retryable Postgres error
// class, a network timeout or reset, or a busy SQLite database.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return transientSQLStates[pgErr.Code] || strings.HasPrefix(pgErr.Code, "08")
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
