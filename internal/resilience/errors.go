package resilience

import (
	"errors"
	"net"
	"strings"
)

// TransientError wraps an error that is safe to retry, such as a locked
// database file or a dropped connection.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError marks err as retryable.
func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}

// IsTransient reports whether the error (or any error in its chain) is a
// TransientError, a network timeout, or matches a known transient store
// error pattern.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// String-based heuristics for wrapped driver errors.
	msg := strings.ToLower(err.Error())
	patterns := []string{
		"database is locked",
		"database table is locked",
		"busy",
		"connection reset by peer",
		"broken pipe",
		"i/o timeout",
		"conn closed",
		"too many clients",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
