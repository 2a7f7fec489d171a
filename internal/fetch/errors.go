package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoData means the source confirmed that no disclosure exists for
// the requested date (non-trading day, not yet published). It is a
// terminal, non-retryable outcome and not a failure.
var ErrNoData = errors.New("no disclosure published for date")

// TransientError wraps a failure worth retrying: network timeouts,
// 5xx-equivalent responses, malformed-but-recoverable bodies. The
// client retries these internally; a TransientError escaping Fetch
// means the attempt budget is exhausted.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a failure that retrying cannot fix: malformed
// security, access denied. Never retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// HTTPError represents a non-2xx response from the source.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("tdcc http error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsRetryable returns true if the status should trigger a retry.
func (e *HTTPError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}
