package notion

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed remote call.
type ErrorKind int

const (
	// KindTransport is a network failure, timeout or cancelled request.
	KindTransport ErrorKind = iota
	// KindValidation is a 4xx rejection of the payload.
	KindValidation
	// KindRateLimited is a 429 that survived the client's retries.
	KindRateLimited
	// KindServer is a 5xx that survived the client's retries.
	KindServer
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// APIError is returned by every Client operation that fails.
type APIError struct {
	Op      string
	Status  int
	Code    string
	Message string
	Kind    ErrorKind
	Err     error
}

func (e *APIError) Error() string {
	if e.Kind == KindTransport {
		return fmt.Sprintf("notion %s: %v", e.Op, e.Err)
	}
	if e.Code != "" {
		return fmt.Sprintf("notion %s: status=%d code=%s message=%s", e.Op, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("notion %s: status=%d message=%s", e.Op, e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// KindOf reports the kind of the first *APIError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return 0, false
}

// IsValidation reports whether err is a payload rejection.
func IsValidation(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindValidation
}

// IsTransport reports whether err never reached the API.
func IsTransport(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindTransport
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServer
	default:
		return KindValidation
	}
}

func retryable(status int, idempotent bool) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return idempotent && status >= 500 && status <= 599
}
