package swish

import (
	"fmt"
	"net/http"
)

// CertificateError reports missing or unreadable TLS material. It is fatal:
// a misconfigured certificate must never degrade to plaintext or skipped
// verification.
type CertificateError struct {
	File string
	Err  error
}

func (e *CertificateError) Error() string {
	return fmt.Sprintf("swish certificate material %s: %v", e.File, e.Err)
}

func (e *CertificateError) Unwrap() error { return e.Err }

// ValidationError reports malformed request input. It is raised before any
// network call and is never retryable.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("swish request validation: %s: %s", e.Field, e.Message)
}

// APIError carries a non-2xx provider response with the upstream status code
// preserved. 5xx responses are candidates for caller-directed retry with
// backoff; 4xx are not.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("swish api error %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("swish api error %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the caller may retry the request with backoff.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError
}
