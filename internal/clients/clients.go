// Package clients holds the REST collaborators consumed by the executor's
// business transformation. Each client is a simple request/response wrapper;
// retry semantics live in the executor, not here.
package clients

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError carries a collaborator's HTTP status so the executor can decide
// between retrying and dead-lettering.
type APIError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Service, e.StatusCode, e.Body)
}

// Retryable reports whether the failure looks transient. Server-side errors
// and throttling get retried; other 4xx responses are permanent.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsPermanent reports whether err is a collaborator failure that retrying
// cannot fix.
func IsPermanent(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Retryable()
	}
	return false
}
