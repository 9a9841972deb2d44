package store

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy shared by every store implementation. Callers match with
// errors.Is.
var (
	// ErrUnauthenticated means the session is missing or expired.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrRateLimited means the store is throttling this client.
	ErrRateLimited = errors.New("rate limited")
	// ErrOffline means the store could not be reached at all.
	ErrOffline = errors.New("offline")
	// ErrServer means the store answered with a non-success status or body.
	ErrServer = errors.New("server error")
	// ErrNetwork covers other transport failures, including timeouts.
	ErrNetwork = errors.New("network error")
)

// StatusError records a non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

// Unwrap maps the status onto the taxonomy.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusUnauthorized:
		return ErrUnauthenticated
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrServer
	}
}

// Retryable reports whether a failed call is worth retrying automatically.
// Session and throttling failures need a user action or a cool-down first.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrRateLimited) {
		return false
	}
	return errors.Is(err, ErrOffline) || errors.Is(err, ErrServer) || errors.Is(err, ErrNetwork)
}
