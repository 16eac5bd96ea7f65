package fetcher

import (
	"errors"
	"fmt"
)

// Reason tags a failed fetch.
type Reason string

const (
	ReasonTransport Reason = "transportError"
	ReasonBadStatus Reason = "badStatus"
	ReasonEmptyBody Reason = "emptyBody"
)

// ErrBodyTooLarge marks a response larger than the configured body limit.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// FetchError is returned for every request that did not produce a usable body.
type FetchError struct {
	Reason     Reason
	StatusCode int
	URL        string
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Reason {
	case ReasonBadStatus:
		return fmt.Sprintf("fetch %s: bad status %d", redact(e.URL), e.StatusCode)
	case ReasonEmptyBody:
		return fmt.Sprintf("fetch %s: empty body", redact(e.URL))
	default:
		return fmt.Sprintf("fetch %s: transport: %v", redact(e.URL), e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrUnauthorized indicates rejected credentials (HTTP 401).
type ErrUnauthorized struct {
	Err error
}

func (e ErrUnauthorized) Error() string {
	return fmt.Errorf("unauthorized: %w", e.Err).Error()
}

func (e ErrUnauthorized) Unwrap() error {
	return e.Err
}

// ErrForbidden indicates a forbidden response (HTTP 403).
type ErrForbidden struct {
	Err error
}

func (e ErrForbidden) Error() string {
	return fmt.Errorf("forbidden: %w", e.Err).Error()
}

func (e ErrForbidden) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a missing resource (HTTP 404).
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return fmt.Errorf("not_found: %w", e.Err).Error()
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the API rate-limited the request.
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ReasonOf returns the fetch reason carried by err, or "".
func ReasonOf(err error) Reason {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Reason
	}
	return ""
}

// ErrorTypeLabel maps err to the label used for metrics and summaries.
func ErrorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var unauthorized ErrUnauthorized
	if errors.As(err, &unauthorized) {
		return "unauthorized"
	}
	var forbidden ErrForbidden
	if errors.As(err, &forbidden) {
		return "forbidden"
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	if errors.Is(err, ErrBodyTooLarge) {
		return "body_too_large"
	}
	switch ReasonOf(err) {
	case ReasonBadStatus:
		return "bad_status"
	case ReasonEmptyBody:
		return "empty_body"
	case ReasonTransport:
		return "transport"
	}
	return "other"
}
