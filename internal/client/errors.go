package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// UpstreamError is a non-2xx response from an upstream service. It matches
// ErrUnauthorized (401/403), ErrNotFound (404) or ErrUpstreamUnavailable
// (5xx) under errors.Is.
type UpstreamError struct {
	Service string
	Method  string
	Path    string
	Status  int
	Body    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Service, e.Status, e.Body)
}

func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUpstreamUnavailable:
		return e.Status >= 500
	}
	return false
}

// transportError wraps a failure to reach the upstream at all
func transportError(service string, err error) error {
	return fmt.Errorf("%s request failed: %w: %w", service, ErrUpstreamUnavailable, err)
}
