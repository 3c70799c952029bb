package domain

import (
	"errors"
	"fmt"
)

// ErrTokenMissing is reported before any network work when no GitHub token
// is available.
var ErrTokenMissing = errors.New("missing GitHub token, please set the GITHUB_TOKEN environment variable")

// NotFoundError indicates a 404 from GitHub for an organization, repository
// or pull request. It is never retried.
type NotFoundError struct {
	Resource   string
	StatusCode int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found (HTTP %d)", e.Resource, e.StatusCode)
}

// RequestError indicates a non-retryable client error (422, rate limit, and
// other 4xx responses).
type RequestError struct {
	Resource   string
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: request rejected (HTTP %d): %s", e.Resource, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: request rejected (HTTP %d)", e.Resource, e.StatusCode)
}

// PaginationError indicates the page cap was hit before the date boundary.
type PaginationError struct {
	Resource string
	Pages    int
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("%s: exceeded %d pages without reaching the start date", e.Resource, e.Pages)
}
