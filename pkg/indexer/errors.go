package indexer

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUpstreamUnavailable is returned once every retry attempt for a
// retryable failure (429, 5xx, transport error) has been used up.
var ErrUpstreamUnavailable = errors.New("indexer: upstream unavailable")

// Error is a non-2xx response from the indexer
type Error struct {
	StatusCode int
	Body       string
	URL        string
}

func (e *Error) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("indexer request to %s failed with status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("indexer request to %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}

// IsNotFound reports whether err carries an indexer 404
func IsNotFound(err error) bool {
	var ierr *Error
	return errors.As(err, &ierr) && ierr.StatusCode == http.StatusNotFound
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
