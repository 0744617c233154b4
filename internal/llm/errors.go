package llm

import (
	"errors"
	"fmt"
)

// ErrMissingCredentials is returned by provider constructors when no API key
// is configured.
var ErrMissingCredentials = errors.New("missing model API credentials")

// APIError is a non-2xx answer from a hosted model.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}
