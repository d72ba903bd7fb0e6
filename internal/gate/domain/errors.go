package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed wraps every failure of a remote list refresh.
	ErrFetchFailed = errors.New("remote list fetch failed")

	// ErrEmptyFeed is returned when the feed answered with an empty body.
	ErrEmptyFeed = errors.New("remote list response was empty")

	// ErrMalformedImport is returned when an import payload is not a JSON object.
	ErrMalformedImport = errors.New("settings import is not a well-formed record")

	// ErrUnknownSite is returned for a site ID that is not configured.
	ErrUnknownSite = errors.New("unknown site")

	// ErrUnknownIntegration is returned for an unregistered integration name.
	ErrUnknownIntegration = errors.New("unknown integration")
)

// RejectionError is returned when a submitted email uses a blocked domain.
// Message is the user-facing text configured for the site.
type RejectionError struct {
	Email   string
	Domain  string
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("email domain %q rejected: %s", e.Domain, e.Message)
}

// AsRejection unwraps err into a *RejectionError.
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
