package crawler

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the pipeline. Callers match them with errors.Is.
var (
	ErrNetwork       = errors.New("network failure")
	ErrTimeout       = errors.New("request timed out")
	ErrHTTPStatus    = errors.New("unexpected http status")
	ErrParse         = errors.New("parse failure")
	ErrPersistence   = errors.New("persistence failure")
	ErrConfiguration = errors.New("invalid configuration")
)

// FetchErrorKind classifies a failed fetch.
type FetchErrorKind string

const (
	// KindTimeout marks a request that exceeded its deadline.
	KindTimeout FetchErrorKind = "timeout"
	// KindHTTPStatus marks a response outside the 2xx range.
	KindHTTPStatus FetchErrorKind = "http_status"
	// KindNetwork marks DNS, connection and TLS failures.
	KindNetwork FetchErrorKind = "network"
)

// FetchError describes why a URL could not be retrieved.
type FetchError struct {
	URL        string
	Kind       FetchErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	case KindTimeout:
		return fmt.Sprintf("fetch %s: timeout: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

// Unwrap exposes the sentinel for the error kind plus the underlying cause.
// Timeouts also match ErrNetwork.
func (e *FetchError) Unwrap() []error {
	var errs []error
	switch e.Kind {
	case KindTimeout:
		errs = append(errs, ErrTimeout, ErrNetwork)
	case KindHTTPStatus:
		errs = append(errs, ErrHTTPStatus)
	default:
		errs = append(errs, ErrNetwork)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
