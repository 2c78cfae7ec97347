package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrFetch         = errors.New("fetch failed")
	ErrMisconfigured = errors.New("exchange misconfigured")
	ErrUnavailable   = errors.New("exchange unavailable")
)

// FetchError is returned by fetchers for connectivity problems, bad status
// codes, malformed bodies and missing fields.
type FetchError struct {
	Exchange string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Exchange, e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{ErrFetch, e.Err} }

func NewFetchError(exchange string, err error) *FetchError {
	return &FetchError{Exchange: exchange, Err: err}
}

// ParamError reports a required connection parameter missing from the
// exchange configuration.
type ParamError struct {
	Exchange string
	Param    string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s: missing parameter %q", e.Exchange, e.Param)
}

func (e *ParamError) Unwrap() error { return ErrMisconfigured }

type UnknownExchangeError struct {
	Exchange string
}

func (e *UnknownExchangeError) Error() string {
	return fmt.Sprintf("no fetcher registered for exchange %q", e.Exchange)
}

func (e *UnknownExchangeError) Unwrap() error { return ErrMisconfigured }

// ExchangeUnavailable is the only failure callers of the cache controller
// observe for a known exchange. It is raised once the grace window has
// elapsed without a successful fetch.
type ExchangeUnavailable struct {
	Exchange        string
	Failures        int
	LastSuccess     time.Time
	LastSuccessText string
	Err             error
}

func (e *ExchangeUnavailable) Error() string {
	return fmt.Sprintf("%s is unavailable after %d failed calls in a row, last successful call at %s",
		e.Exchange, e.Failures, e.LastSuccessText)
}

func (e *ExchangeUnavailable) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnavailable}
	}
	return []error{ErrUnavailable, e.Err}
}
