package merchant

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDisallowed means robots.txt forbids the merchant's search URL.
	ErrDisallowed      = errors.New("disallowed by robots.txt")
	ErrUnknownMerchant = errors.New("unknown merchant")
	ErrDisabled        = errors.New("merchant disabled")
	// ErrPanic marks a scraper that panicked mid-search.
	ErrPanic = errors.New("scraper panicked")
)

// FetchError wraps a transport or rendering failure.
type FetchError struct {
	Merchant string
	URL      string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: fetch %s: %v", e.Merchant, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusError is a non-200 response from a merchant.
type StatusError struct {
	Merchant   string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned status %d", e.Merchant, e.URL, e.StatusCode)
}

// ParseError means the page could not be parsed at all.
type ParseError struct {
	Merchant string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse results: %v", e.Merchant, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Reason labels err for responses and metrics.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var (
		statusErr *StatusError
		parseErr  *ParseError
		fetchErr  *FetchError
	)
	switch {
	case errors.Is(err, ErrDisallowed):
		return "robots_disallowed"
	case errors.Is(err, ErrUnknownMerchant):
		return "unknown_merchant"
	case errors.Is(err, ErrDisabled):
		return "disabled"
	case errors.Is(err, ErrPanic):
		return "panic"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &statusErr):
		return "http_status"
	case errors.As(err, &parseErr):
		return "parse_error"
	case errors.As(err, &fetchErr):
		return "fetch_error"
	default:
		return "error"
	}
}
