package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrHistoryUnsupported marks sources that only serve a latest quote.
var ErrHistoryUnsupported = errors.New("historical series not supported")

// FetchError is a non-success HTTP or network failure against an upstream.
type FetchError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s: upstream returned %d: %s", e.Provider, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: upstream returned %d", e.Provider, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: fetch failed: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: fetch failed", e.Provider)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError means the upstream responded but the payload shape did not
// match (missing fields, empty series, undecodable body).
type ParseError struct {
	Provider string
	Reason   string
}

func (e *ParseError) Error() string {
	if e.Provider == "" {
		return "parse: " + e.Reason
	}
	return e.Provider + ": parse: " + e.Reason
}

// ValidationError means a normalized result failed plausibility checks
// (price out of range, incomplete snapshot).
type ValidationError struct {
	Provider string
	Reason   string
}

func (e *ValidationError) Error() string {
	return e.Provider + ": validation: " + e.Reason
}

var rateLimitMarkers = []string{
	"rate limit",
	"rate-limit",
	"ratelimit",
	"too many requests",
	"quota",
	"usage limit",
	"plan",
}

// IsRateLimited classifies an error as an explicit rate-limit/quota/plan-tier
// signal from the upstream. Only the HTTP status and the response body are
// inspected: transport errors carry wording of their own ("Client.Timeout
// exceeded") and must never open the circuit breaker.
func IsRateLimited(err error) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}

	if fe.StatusCode == http.StatusTooManyRequests {
		return true
	}

	body := strings.ToLower(fe.Body)
	if body == "" {
		return false
	}
	for _, marker := range rateLimitMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}
