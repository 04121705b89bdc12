package crcon

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrEmptyResult means the server answered but the envelope had no result
	// (common while the game server changes maps).
	ErrEmptyResult = errors.New("control api returned an empty result")
	// ErrMalformedResponse means the response body was not a result envelope.
	ErrMalformedResponse = errors.New("control api returned a malformed response")
	// ErrNoResult is returned once the retry budget is exhausted.
	ErrNoResult = errors.New("control api: no result")
	// ErrEmptyCredentials is a permanent login failure; it is never retried.
	ErrEmptyCredentials = &AuthError{Endpoint: EndpointLogin, Reason: "username or password not provided"}
)

// AuthError reports rejected or expired credentials.
type AuthError struct {
	Endpoint string
	Status   int
	Reason   string
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("auth failed for %s: HTTP %d %s", e.Endpoint, e.Status, e.Reason)
	}
	return fmt.Sprintf("auth failed for %s: %s", e.Endpoint, e.Reason)
}

// HTTPError is a non-success status from a control API endpoint.
type HTTPError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d %s for %s", e.Status, http.StatusText(e.Status), e.Endpoint)
}

// ParseError means a result had the wrong shape. The offending raw value is kept for logs.
type ParseError struct {
	Endpoint string
	Field    string
	Value    string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse %s.%s %q: %v", e.Endpoint, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("parse %s %q: %v", e.Endpoint, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// decision is one row of the retry rule table.
type decision struct {
	retry      bool
	clearToken bool
}

// classify maps a single attempt's error to the retry rule table.
//
//	ErrEmptyCredentials     no retry
//	*AuthError              retry, clear token (next attempt logs in again)
//	*HTTPError              retry
//	ErrEmptyResult          retry
//	ErrMalformedResponse    retry
//	transport errors        retry (including http.Client timeouts)
//
// Call stops on its own context's cancellation before consulting the table.
func classify(err error) decision {
	switch {
	case err == nil:
		return decision{}
	case errors.Is(err, ErrEmptyCredentials):
		return decision{}
	}

	var ae *AuthError
	if errors.As(err, &ae) {
		return decision{retry: true, clearToken: true}
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return decision{}
	}
	return decision{retry: true}
}
