package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig      = errors.New("configuration not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("missing credentials")

	// Transport classification
	ErrHTMLErrorPage      = errors.New("backend returned an HTML error page")
	ErrInvalidJSON        = errors.New("invalid JSON response from server")
	ErrNetworkUnreachable = errors.New("backend server unreachable")

	// Authentication errors
	ErrSessionExpired = errors.New("invalid or expired token")
	ErrMissingToken   = errors.New("you must be logged in")
	ErrAuthFailed     = errors.New("authentication failed")

	// API and service errors
	ErrAPIRequest = errors.New("API request failed")

	// Identity federation errors
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	ErrFlowInProgress      = errors.New("sign-in already in progress")

	// Server bootstrap errors
	ErrPortExhausted = errors.New("could not find an available port")
	ErrBindFailed    = errors.New("failed to bind listener")

	// Persistence errors
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")

	// Input validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingArgument = errors.New("missing required argument")
	ErrInvalidArgument = errors.New("invalid argument")
)

// TransportError reports a backend response that could not be interpreted or a
// backend that could not be reached.
//
// Kind is one of [ErrHTMLErrorPage], [ErrInvalidJSON] or [ErrNetworkUnreachable].
type TransportError struct {
	Kind    error
	Excerpt string
	Err     error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%v: %s", e.Kind, e.Hint())
	if e.Excerpt != "" {
		msg += fmt.Sprintf(" (response: %q)", e.Excerpt)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Hint returns a human-readable suggestion for the failure.
func (e *TransportError) Hint() string {
	switch e.Kind {
	case ErrHTMLErrorPage:
		return "make sure the backend server is running and the base URL points at its API"
	case ErrInvalidJSON:
		return "the backend might not be running"
	default:
		return "make sure the backend server is running and reachable"
	}
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// AuthError reports a missing or rejected session token.
//
// Kind is one of [ErrSessionExpired] or [ErrMissingToken].
type AuthError struct {
	Kind    error
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Kind }

// APIError is a well-formed failure reported by the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error { return ErrAPIRequest }

// IntegrationError reports a third-party identity SDK that is missing at call time.
type IntegrationError struct {
	Provider string
	Kind     error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Kind)
}

func (e *IntegrationError) Unwrap() error { return e.Kind }
