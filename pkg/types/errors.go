package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSecretNotConfigured is returned when no revalidation secret is configured
	ErrSecretNotConfigured = &ConfigurationError{Message: "Revalidation secret not configured"}

	// ErrInvalidSecret is returned when the provided secret does not match
	ErrInvalidSecret = &AuthenticationError{Message: "Invalid secret"}

	// ErrInvalidToken is returned when a preview token fails validation
	ErrInvalidToken = &AuthenticationError{Message: "Invalid token"}
)

// ConfigurationError means the service is missing required configuration (HTTP 500)
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// AuthenticationError means the caller's credentials were rejected (HTTP 401)
type AuthenticationError struct {
	Message string
	Cause   error
}

func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

// Is matches any AuthenticationError with the same message
func (e *AuthenticationError) Is(target error) bool {
	t, ok := target.(*AuthenticationError)
	return ok && t.Message == e.Message
}

// ValidationError means the request itself is malformed (HTTP 400)
type ValidationError struct {
	Message string
	Fields  map[string]bool
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	var missing []string
	for name, present := range e.Fields {
		if !present {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(missing, ", "))
}

// UpstreamFetchError wraps a failed call to the CMS
type UpstreamFetchError struct {
	Operation string
	Status    int
	Err       error
}

func (e *UpstreamFetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream %s failed with status %d", e.Operation, e.Status)
	}
	return fmt.Sprintf("upstream %s failed: %v", e.Operation, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}

// PartialInvalidationError reports an executor run that stopped part way through.
// Result holds what was invalidated before the failure.
type PartialInvalidationError struct {
	Result InvalidationResult
	Target string
	Err    error
}

func (e *PartialInvalidationError) Error() string {
	return fmt.Sprintf("invalidation stopped at %s after %d tags and %d paths: %v",
		e.Target, e.Result.TagsInvalidated, e.Result.PathsInvalidated, e.Err)
}

func (e *PartialInvalidationError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err came from a failed CMS call
func IsUpstream(err error) bool {
	var upstream *UpstreamFetchError
	return errors.As(err, &upstream)
}
