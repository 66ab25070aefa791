package calendar

import (
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/chatplan/chatplan/internal/google"
)

// Sentinel errors classifying provider failures. Callers branch on these
// with errors.Is to decide what to tell the user.
var (
	// ErrNotConnected means the user has never linked a Google account.
	ErrNotConnected = errors.New("calendar not connected")

	// ErrAccessDenied means stored credentials were rejected by the
	// provider, typically because the user revoked access.
	ErrAccessDenied = errors.New("calendar access denied")

	// ErrProviderTransient covers rate limiting and provider-side
	// failures that are worth retrying.
	ErrProviderTransient = errors.New("calendar provider temporarily unavailable")
)

// ValidationError reports malformed caller input, naming the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// classifyError maps raw provider and token errors onto the package
// sentinels so callers never have to inspect googleapi or oauth2 types.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, google.ErrTokenNotFound) {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: token refresh rejected: %v", ErrAccessDenied, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403:
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		case apiErr.Code == 429 || apiErr.Code >= 500:
			return fmt.Errorf("%w: %v", ErrProviderTransient, err)
		}
	}
	return err
}
