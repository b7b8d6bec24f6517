package shared

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrNoImageReturned    = fmt.Errorf("no image returned after upload")
	ErrQueueFull          = fmt.Errorf("background queue full")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Store errors
	ErrNotFound  = fmt.Errorf("record not found")
	ErrStoreFail = fmt.Errorf("store operation failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrMalformedURL    = fmt.Errorf("malformed image URL")
)

// ProviderError is returned for any non-2xx response or transport failure from an external provider.
type ProviderError struct {
	Provider string
	Op       string
	Status   int
	Body     string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Provider, e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	errs := []error{ErrAPIRequest}
	if e.Status == http.StatusUnauthorized {
		errs = append(errs, ErrTokenExpired)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// UploadRejectedError reports that the provider refused a cover image replacement.
type UploadRejectedError struct {
	PlaylistID string
	Status     int
	Detail     string
	Err        error
}

func (e *UploadRejectedError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("upload rejected for playlist %s: status %d: %s", e.PlaylistID, e.Status, e.Detail)
	}
	return fmt.Sprintf("upload rejected for playlist %s: %s", e.PlaylistID, e.Detail)
}

func (e *UploadRejectedError) Unwrap() error {
	return e.Err
}

// StoreError wraps a failure in the record store with the operation that produced it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreFail, e.Err}
}

// NewStoreError wraps err in a [StoreError]. Not-found results pass through unchanged.
func NewStoreError(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
