// Package errors provides custom error types for the adjudex system.
// The types encode the failure taxonomy of the scraping pipeline: transient
// network failures that were retried and gave up, missing pages that signal
// pagination end, listings intentionally excluded by an adapter, per-source
// fatal failures, and per-record persistence failures.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is reports whether any error in err's chain matches target.
// It's an alias for the standard library errors.Is for convenience.
var Is = errors.Is

// As finds the first error in err's chain that matches target.
// It's an alias for the standard library errors.As for convenience.
var As = errors.As

// Common sentinel errors for the adjudex system
var (
	// ErrNotFound indicates a page or stored row does not exist.
	// For HTTP fetches this is a 404 and is terminal for that URL;
	// it is how adapters detect the end of pagination.
	ErrNotFound = errors.New("not found")

	// ErrTransient indicates a retryable network-level failure
	// (timeout, connection reset, 5xx). The Fetcher retries these with
	// backoff; once attempts are exhausted the error escalates for that
	// request only.
	ErrTransient = errors.New("transient failure")

	// ErrSkip indicates an adapter intentionally excluded a listing
	// (for example a notarial sale on a judicial-auction source).
	// It is not a failure and must not be retried or counted as one.
	ErrSkip = errors.New("listing skipped")

	// ErrRateLimited indicates an upstream rate limit was hit.
	ErrRateLimited = errors.New("rate limited")

	// ErrRunInProgress indicates a coordinated run is already executing.
	// The persistence layer is single-writer; runs must be serialized.
	ErrRunInProgress = errors.New("run already in progress")
)

// FetchError represents a failed HTTP fetch after any applicable retries.
type FetchError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: %v after %d attempt(s)", e.URL, e.Err, e.Attempts)
}

// Unwrap implements errors.Unwrap
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *FetchError) Is(target error) bool {
	switch {
	case e.StatusCode == 404:
		return target == ErrNotFound
	case e.StatusCode == 429:
		return target == ErrRateLimited || target == ErrTransient
	case e.StatusCode >= 500:
		return target == ErrTransient
	}
	return false
}

// ParseError represents an adapter's failure to extract required fields
// from a fetched document. The record is dropped and counted, not retried.
type ParseError struct {
	Source  string
	URL     string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("parse error from %s at %s: %s", e.Source, e.URL, e.Message)
	}
	return fmt.Sprintf("parse error from %s: %s", e.Source, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// SourceError represents a fatal adapter-level failure. It isolates to
// that source's run record and never aborts sibling sources.
type SourceError struct {
	Source string
	Page   int
	Err    error
}

// Error implements the error interface
func (e *SourceError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("source %s failed at page %d: %v", e.Source, e.Page, e.Err)
	}
	return fmt.Sprintf("source %s failed: %v", e.Source, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *SourceError) Unwrap() error {
	return e.Err
}

// PersistError represents a single-record write failure. The batch
// continues; the failure is logged and counted.
type PersistError struct {
	IdentityHash string
	URL          string
	Err          error
}

// Error implements the error interface
func (e *PersistError) Error() string {
	id := e.IdentityHash
	if id == "" {
		id = e.URL
	}
	return fmt.Sprintf("persist %s: %v", id, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *PersistError) Unwrap() error {
	return e.Err
}

// ValidationError represents invalid run or request parameters, such as an
// unknown source name.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransient checks if an error is a retryable transient failure
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsSkip checks if an error marks an intentionally excluded listing
func IsSkip(err error) bool {
	return errors.Is(err, ErrSkip)
}

// WrapSource wraps an error as a SourceError
func WrapSource(source string, err error) error {
	if err == nil {
		return nil
	}
	return &SourceError{Source: source, Err: err}
}

// WrapPersist wraps an error as a PersistError
func WrapPersist(identityHash, url string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistError{IdentityHash: identityHash, URL: url, Err: err}
}
