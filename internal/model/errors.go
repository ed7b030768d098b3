package model

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrAlreadyRunning is returned when a scan is requested while another one
	// holds the running state. It signals a concurrency conflict, not a failure.
	ErrAlreadyRunning = errors.New("scan already running")

	// ErrNoScanRunning is returned when cancellation targets an idle scan state.
	ErrNoScanRunning = errors.New("no scan running")

	// ErrScanSuperseded is returned to a scan whose state row has been claimed by
	// a newer scan after it was reconciled as stale.
	ErrScanSuperseded = errors.New("scan superseded by a newer scan")

	// ErrExtractionFailed means the model answered but no usable object could be
	// recovered from its output.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrMisconfigured is returned by preflight checks before any state changes.
	ErrMisconfigured = errors.New("misconfigured")

	// ErrPostingExists is returned when inserting a posting whose URL is already stored.
	ErrPostingExists = errors.New("posting already exists")

	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("not found")
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// ParseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
